package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/smazurov/holus/internal/api"
	"github.com/smazurov/holus/internal/api/models"
	"github.com/smazurov/holus/internal/config"
	"github.com/smazurov/holus/internal/events"
	"github.com/smazurov/holus/internal/heartbeat"
	"github.com/smazurov/holus/internal/logging"
	"github.com/smazurov/holus/internal/mailbox"
	"github.com/smazurov/holus/internal/metrics/collectors"
	"github.com/smazurov/holus/internal/metrics/exporters"
	"github.com/smazurov/holus/internal/nats"
	"github.com/smazurov/holus/internal/policy"
	"github.com/smazurov/holus/internal/process"
	"github.com/smazurov/holus/internal/services"
	"github.com/smazurov/holus/internal/supervisor"
	"github.com/smazurov/holus/internal/systemd"
	"github.com/smazurov/holus/internal/version"
)

// daemon is a configured supervisor together with the helpers around it:
// the service tree (API, metrics, NATS status), the config watcher and the
// NATS publisher.
type daemon struct {
	opts       *config.Options
	settings   config.Supervisor
	domains    config.Domains
	logger     *slog.Logger
	sup        *supervisor.Supervisor
	notifier   *systemd.Notifier
	tree       *services.Tree
	treeDone   <-chan error
	watcher    *config.Watcher[config.Domains]
	publisher  *nats.Publisher
	natsServer *nats.Server
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
}

// newDaemon validates the configuration and wires every component. Only
// configuration problems are returned; optional helpers that fail to come
// up are logged and skipped.
func newDaemon(opts *config.Options) (*daemon, error) {
	logger := logging.GetLogger("main")

	settings := opts.Supervisor()
	domains, err := config.LoadDomains(opts.Config)
	if err == nil {
		err = config.Validate(settings, domains, logging.GetLogger("config"))
	}
	if err != nil {
		return nil, err
	}
	for _, resolveErr := range config.ResolveCommands(domains) {
		logger.Warn("Domain command not found on PATH", "error", resolveErr)
	}

	heartbeatDir := config.HeartbeatDir(settings.StateDir)
	mailboxDir := config.MailboxDir(settings.StateDir)
	for _, dir := range []string{heartbeatDir, mailboxDir} {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("create state directory %s: %w", dir, mkErr)
		}
	}

	eventBus := events.New()
	logging.SetLogCallback(func(entry logging.LogEntry) {
		eventBus.Publish(events.LogEntryEvent{
			Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
			Level:      entry.Level,
			Module:     entry.Module,
			Message:    entry.Message,
			Attributes: entry.Attributes,
		})
	})

	monitor := heartbeat.NewMonitor(heartbeatDir, settings.HeartbeatStaleThreshold, logging.GetLogger("heartbeat"))
	mb := mailbox.New(mailboxDir, mailbox.WithLogger(logging.GetLogger("mailbox")))
	notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

	if wd := notifier.WatchdogTimeout(); wd > 0 && wd <= settings.HealthCheckInterval {
		logger.Warn("systemd WatchdogSec is not longer than the health check interval; the unit will be killed between ticks",
			"watchdog", wd, "interval", settings.HealthCheckInterval)
	}

	sup := supervisor.New(supervisor.Options{
		Policy: policy.Config{
			MaxRestarts: settings.MaxRestarts,
			Cooldown:    settings.Cooldown,
		},
		HealthCheckInterval: settings.HealthCheckInterval,
		GracePeriod:         settings.GracePeriod,
		Heartbeat:           monitor,
		Launcher: &supervisor.ProcessLauncher{
			Options: process.Options{
				Logger:       logging.GetLogger("process"),
				OutputLogger: logging.GetLogger("domain"),
				LogParser:    process.ParseLevelPrefix,
			},
			HeartbeatDir: heartbeatDir,
			MailboxDir:   mailboxDir,
		},
		Logger:   logging.GetLogger("supervisor"),
		EventBus: eventBus,
		OnReady: func() {
			notifier.Ready()
		},
		OnTick: func(counts map[supervisor.State]int) {
			notifier.Status("%d running, %d crashed, %d exhausted",
				counts[supervisor.StateRunning], counts[supervisor.StateCrashed], counts[supervisor.StateExhausted])
			notifier.Watchdog()
		},
	})

	for _, name := range domains.Names() {
		if !domains[name].IsEnabled() {
			logger.Info("Domain disabled, skipping", "domain", name)
			continue
		}
		if regErr := sup.Register(name, domains[name].Command); regErr != nil {
			return nil, fmt.Errorf("register domain %s: %w", name, regErr)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &daemon{
		opts:     opts,
		settings: settings,
		domains:  domains,
		logger:   logger,
		sup:      sup,
		notifier: notifier,
		tree:     services.NewTree(logging.GetLogger("services"), services.DefaultTreeConfig()),
		ctx:      ctx,
		cancel:   cancel,
	}

	if opts.NATSEnabled {
		d.setupNATS(eventBus)
	}

	if opts.MetricsEnabled {
		collector := collectors.NewHeartbeatCollector(monitor, mb, domains.Enabled())
		d.tree.Add(services.NewLifecycle("heartbeat-metrics", collector.Start, collector.Stop))
	}

	if opts.Port != "" {
		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Status:       sup,
			EventBus:     eventBus,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)
		d.tree.Add(services.NewFunc("api", func(ctx context.Context) error {
			return server.Serve(ctx, opts.Port)
		}))
	}

	if opts.WatchConfig {
		d.watcher = config.NewConfigWatcher(opts.Config, config.LoadDomains, logging.GetLogger("config"))
		d.watcher.OnReload(func(reloaded config.Domains) {
			logger.Warn("Configuration file changed; restart holus to apply",
				"config", opts.Config, "enabled_domains", len(reloaded.Enabled()))
		})
	}

	return d, nil
}

// setupNATS starts the embedded server when no URL is configured, attaches
// the publisher to the bus and adds the status responder to the tree.
// Publishing degrades to log-only when the server is unreachable.
func (d *daemon) setupNATS(bus *events.Bus) {
	natsLogger := logging.GetLogger("nats")
	url := d.opts.NATSURL
	if url == "" {
		d.natsServer = nats.NewServer(nats.ServerOptions{Port: d.opts.NATSEmbedded, Logger: natsLogger})
		if err := d.natsServer.Start(); err != nil {
			d.logger.Warn("Failed to start embedded NATS server", "error", err)
			d.natsServer = nil
		}
		url = fmt.Sprintf("nats://127.0.0.1:%d", d.opts.NATSEmbedded)
		if d.natsServer != nil {
			url = d.natsServer.ClientURL()
		}
	}

	d.publisher = nats.NewPublisher(url, natsLogger)
	_ = d.publisher.Connect()
	d.publisher.Attach(bus)

	responder := nats.NewStatusResponder(url, d.domainStatus, natsLogger)
	d.tree.Add(services.NewLifecycle("nats-status",
		func(context.Context) error { return responder.Start() },
		func() error { responder.Stop(); return nil },
	))
}

func (d *daemon) domainStatus() any {
	statuses := d.sup.Domains()
	out := make([]models.DomainInfo, len(statuses))
	for i, st := range statuses {
		out[i] = api.ToDomainInfo(st)
	}
	return out
}

// start brings up the config watcher and the service tree.
func (d *daemon) start() {
	d.logger.Info("Starting holus", "version", version.String(), "config", d.opts.Config,
		"domains", len(d.domains.Enabled()), "state_dir", d.settings.StateDir)

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			d.logger.Warn("Failed to watch configuration file", "error", err)
		}
	}
	d.treeDone = d.tree.ServeBackground(d.ctx)
}

// run supervises until shutdown, then stops the helpers.
func (d *daemon) run() {
	if err := d.sup.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("Supervisor stopped with error", "error", err)
	}
	d.stopHelpers()
}

// shutdown stops every domain, reports the outcome and stops the helpers.
func (d *daemon) shutdown() {
	d.logger.Info("Shutdown signal received")
	d.notifier.Stopping()
	d.sup.Shutdown()
	<-d.sup.Done()

	report := d.sup.ShutdownReport()
	if forced := report.Forced(); len(forced) > 0 {
		d.logger.Warn("Shutdown finished with forced kills", "domains", forced, "elapsed", report.Elapsed)
	} else {
		d.logger.Info("Shutdown complete", "elapsed", report.Elapsed)
	}
	d.stopHelpers()
}

func (d *daemon) stopHelpers() {
	d.stopOnce.Do(func() {
		d.cancel()

		if d.treeDone != nil {
			select {
			case <-d.treeDone:
			case <-time.After(15 * time.Second):
				d.logger.Warn("Helper services did not stop in time", "services", d.tree.Unstopped())
			}
		}
		if d.watcher != nil {
			_ = d.watcher.Stop()
		}
		// publisher last: it carries the final lifecycle notice
		if d.publisher != nil {
			d.publisher.Flush()
			d.publisher.Close()
		}
		if d.natsServer != nil {
			d.natsServer.Stop()
		}
	})
}
