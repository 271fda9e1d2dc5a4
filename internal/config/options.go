package config

import (
	"path/filepath"
	"time"

	"github.com/smazurov/holus/internal/logging"
)

// Options is the flat CLI/TOML/env surface of the supervisor. Precedence is
// CLI flag > HOLUS_<env> > TOML file > default tag.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"holus.toml"`

	// Supervisor settings
	MaxRestarts                    int    `help:"Restart attempts before a domain is exhausted" default:"5" toml:"supervisor.max_restarts" env:"MAX_RESTARTS"`
	CooldownSeconds                int    `help:"Minimum seconds between restarts of a domain" default:"60" toml:"supervisor.cooldown_seconds" env:"COOLDOWN_SECONDS"`
	HealthCheckIntervalSeconds     int    `help:"Seconds between monitoring passes" default:"30" toml:"supervisor.health_check_interval_seconds" env:"HEALTH_CHECK_INTERVAL_SECONDS"`
	HeartbeatStaleThresholdSeconds int    `help:"Heartbeat age after which a domain is unhealthy" default:"90" toml:"supervisor.heartbeat_stale_threshold_seconds" env:"HEARTBEAT_STALE_THRESHOLD_SECONDS"`
	GracePeriodSeconds             int    `help:"Seconds each domain gets to exit on shutdown" default:"10" toml:"supervisor.grace_period_seconds" env:"GRACE_PERIOD_SECONDS"`
	StateDir                       string `help:"Directory holding heartbeats and mailboxes" default:"/var/lib/holus" toml:"supervisor.state_dir" env:"STATE_DIR"`
	WatchConfig                    bool   `help:"Log edits to the configuration file while running" default:"true" toml:"supervisor.watch_config" env:"WATCH_CONFIG"`

	// Server settings
	Port string `help:"Status API listen address, empty to disable" short:"p" default:"127.0.0.1:8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// NATS settings
	NATSEnabled  bool   `help:"Publish state changes and alerts to NATS" default:"false" toml:"nats.enabled" env:"NATS_ENABLED"`
	NATSURL      string `help:"NATS server URL, empty to run an embedded server" default:"" toml:"nats.url" env:"NATS_URL"`
	NATSEmbedded int    `help:"Embedded NATS server port" default:"4222" toml:"nats.embedded_port" env:"NATS_EMBEDDED_PORT"`

	// Metrics settings
	MetricsEnabled bool `help:"Expose Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingDomain     string `help:"Worker output logging level" default:"info" toml:"logging.domain" env:"LOGGING_DOMAIN"`
	LoggingMailbox    string `help:"Mailbox logging level" default:"info" toml:"logging.mailbox" env:"LOGGING_MAILBOX"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingNATS       string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

// DefaultOptions returns Options populated from the default tags, for
// commands that load the configuration without the root flag set.
func DefaultOptions() *Options {
	return &Options{
		Config:                         "holus.toml",
		MaxRestarts:                    5,
		CooldownSeconds:                60,
		HealthCheckIntervalSeconds:     30,
		HeartbeatStaleThresholdSeconds: 90,
		GracePeriodSeconds:             10,
		StateDir:                       "/var/lib/holus",
		WatchConfig:                    true,
		Port:                           "127.0.0.1:8090",
		NATSEmbedded:                   4222,
		MetricsEnabled:                 true,
		LoggingLevel:                   "info",
		LoggingFormat:                  "text",
		LoggingSupervisor:              "info",
		LoggingDomain:                  "info",
		LoggingMailbox:                 "info",
		LoggingAPI:                     "info",
		LoggingNATS:                    "info",
	}
}

// Supervisor converts the flat options into validated-ready settings.
func (o *Options) Supervisor() Supervisor {
	return Supervisor{
		MaxRestarts:             o.MaxRestarts,
		Cooldown:                time.Duration(o.CooldownSeconds) * time.Second,
		HealthCheckInterval:     time.Duration(o.HealthCheckIntervalSeconds) * time.Second,
		HeartbeatStaleThreshold: time.Duration(o.HeartbeatStaleThresholdSeconds) * time.Second,
		GracePeriod:             time.Duration(o.GracePeriodSeconds) * time.Second,
		StateDir:                o.StateDir,
	}
}

// Logging returns the logging configuration.
func (o *Options) Logging() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"supervisor": o.LoggingSupervisor,
			"domain":     o.LoggingDomain,
			"mailbox":    o.LoggingMailbox,
			"api":        o.LoggingAPI,
			"http":       o.LoggingAPI,
			"nats":       o.LoggingNATS,
		},
	}
}

// HeartbeatDir is where workers write heartbeat files.
func HeartbeatDir(stateDir string) string {
	return filepath.Join(stateDir, "heartbeats")
}

// MailboxDir is where domain inboxes live.
func MailboxDir(stateDir string) string {
	return filepath.Join(stateDir, "mailbox")
}
