// Package supervisor runs a fixed set of domain worker processes, detects
// their failures and restarts them within the bounds of a restart policy.
//
// The Supervisor owns a registry of domains guarded by a single mutex. One
// loop goroutine performs a monitoring pass (Tick) every health check
// interval. A pass visits domains in name order and, for each live domain:
//
//   - marks it crashed if its process has exited;
//   - otherwise kills it if its heartbeat is stale, and marks it crashed once
//     the kill has been observed;
//   - asks the restart policy what to do with a crashed domain: respawn,
//     wait for the cooldown, or give up (exhausted).
//
// Shutdown only sets a flag and wakes the loop. The loop then hands every
// running process to the shutdown coordinator.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/holus/internal/events"
	"github.com/smazurov/holus/internal/heartbeat"
	"github.com/smazurov/holus/internal/metrics"
	"github.com/smazurov/holus/internal/policy"
	"github.com/smazurov/holus/internal/shutdown"
)

// Defaults for Options.
const (
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultGracePeriod         = 10 * time.Second
	killWait                   = 5 * time.Second
)

var (
	// ErrAlreadyStarted is returned by Register and Run once Run has been called.
	ErrAlreadyStarted = errors.New("supervisor already started")
	// ErrDuplicateDomain is returned when a domain name is registered twice.
	ErrDuplicateDomain = errors.New("domain already registered")
	// ErrEmptyName is returned when registering a domain without a name.
	ErrEmptyName = errors.New("domain name is empty")
)

// Options configures a Supervisor.
type Options struct {
	// Policy bounds restarts. It is used as given: a zero MaxRestarts
	// exhausts a domain on its first crash.
	Policy policy.Config
	// HealthCheckInterval is the time between monitoring passes.
	HealthCheckInterval time.Duration
	// GracePeriod is how long each domain gets to exit on shutdown.
	GracePeriod time.Duration
	// Heartbeat reads worker heartbeats. Nil disables heartbeat checks.
	Heartbeat *heartbeat.Monitor
	// Launcher spawns domain processes (required).
	Launcher Launcher
	// Logger for supervisor operations. Defaults to slog.Default().
	Logger *slog.Logger
	// EventBus receives state changes, failures and alerts (optional).
	EventBus *events.Bus
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// OnReady is called once every domain has been spawned for the first time.
	OnReady func()
	// OnTick is called after every monitoring pass with the state counts.
	OnTick func(counts map[State]int)
}

// Supervisor manages the domain registry and the monitoring loop.
type Supervisor struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	domains map[string]*domainProcess
	order   []string

	started  atomic.Bool
	stopping atomic.Bool
	wake     chan struct{}
	done     chan struct{}

	report   shutdown.Report
	killWait time.Duration
}

// New creates a Supervisor. Domains are added with Register before Run.
func New(opts Options) *Supervisor {
	if opts.Launcher == nil {
		panic("supervisor: Options.Launcher is required")
	}
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Supervisor{
		opts:     opts,
		logger:   logger,
		now:      now,
		domains:  make(map[string]*domainProcess),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		killWait: killWait,
	}
}

// Register adds a domain. It must be called before Run.
func (s *Supervisor) Register(name, command string) error {
	if s.started.Load() {
		return ErrAlreadyStarted
	}
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.domains[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDomain, name)
	}
	s.domains[name] = &domainProcess{name: name, command: command, state: StateNotStarted}
	s.order = append(s.order, name)
	sort.Strings(s.order)
	metrics.SetDomainState(name, string(StateNotStarted))

	s.logger.Info("Domain registered", "domain", name, "command", command)
	return nil
}

// Run spawns every registered domain, then monitors them every health check
// interval until ctx is cancelled or Shutdown is called. Before returning it
// stops all running domains.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(s.done)

	s.startAll()
	s.publish(events.LifecycleEvent{
		Phase:     "started",
		Domains:   s.names(),
		Timestamp: s.timestamp(),
	})
	if s.opts.OnReady != nil && !s.stopping.Load() {
		s.opts.OnReady()
	}

	ticker := time.NewTicker(s.opts.HealthCheckInterval)
	defer ticker.Stop()

	s.logger.Info("Supervisor running",
		"domains", len(s.order),
		"interval", s.opts.HealthCheckInterval,
		"max_restarts", s.opts.Policy.MaxRestarts,
		"cooldown", s.opts.Policy.Cooldown)

loop:
	for !s.stopping.Load() {
		select {
		case <-ctx.Done():
			s.logger.Info("Context cancelled, shutting down")
			break loop
		case <-s.wake:
		case <-ticker.C:
			s.Tick()
		}
	}

	s.stopping.Store(true)
	s.stopAll()
	return nil
}

// Shutdown asks the loop to stop. It only sets a flag and returns; Run
// performs the actual shutdown. Safe to call from any goroutine, any number
// of times.
func (s *Supervisor) Shutdown() {
	if s.stopping.CompareAndSwap(false, true) {
		s.logger.Info("Shutdown requested")
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run has returned.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Stopping reports whether shutdown has been requested.
func (s *Supervisor) Stopping() bool { return s.stopping.Load() }

// ShutdownReport returns the report of the final shutdown once Run has returned.
func (s *Supervisor) ShutdownReport() shutdown.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Tick performs one monitoring pass. Domains killed for a stale heartbeat
// are waited for without holding the registry lock.
func (s *Supervisor) Tick() {
	now := s.now()

	s.mu.Lock()
	if s.stopping.Load() {
		s.mu.Unlock()
		return
	}
	var killed []*domainProcess
	var handles []Handle
	for _, name := range s.order {
		d := s.domains[name]
		if s.checkDomain(d, now) {
			killed = append(killed, d)
			handles = append(handles, d.handle)
		}
	}
	s.mu.Unlock()

	if len(handles) > 0 {
		s.awaitExit(handles)
	}

	s.mu.Lock()
	if len(killed) > 0 {
		now = s.now()
	}
	for _, d := range killed {
		if !s.reap(d) {
			s.logger.Error("Unresponsive domain did not exit after kill, checking again next tick",
				"domain", d.name, "pid", d.handle.Pid())
			continue
		}
		if !s.stopping.Load() {
			s.applyPolicy(d, now)
		}
	}
	counts := s.countsLocked()
	s.mu.Unlock()

	metrics.IncTicks()
	if s.opts.OnTick != nil {
		s.opts.OnTick(counts)
	}
}

// startAll spawns every registered domain once.
func (s *Supervisor) startAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.order {
		if s.stopping.Load() {
			return
		}
		s.spawn(s.domains[name], s.now())
	}
}

// checkDomain applies one monitoring step to d. It reports whether d was
// just killed and its exit still has to be observed. Must hold mu.
func (s *Supervisor) checkDomain(d *domainProcess, now time.Time) bool {
	switch d.state {
	case StateExhausted:
		s.logger.Debug("Domain exhausted, not restarting", "domain", d.name, "restart_count", d.restartCount)
		return false
	case StateRunning:
		if s.checkRunning(d, now) {
			return true
		}
	case StateTerminating:
		// killed on an earlier tick and not yet seen to exit
		if !s.reap(d) {
			s.logger.Error("Unresponsive domain still alive after kill", "domain", d.name, "pid", d.handle.Pid())
			if err := d.handle.Kill(); err != nil {
				s.logger.Error("Failed to kill unresponsive domain", "domain", d.name, "error", err)
			}
			return false
		}
	case StateCrashed:
	default:
		return false
	}

	if d.state == StateCrashed {
		s.applyPolicy(d, now)
	}
	return false
}

// checkRunning detects exits and stale heartbeats. It returns true when it
// has killed d; d then stays terminating until the exit is observed. Must
// hold mu.
func (s *Supervisor) checkRunning(d *domainProcess, now time.Time) bool {
	select {
	case <-d.handle.Done():
		code := d.handle.ExitCode()
		d.lastExitCode = &code
		d.handle = nil
		s.fail(d, FailureUnexpectedExit, fmt.Sprintf("exited with code %d", code), now)
		s.setState(d, StateCrashed)
		return false
	default:
	}

	hb := s.opts.Heartbeat
	if hb == nil {
		return false
	}
	// a freshly spawned worker gets one threshold to write its first heartbeat
	if now.Sub(d.spawnedAt) <= hb.Threshold() {
		return false
	}
	if !hb.IsStale(d.name, now) {
		return false
	}

	msg := "no heartbeat recorded"
	if age, ok := hb.Age(d.name, now); ok {
		msg = fmt.Sprintf("last heartbeat %s ago", age.Round(time.Second))
	}
	s.fail(d, FailureHeartbeatStale, msg, now)

	if err := d.handle.Kill(); err != nil {
		s.logger.Error("Failed to kill unresponsive domain", "domain", d.name, "error", err)
	}
	s.setState(d, StateTerminating)
	return true
}

// awaitExit waits until every handle has exited or killWait has passed.
func (s *Supervisor) awaitExit(handles []Handle) {
	deadline := time.NewTimer(s.killWait)
	defer deadline.Stop()
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-deadline.C:
			return
		}
	}
}

// reap marks a killed domain crashed if its process has exited. Must hold mu.
func (s *Supervisor) reap(d *domainProcess) bool {
	select {
	case <-d.handle.Done():
	default:
		return false
	}
	code := d.handle.ExitCode()
	d.lastExitCode = &code
	d.handle = nil
	s.setState(d, StateCrashed)
	return true
}

// applyPolicy decides what to do with a crashed domain. Must hold mu.
func (s *Supervisor) applyPolicy(d *domainProcess, now time.Time) {
	dec := policy.Decide(s.opts.Policy, policy.Record{
		RestartCount:  d.restartCount,
		LastRestartAt: d.lastRestartAt,
	}, now)

	switch dec.Action {
	case policy.Exhausted:
		s.fail(d, FailureRestartLimit, dec.Reason, now)
		s.setState(d, StateExhausted)
		s.alert(d.name, "critical", FailureRestartLimit,
			fmt.Sprintf("domain %s exhausted after %d restarts, manual intervention required", d.name, d.restartCount))

	case policy.Skip:
		s.logger.Debug("Restart deferred", "domain", d.name, "reason", dec.Reason, "retry_in", dec.RetryIn.Round(time.Second))

	case policy.Respawn:
		s.setState(d, StateRestarting)
		d.restartCount++
		metrics.IncRestarts(d.name)
		s.logger.Info("Restarting domain", "domain", d.name, "attempt", d.restartCount, "max", s.opts.Policy.MaxRestarts)
		s.spawn(d, now)
	}
}

// spawn launches d's process. Every attempt, including the first and failed
// ones, starts a new cooldown window. A launch failure leaves d crashed.
// Must hold mu.
func (s *Supervisor) spawn(d *domainProcess, now time.Time) {
	d.lastRestartAt = now
	if s.opts.Heartbeat != nil {
		if err := s.opts.Heartbeat.Remove(d.name); err != nil {
			s.logger.Warn("Failed to clear old heartbeat", "domain", d.name, "error", err)
		}
	}

	h, err := s.opts.Launcher.Launch(d.name, d.command)
	if err != nil {
		d.handle = nil
		s.fail(d, FailureSpawn, err.Error(), now)
		s.setState(d, StateCrashed)
		return
	}

	d.handle = h
	d.spawnedAt = now
	s.logger.Info("Domain started", "domain", d.name, "pid", h.Pid())
	s.setState(d, StateRunning)
}

// stopAll terminates every running domain and marks all non-exhausted
// domains stopped.
func (s *Supervisor) stopAll() {
	s.mu.Lock()
	var targets []shutdown.Target
	for _, name := range s.order {
		d := s.domains[name]
		switch {
		case d.handle != nil:
			targets = append(targets, d.handle)
		case d.state != StateExhausted:
			s.setState(d, StateStopped)
		}
	}
	s.mu.Unlock()

	s.publish(events.LifecycleEvent{
		Phase:     "stopping",
		Domains:   s.names(),
		Timestamp: s.timestamp(),
	})
	s.logger.Info("Stopping domains", "count", len(targets), "grace", s.opts.GracePeriod)

	coord := shutdown.NewCoordinator(s.logger)
	coord.OnTerminating = func(name string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.setState(s.domains[name], StateTerminating)
	}
	coord.OnStopped = func(name string, res shutdown.Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		d := s.domains[name]
		d.handle = nil
		code := res.ExitCode
		d.lastExitCode = &code
		if res.Forced {
			metrics.IncShutdownForced(name)
			s.fail(d, FailureShutdownTimeout, fmt.Sprintf("did not exit within %s, killed", s.opts.GracePeriod), s.now())
			s.alert(name, "warning", FailureShutdownTimeout,
				fmt.Sprintf("domain %s was force-killed during shutdown", name))
		}
		s.setState(d, StateStopped)
	}

	report := coord.Shutdown(context.Background(), targets, s.opts.GracePeriod)

	s.mu.Lock()
	s.report = report
	s.mu.Unlock()

	s.publish(events.LifecycleEvent{
		Phase:     "stopped",
		Domains:   s.names(),
		Message:   fmt.Sprintf("%d stopped, %d forced", len(report.Results), len(report.Forced())),
		Timestamp: s.timestamp(),
	})
}

// setState records a transition. Must hold mu.
func (s *Supervisor) setState(d *domainProcess, to State) {
	from := d.state
	if from == to {
		return
	}
	d.state = to
	metrics.SetDomainState(d.name, string(to))

	pid := 0
	if d.handle != nil {
		pid = d.handle.Pid()
	}
	s.logger.Debug("Domain state changed", "domain", d.name, "from", from, "to", to)
	s.publish(events.DomainStateChangedEvent{
		Domain:       d.name,
		From:         string(from),
		To:           string(to),
		RestartCount: d.restartCount,
		PID:          pid,
		Timestamp:    s.timestamp(),
	})
}

// fail records a failure. Must hold mu.
func (s *Supervisor) fail(d *domainProcess, kind FailureKind, msg string, now time.Time) {
	d.lastFailure = &Failure{Kind: kind, Message: msg, At: now}
	metrics.IncFailure(d.name, string(kind))

	level := slog.LevelWarn
	if kind == FailureRestartLimit || kind == FailureSpawn {
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, "Domain failure", "domain", d.name, "kind", kind, "detail", msg)

	ev := events.DomainFailureEvent{
		Domain:    d.name,
		Kind:      string(kind),
		Message:   msg,
		Timestamp: s.timestamp(),
	}
	if d.lastExitCode != nil {
		ev.ExitCode = *d.lastExitCode
	}
	s.publish(ev)
}

func (s *Supervisor) alert(domain, severity string, kind FailureKind, msg string) {
	s.logger.Error("Operator alert", "domain", domain, "severity", severity, "kind", kind, "message", msg)
	s.publish(events.AlertEvent{
		Domain:    domain,
		Severity:  severity,
		Kind:      string(kind),
		Message:   msg,
		Timestamp: s.timestamp(),
	})
}

func (s *Supervisor) publish(ev events.Event) {
	if s.opts.EventBus != nil {
		s.opts.EventBus.Publish(ev)
	}
}

func (s *Supervisor) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Supervisor) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
