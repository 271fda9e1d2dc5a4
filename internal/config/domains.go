package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/holus/internal/mailbox"
	"github.com/smazurov/holus/internal/process"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// DomainConfig is one [domains.<name>] table.
type DomainConfig struct {
	Command string `toml:"command" json:"command"`
	// Enabled defaults to true when omitted.
	Enabled *bool `toml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the domain should be supervised.
func (d DomainConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Domains is the set of configured domains keyed by name.
type Domains map[string]DomainConfig

// Names returns all domain names in sorted order.
func (d Domains) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enabled returns the enabled domain names in sorted order.
func (d Domains) Enabled() []string {
	var names []string
	for _, name := range d.Names() {
		if d[name].IsEnabled() {
			names = append(names, name)
		}
	}
	return names
}

// LoadDomains reads the [domains] table from a TOML file. A missing file
// yields no domains.
func LoadDomains(path string) (Domains, error) {
	if path == "" {
		return Domains{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Domains{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read domains config: %w", err)
	}

	var raw struct {
		Domains Domains `toml:"domains"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse domains config: %w", err)
	}
	if raw.Domains == nil {
		raw.Domains = Domains{}
	}
	return raw.Domains, nil
}

// Supervisor holds the validated [supervisor] settings.
type Supervisor struct {
	MaxRestarts             int
	Cooldown                time.Duration
	HealthCheckInterval     time.Duration
	HeartbeatStaleThreshold time.Duration
	GracePeriod             time.Duration
	StateDir                string
}

// Validate checks the supervisor settings and domains. Every problem is
// reported; the returned error wraps ErrInvalidConfig. A health check
// interval longer than the cooldown is allowed but logged, since recovery
// then waits for the next tick after the cooldown.
func Validate(s Supervisor, domains Domains, logger *slog.Logger) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if s.HealthCheckInterval <= 0 {
		add("health_check_interval_seconds must be positive, got %s", s.HealthCheckInterval)
	}
	if s.HeartbeatStaleThreshold <= s.HealthCheckInterval {
		add("heartbeat_stale_threshold_seconds (%s) must be greater than health_check_interval_seconds (%s)",
			s.HeartbeatStaleThreshold, s.HealthCheckInterval)
	}
	if s.MaxRestarts < 0 {
		add("max_restarts must not be negative, got %d", s.MaxRestarts)
	}
	if s.Cooldown < 0 {
		add("cooldown_seconds must not be negative, got %s", s.Cooldown)
	}
	if s.GracePeriod <= 0 {
		add("grace_period_seconds must be positive, got %s", s.GracePeriod)
	}
	if s.StateDir == "" {
		add("state_dir must be set")
	}

	for _, name := range domains.Names() {
		d := domains[name]
		if !mailbox.ValidDomain(name) {
			add("domain %q: name must match [a-z0-9][a-z0-9_-]*", name)
		}
		if !d.IsEnabled() {
			continue
		}
		if _, err := process.ParseCommand(d.Command); err != nil {
			add("domain %q: command: %w", name, err)
		}
	}
	if len(domains.Enabled()) == 0 {
		add("no enabled domains configured")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	if logger != nil && s.HealthCheckInterval > s.Cooldown {
		logger.Warn("Health check interval exceeds restart cooldown; restarts happen on the next tick after cooldown",
			"interval", s.HealthCheckInterval, "cooldown", s.Cooldown)
	}
	return nil
}

// ResolveCommands checks that the executable of every enabled domain can be
// found. Returns one error per unresolved domain.
func ResolveCommands(domains Domains) []error {
	var errs []error
	for _, name := range domains.Enabled() {
		args, err := process.ParseCommand(domains[name].Command)
		if err != nil {
			errs = append(errs, fmt.Errorf("domain %q: %w", name, err))
			continue
		}
		if _, err := exec.LookPath(args[0]); err != nil {
			errs = append(errs, fmt.Errorf("domain %q: %w", name, err))
		}
	}
	return errs
}
