package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig tunes the restart behaviour of helper services.
type TreeConfig struct {
	// FailureThreshold is the failure count that triggers backoff.
	FailureThreshold float64

	// FailureDecay is the failure count half-life, in seconds.
	FailureDecay float64

	// FailureBackoff is how long the tree waits once over the threshold.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long each service may take to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns the settings used by holus.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor for helper services.
type Tree struct {
	root   *suture.Supervisor
	logger *slog.Logger
}

// NewTree creates a tree. Zero fields in cfg take their defaults.
func NewTree(logger *slog.Logger, cfg TreeConfig) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	handler := &sutureslog.Handler{Logger: logger}
	root := suture.New("holus", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})

	return &Tree{root: root, logger: logger}
}

// Add registers a service. Services added after Serve start immediately.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	t.logger.Debug("Adding service", "service", svc)
	return t.root.Add(svc)
}

// ServeBackground runs the tree until ctx is done. The returned channel
// yields once every service has stopped.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// Unstopped lists services that missed the shutdown timeout.
func (t *Tree) Unstopped() []string {
	report, err := t.root.UnstoppedServiceReport()
	if err != nil {
		t.logger.Debug("Unstopped service report unavailable", "error", err)
		return nil
	}
	names := make([]string, 0, len(report))
	for _, u := range report {
		names = append(names, u.Name)
	}
	return names
}
