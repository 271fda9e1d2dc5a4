// Package shutdown stops a set of processes in parallel: every target is
// asked to terminate at once, each gets the same grace period, and any
// target still alive afterwards is killed.
package shutdown

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultKillWait bounds the wait for a target to exit after it was killed.
const DefaultKillWait = 5 * time.Second

// Target is a running process that can be stopped.
type Target interface {
	Name() string
	// Terminate requests a graceful exit.
	Terminate() error
	// Kill forces the process to exit.
	Kill() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// ExitCode is valid once Done is closed.
	ExitCode() int
}

// Result describes how one target stopped.
type Result struct {
	Name     string        `json:"name"`
	ExitCode int           `json:"exit_code"`
	Forced   bool          `json:"forced"`
	Elapsed  time.Duration `json:"elapsed"`
	// Lost is set when the target did not exit even after being killed.
	Lost bool `json:"lost,omitempty"`
}

// Report is the outcome of a Shutdown call.
type Report struct {
	Results []Result      `json:"results"`
	Elapsed time.Duration `json:"elapsed"`
}

// Forced returns the names of targets that had to be killed.
func (r Report) Forced() []string {
	var names []string
	for _, res := range r.Results {
		if res.Forced {
			names = append(names, res.Name)
		}
	}
	return names
}

// Coordinator runs parallel shutdowns.
type Coordinator struct {
	logger *slog.Logger

	// OnTerminating is called before a target is asked to exit.
	OnTerminating func(name string)
	// OnStopped is called once a target has exited or been given up on.
	OnStopped func(name string, res Result)
	// KillWait bounds the wait after Kill. Defaults to DefaultKillWait.
	KillWait time.Duration
}

// NewCoordinator returns a Coordinator that logs through logger.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{logger: logger, KillWait: DefaultKillWait}
}

// Shutdown terminates all targets in parallel and waits up to grace for each.
// Targets still running after grace are killed and reported as forced. A
// cancelled ctx cuts the grace period short. Shutdown never fails: problems
// are logged and reflected in the report.
func (c *Coordinator) Shutdown(ctx context.Context, targets []Target, grace time.Duration) Report {
	start := time.Now()
	results := make([]Result, len(targets))

	var g errgroup.Group
	var mu sync.Mutex // serializes callbacks
	for i, t := range targets {
		g.Go(func() error {
			res := c.stop(ctx, t, grace, &mu)
			results[i] = res
			if c.OnStopped != nil {
				mu.Lock()
				c.OnStopped(t.Name(), res)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	report := Report{Results: results, Elapsed: time.Since(start)}

	if forced := report.Forced(); len(forced) > 0 {
		c.logger.Warn("Shutdown complete with forced kills", "forced", forced, "elapsed", report.Elapsed)
	} else {
		c.logger.Info("Shutdown complete", "targets", len(targets), "elapsed", report.Elapsed)
	}
	return report
}

func (c *Coordinator) stop(ctx context.Context, t Target, grace time.Duration, mu *sync.Mutex) Result {
	name := t.Name()
	logger := c.logger.With("domain", name)
	start := time.Now()
	res := Result{Name: name}

	if c.OnTerminating != nil {
		mu.Lock()
		c.OnTerminating(name)
		mu.Unlock()
	}

	if err := t.Terminate(); err != nil {
		logger.Warn("Failed to request termination", "error", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-t.Done():
		res.ExitCode = t.ExitCode()
		res.Elapsed = time.Since(start)
		logger.Info("Domain stopped", "exit_code", res.ExitCode, "elapsed", res.Elapsed)
		return res
	case <-timer.C:
	case <-ctx.Done():
	}

	res.Forced = true
	logger.Warn("Domain did not stop within grace period, killing", "grace", grace)
	if err := t.Kill(); err != nil {
		logger.Error("Failed to kill domain", "error", err)
	}

	killWait := c.KillWait
	if killWait <= 0 {
		killWait = DefaultKillWait
	}
	select {
	case <-t.Done():
		res.ExitCode = t.ExitCode()
	case <-time.After(killWait):
		res.Lost = true
		res.ExitCode = -1
		logger.Error("Domain did not exit after kill")
	}
	res.Elapsed = time.Since(start)
	return res
}
