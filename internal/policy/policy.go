// Package policy decides whether a crashed domain may be respawned.
//
// The decision is a pure function of the restart bookkeeping and the current
// time. There are no timers: the supervisor re-evaluates every crashed domain
// on each monitoring tick, so a domain refused for cooldown is retried on the
// first tick after the cooldown has elapsed.
package policy

import (
	"fmt"
	"time"
)

// Defaults for Config.
const (
	DefaultMaxRestarts = 5
	DefaultCooldown    = 60 * time.Second
)

// Action is the outcome of a restart decision.
type Action string

// Restart actions.
const (
	Respawn   Action = "respawn"
	Skip      Action = "skip"
	Exhausted Action = "exhausted"
)

// Config bounds how often a domain may be restarted.
type Config struct {
	// MaxRestarts is the number of respawn attempts allowed per supervisor run.
	MaxRestarts int
	// Cooldown is the minimum time between two spawn attempts of one domain.
	Cooldown time.Duration
}

// DefaultConfig returns the default restart bounds.
func DefaultConfig() Config {
	return Config{MaxRestarts: DefaultMaxRestarts, Cooldown: DefaultCooldown}
}

// Record is the restart history of one domain. LastRestartAt is the time of
// the most recent spawn attempt, the initial one included; it is zero only
// for a domain that was never spawned.
type Record struct {
	RestartCount  int
	LastRestartAt time.Time
}

// Decision is returned by Decide.
type Decision struct {
	Action Action
	Reason string
	// RetryIn is the remaining cooldown when Action is Skip.
	RetryIn time.Duration
}

// Decide applies the restart policy to a crashed domain.
func Decide(cfg Config, rec Record, now time.Time) Decision {
	if rec.RestartCount >= cfg.MaxRestarts {
		return Decision{
			Action: Exhausted,
			Reason: fmt.Sprintf("restart limit reached (%d/%d)", rec.RestartCount, cfg.MaxRestarts),
		}
	}

	if !rec.LastRestartAt.IsZero() {
		if since := now.Sub(rec.LastRestartAt); since < cfg.Cooldown {
			return Decision{
				Action:  Skip,
				Reason:  fmt.Sprintf("cooldown active (%s since last restart)", since.Round(time.Second)),
				RetryIn: cfg.Cooldown - since,
			}
		}
	}

	return Decision{
		Action: Respawn,
		Reason: fmt.Sprintf("restart attempt %d/%d", rec.RestartCount+1, cfg.MaxRestarts),
	}
}
