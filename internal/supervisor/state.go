package supervisor

import "time"

// State is the lifecycle state of a domain.
type State string

// Domain states.
const (
	StateNotStarted  State = "not_started" // Registered, never spawned
	StateRunning     State = "running"     // Process alive
	StateCrashed     State = "crashed"     // Exited or killed, awaiting restart decision
	StateRestarting  State = "restarting"  // Respawn in progress
	StateExhausted   State = "exhausted"   // Restart limit reached, never respawned
	StateTerminating State = "terminating" // Asked to exit or killed, exit not yet observed
	StateStopped     State = "stopped"     // Exited during shutdown
)

// AllStates lists every state in lifecycle order.
var AllStates = []State{
	StateNotStarted,
	StateRunning,
	StateCrashed,
	StateRestarting,
	StateExhausted,
	StateTerminating,
	StateStopped,
}

// Terminal reports whether the supervisor will never act on a domain in s again.
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateStopped
}

// FailureKind classifies a detected failure.
type FailureKind string

// Failure kinds.
const (
	FailureSpawn           FailureKind = "spawn_failure"
	FailureUnexpectedExit  FailureKind = "unexpected_exit"
	FailureHeartbeatStale  FailureKind = "heartbeat_stale"
	FailureRestartLimit    FailureKind = "restart_limit_exceeded"
	FailureShutdownTimeout FailureKind = "shutdown_timeout"
)

// Failure is the most recent problem recorded for a domain.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// DomainStatus is a point-in-time copy of one domain's bookkeeping.
type DomainStatus struct {
	Name          string    `json:"name"`
	Command       string    `json:"command"`
	State         State     `json:"state"`
	PID           int       `json:"pid,omitempty"`
	RestartCount  int       `json:"restart_count"`
	LastRestartAt time.Time `json:"last_restart_at"`
	StartedAt     time.Time `json:"started_at"`
	LastExitCode  *int      `json:"last_exit_code,omitempty"`
	LastFailure   *Failure  `json:"last_failure,omitempty"`

	// HeartbeatAge is the time since the last heartbeat; nil when none is recorded.
	HeartbeatAge *time.Duration `json:"heartbeat_age,omitempty"`
}

// domainProcess is the registry entry for one domain. Guarded by Supervisor.mu.
type domainProcess struct {
	name    string
	command string
	state   State
	handle  Handle

	restartCount  int
	lastRestartAt time.Time
	spawnedAt     time.Time

	lastExitCode *int
	lastFailure  *Failure
}

func (d *domainProcess) status() DomainStatus {
	st := DomainStatus{
		Name:          d.name,
		Command:       d.command,
		State:         d.state,
		RestartCount:  d.restartCount,
		LastRestartAt: d.lastRestartAt,
		StartedAt:     d.spawnedAt,
	}
	if d.handle != nil {
		st.PID = d.handle.Pid()
	}
	if d.lastExitCode != nil {
		code := *d.lastExitCode
		st.LastExitCode = &code
	}
	if d.lastFailure != nil {
		f := *d.lastFailure
		st.LastFailure = &f
	}
	return st
}
