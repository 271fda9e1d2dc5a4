package events

// Event type constants for kelindar/event.
const (
	TypeDomainStateChanged uint32 = iota + 1
	TypeDomainFailure
	TypeAlert
	TypeLifecycle
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DomainStateChangedEvent is published on every domain state transition.
type DomainStateChangedEvent struct {
	Domain       string `json:"domain" example:"trading" doc:"Domain name"`
	From         string `json:"from" example:"running" doc:"Previous state"`
	To           string `json:"to" example:"crashed" doc:"New state"`
	RestartCount int    `json:"restart_count" example:"1" doc:"Restart attempts so far"`
	PID          int    `json:"pid,omitempty" example:"4242" doc:"Process id when running"`
	Timestamp    string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition time"`
}

// Type returns the event type identifier for DomainStateChangedEvent.
func (e DomainStateChangedEvent) Type() uint32 { return TypeDomainStateChanged }

// DomainFailureEvent is published when a failure is detected for a domain.
type DomainFailureEvent struct {
	Domain    string `json:"domain" example:"trading" doc:"Domain name"`
	Kind      string `json:"kind" example:"unexpected_exit" doc:"Failure kind"`
	Message   string `json:"message" example:"exited with code 1" doc:"Failure detail"`
	ExitCode  int    `json:"exit_code,omitempty" example:"1" doc:"Exit code when known"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Detection time"`
}

// Type returns the event type identifier for DomainFailureEvent.
func (e DomainFailureEvent) Type() uint32 { return TypeDomainFailure }

// AlertEvent needs operator attention: a domain gave up restarting or had
// to be killed during shutdown.
type AlertEvent struct {
	Domain    string `json:"domain" example:"trading" doc:"Domain name"`
	Severity  string `json:"severity" example:"critical" doc:"warning or critical"`
	Kind      string `json:"kind" example:"restart_limit_exceeded" doc:"Failure kind"`
	Message   string `json:"message" doc:"Human readable alert"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Alert time"`
}

// Type returns the event type identifier for AlertEvent.
func (e AlertEvent) Type() uint32 { return TypeAlert }

// LifecycleEvent marks supervisor startup and shutdown.
type LifecycleEvent struct {
	Phase     string   `json:"phase" example:"started" doc:"started, stopping or stopped"`
	Domains   []string `json:"domains" doc:"Registered domains"`
	Message   string   `json:"message,omitempty" doc:"Detail"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event time"`
}

// Type returns the event type identifier for LifecycleEvent.
func (e LifecycleEvent) Type() uint32 { return TypeLifecycle }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
