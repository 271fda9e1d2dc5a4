package nats

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Subjects for NATS topics.
const (
	SubjectDomainsPrefix = "holus.domains"
	SubjectAlerts        = "holus.alerts"
	SubjectLifecycle     = "holus.supervisor.lifecycle"
	SubjectStatus        = "holus.status"
)

// SubjectDomainState returns the subject for a domain's state transitions.
func SubjectDomainState(domain string) string {
	return fmt.Sprintf("%s.%s.state", SubjectDomainsPrefix, domain)
}

// SubjectDomainFailure returns the subject for a domain's failures.
func SubjectDomainFailure(domain string) string {
	return fmt.Sprintf("%s.%s.failure", SubjectDomainsPrefix, domain)
}

// StateMessage is a domain state transition.
type StateMessage struct {
	Domain       string `json:"domain"`
	From         string `json:"from"`
	To           string `json:"to"`
	RestartCount int    `json:"restart_count"`
	PID          int    `json:"pid,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// FailureMessage is a detected domain failure.
type FailureMessage struct {
	Domain    string `json:"domain"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	ExitCode  int    `json:"exit_code,omitempty"`
	Timestamp string `json:"timestamp"`
}

// AlertMessage needs operator attention.
type AlertMessage struct {
	Domain    string `json:"domain"`
	Severity  string `json:"severity"` // warning, critical
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// LifecycleMessage marks supervisor startup and shutdown.
type LifecycleMessage struct {
	Phase     string   `json:"phase"` // started, stopping, stopped
	Host      string   `json:"host,omitempty"`
	Domains   []string `json:"domains"`
	Message   string   `json:"message,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m StateMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

// Marshal serializes the message to JSON.
func (m FailureMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

// Marshal serializes the message to JSON.
func (m AlertMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

// Marshal serializes the message to JSON.
func (m LifecycleMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

// UnmarshalState deserializes a StateMessage from JSON.
func UnmarshalState(data []byte) (StateMessage, error) {
	var m StateMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalAlert deserializes an AlertMessage from JSON.
func UnmarshalAlert(data []byte) (AlertMessage, error) {
	var m AlertMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalLifecycle deserializes a LifecycleMessage from JSON.
func UnmarshalLifecycle(data []byte) (LifecycleMessage, error) {
	var m LifecycleMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
