// Package models holds request and response bodies for the HTTP API.
package models

// Health check models
type HealthData struct {
	Status   string         `json:"status" example:"ok" doc:"ok, degraded or stopping"`
	Message  string         `json:"message" example:"3 domains running" doc:"Status message"`
	Stopping bool           `json:"stopping" doc:"Whether shutdown has begun"`
	States   map[string]int `json:"states" doc:"Number of domains in each state"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Release version"`
	GitCommit string `json:"git_commit" doc:"Source revision"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"GOOS/GOARCH"`
}

type VersionResponse struct {
	Body VersionData
}

// Domain models
type FailureInfo struct {
	Kind    string `json:"kind" example:"unexpected_exit" doc:"Failure kind"`
	Message string `json:"message" example:"exited with code 1" doc:"Failure detail"`
	At      string `json:"at" example:"2025-01-27T10:30:00Z" doc:"Detection time"`
}

type DomainInfo struct {
	Name                string       `json:"name" example:"trading" doc:"Domain name"`
	Command             string       `json:"command" example:"python agents/trading/orchestrator.py" doc:"Worker command line"`
	State               string       `json:"state" example:"running" doc:"Lifecycle state"`
	PID                 int          `json:"pid,omitempty" example:"4242" doc:"Process id when running"`
	RestartCount        int          `json:"restart_count" example:"1" doc:"Restart attempts consumed"`
	LastRestartAt       string       `json:"last_restart_at,omitempty" example:"2025-01-27T10:30:00Z" doc:"Time of the last restart attempt"`
	StartedAt           string       `json:"started_at,omitempty" example:"2025-01-27T10:30:00Z" doc:"Time the current process started"`
	LastExitCode        *int         `json:"last_exit_code,omitempty" example:"1" doc:"Exit code of the previous process"`
	LastFailure         *FailureInfo `json:"last_failure,omitempty" doc:"Most recent failure"`
	HeartbeatAgeSeconds *float64     `json:"heartbeat_age_seconds,omitempty" example:"12.5" doc:"Seconds since the last heartbeat"`
}

type DomainListData struct {
	Domains []DomainInfo `json:"domains" doc:"Every registered domain in name order"`
	Count   int          `json:"count" example:"3" doc:"Number of domains"`
}

type DomainListResponse struct {
	Body DomainListData
}

type DomainRequest struct {
	Name string `path:"name" example:"trading" doc:"Domain name"`
}

type DomainResponse struct {
	Body DomainInfo
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"10000" doc:"Maximum entries to return"`
	Module string `query:"module" example:"supervisor" doc:"Only entries from this module"`
	Level  string `query:"level" doc:"Minimum level"`
}

type LogEntry struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogsData struct {
	Entries []LogEntry `json:"entries" doc:"Most recent entries, oldest first"`
	Count   int        `json:"count" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
