package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestRequestLogLevel(t *testing.T) {
	tests := []struct {
		method string
		path   string
		status int
		want   slog.Level
	}{
		{http.MethodGet, "/api/domains", 200, slog.LevelInfo},
		{http.MethodGet, "/api/health", 200, slog.LevelDebug},
		{http.MethodGet, "/api/logs", 200, slog.LevelDebug},
		{http.MethodGet, "/api/logs/stream", 200, slog.LevelDebug},
		{http.MethodOptions, "/api/domains", 204, slog.LevelDebug},
		{http.MethodGet, "/api/domains/unknown", 404, slog.LevelWarn},
		{http.MethodGet, "/api/health", 401, slog.LevelWarn},
		{http.MethodGet, "/api/domains", 500, slog.LevelError},
	}

	for _, tt := range tests {
		if got := requestLogLevel(tt.method, tt.path, tt.status); got != tt.want {
			t.Errorf("requestLogLevel(%s %s %d) = %v, want %v", tt.method, tt.path, tt.status, got, tt.want)
		}
	}
}

func TestRedactQuery(t *testing.T) {
	q, _ := url.ParseQuery("auth=YWRtaW46c2VjcmV0&level=warn")

	got := redactQuery(q)
	if strings.Contains(got, "YWRtaW46c2VjcmV0") {
		t.Errorf("credentials leaked into %q", got)
	}
	if !strings.Contains(got, "level=warn") || !strings.Contains(got, "auth=redacted") {
		t.Errorf("redactQuery = %q", got)
	}

	plain, _ := url.ParseQuery("level=error")
	if got := redactQuery(plain); got != "level=error" {
		t.Errorf("redactQuery = %q, want level=error", got)
	}
}
