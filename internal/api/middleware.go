package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// requestLogLevel picks the level for a finished request. Health polls,
// log reads and preflights stay at debug so they do not crowd the log
// buffer they are reading.
func requestLogLevel(method, path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case method == http.MethodOptions,
		path == "/api/health",
		strings.HasPrefix(path, "/api/logs"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// redactQuery hides the auth parameter EventSource clients send credentials in.
func redactQuery(q url.Values) string {
	if q.Has("auth") {
		q.Set("auth", "redacted")
	}
	return q.Encode()
}

// logRequests logs each request once it has been served.
func (s *Server) logRequests(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)

	u := ctx.URL()
	method := ctx.Method()
	status := ctx.Status()

	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", u.Path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if u.RawQuery != "" {
		attrs = append(attrs, slog.String("query", redactQuery(u.Query())))
	}

	s.httpLogger.LogAttrs(ctx.Context(), requestLogLevel(method, u.Path, status), "HTTP request", attrs...)
}
