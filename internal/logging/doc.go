// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// Logging is built on log/slog. Every subsystem asks for its own module logger
// and the level of each module can be raised or lowered independently:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"supervisor": "debug",
//			"mailbox":    "warn",
//		},
//	})
//
//	logger := logging.GetLogger("supervisor").With("domain", "trading")
//	logger.Info("Domain spawned", "pid", 4242)
//
// Loggers handed out before Initialize keep working; their level is updated in
// place once the configuration is known.
//
// # Output Destinations
//
//	Journal available + stdout available → MultiHandler (both)
//	Journal available only              → JournalHandler
//	Stdout available only               → TextHandler or JSONHandler
//
// Every handler chain also feeds an in-memory ring buffer that backs the
// /api/logs endpoint.
//
// When running under systemd:
//
//	journalctl -t holus MODULE=supervisor
//	journalctl -t holus DOMAIN=trading -f
package logging
