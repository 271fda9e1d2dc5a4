// Package nats publishes supervisor events to NATS and answers status
// requests over it.
//
// # Architecture
//
//   - Server: optional embedded NATS server started by the supervisor
//   - Publisher: forwards domain state changes, failures, alerts and
//     lifecycle notices from the event bus to NATS
//   - StatusResponder: answers request/reply status queries
//
// NATS is an outbound notification channel only. Domains talk to each other
// through the file mailbox, never through NATS.
//
// # Subject Hierarchy
//
//	holus.domains.{domain}.state     # state transitions
//	holus.domains.{domain}.failure   # detected failures
//	holus.alerts                     # operator alerts (exhausted, forced kill)
//	holus.supervisor.lifecycle       # started, stopping, stopped
//	holus.status                     # request/reply: current domain table
//
// Messages are fire-and-forget (core NATS, no JetStream). The publisher
// degrades gracefully when no server is reachable.
//
// # Debugging with nats CLI
//
// Watch everything:
//
//	nats sub "holus.>"
//
// Watch alerts only:
//
//	nats sub "holus.alerts"
//
// Ask for the domain table:
//
//	nats req holus.status '' | jq .
//
// # Message Formats
//
// StateMessage (holus.domains.{domain}.state):
//
//	{
//	  "domain": "trading",
//	  "from": "running",
//	  "to": "crashed",
//	  "restart_count": 1,
//	  "timestamp": "2024-01-01T12:00:00Z"
//	}
//
// AlertMessage (holus.alerts):
//
//	{
//	  "domain": "trading",
//	  "severity": "critical",
//	  "kind": "restart_limit_exceeded",
//	  "message": "domain trading exhausted after 5 restarts, manual intervention required",
//	  "timestamp": "2024-01-01T12:00:00Z"
//	}
package nats
