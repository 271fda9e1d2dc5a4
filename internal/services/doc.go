// Package services runs the long-lived helpers around the domain supervisor
// (API server, metrics collection, NATS status replies) under a suture tree,
// so a helper that fails is restarted with backoff instead of taking the
// process down with it.
//
// Domain workers are not managed here. Their restart budget and cooldown are
// owned by the supervisor package; this tree only covers holus's own parts.
package services
