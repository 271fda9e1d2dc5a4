package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/holus/internal/events"
)

// registerSSERoutes registers the supervisor event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time domain state changes, failures, alerts and lifecycle notices",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"domain-state":   events.DomainStateChangedEvent{},
		"domain-failure": events.DomainFailureEvent{},
		"alert":          events.AlertEvent{},
		"lifecycle":      events.LifecycleEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.DomainStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DomainFailureEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.AlertEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.LifecycleEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(events.LifecycleEvent{
			Phase:     "connected",
			Message:   "SSE connection established",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
