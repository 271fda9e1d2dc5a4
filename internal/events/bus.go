package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(AlertEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case DomainStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case DomainFailureEvent:
		event.Publish(b.dispatcher, e)
	case AlertEvent:
		event.Publish(b.dispatcher, e)
	case LifecycleEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e AlertEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DomainStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DomainFailureEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AlertEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LifecycleEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

