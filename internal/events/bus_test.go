package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan DomainStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e DomainStateChangedEvent) {
		received <- e
	})
	defer unsub()

	event := DomainStateChangedEvent{
		Domain:    "trading",
		From:      "running",
		To:        "crashed",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.Domain != event.Domain || got.To != event.To {
		t.Errorf("Expected %+v, got %+v", event, got)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan AlertEvent, 1)
	received2 := make(chan AlertEvent, 1)

	unsub1 := bus.Subscribe(func(e AlertEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e AlertEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(AlertEvent{Domain: "trading", Severity: "critical"})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan DomainFailureEvent, 1)

	unsub := bus.Subscribe(func(e DomainFailureEvent) {
		received <- e
	})

	bus.Publish(DomainFailureEvent{Domain: "trading"})
	<-received

	unsub()

	bus.Publish(DomainFailureEvent{Domain: "job-tracker"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	alertReceived := make(chan bool, 1)
	lifecycleReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ AlertEvent) {
		alertReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ LifecycleEvent) {
		lifecycleReceived <- true
	})
	defer unsub2()

	bus.Publish(AlertEvent{Domain: "trading"})
	<-alertReceived

	select {
	case <-lifecycleReceived:
		t.Fatal("Lifecycle subscriber should NOT have received AlertEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(LifecycleEvent{Phase: "started"})
	<-lifecycleReceived

	select {
	case <-alertReceived:
		t.Fatal("Alert subscriber should NOT have received LifecycleEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ DomainStateChangedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(DomainStateChangedEvent{
					Domain:    "trading",
					To:        "running",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_UnknownHandler(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestEventJSONSerialization(t *testing.T) {
	tests := []struct {
		name  string
		event any
		key   string
	}{
		{"DomainStateChangedEvent", DomainStateChangedEvent{Domain: "trading", To: "running"}, "restart_count"},
		{"DomainFailureEvent", DomainFailureEvent{Domain: "trading", Kind: "heartbeat_stale"}, "kind"},
		{"AlertEvent", AlertEvent{Domain: "trading", Severity: "critical"}, "severity"},
		{"LifecycleEvent", LifecycleEvent{Phase: "started", Domains: []string{"trading"}}, "domains"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}

			if _, ok := result[tt.key]; !ok {
				t.Errorf("expected key %q in %s", tt.key, data)
			}
		})
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[AlertEvent](bus, ch)
	defer unsub()

	bus.Publish(AlertEvent{Domain: "trading", Kind: "restart_limit_exceeded"})

	received := <-ch
	alert, ok := received.(AlertEvent)
	if !ok {
		t.Fatalf("Expected AlertEvent, got %T", received)
	}
	if alert.Domain != "trading" {
		t.Errorf("Expected domain trading, got %s", alert.Domain)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[DomainStateChangedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(DomainStateChangedEvent{Domain: "trading"})
		done <- true
	}()

	<-done
}
