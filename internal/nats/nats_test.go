package nats

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/holus/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(ServerOptions{
		Port:   RandomPort,
		Name:   "test-server",
		Logger: testLogger(),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

func subscribe(t *testing.T, url, subject string) chan *nats.Msg {
	t.Helper()
	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("Failed to connect subscriber: %v", err)
	}
	t.Cleanup(conn.Close)

	ch := make(chan *nats.Msg, 16)
	if _, err := conn.ChanSubscribe(subject, ch); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatal(err)
	}
	return ch
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(ServerOptions{Port: RandomPort, Logger: testLogger()})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if !server.IsRunning() {
		t.Error("Server should be running after Start()")
	}
	if server.ClientURL() == "" {
		t.Error("ClientURL should not be empty")
	}

	server.Stop()

	if server.IsRunning() {
		t.Error("Server should not be running after Stop()")
	}
}

func TestPublisherGracefulDegradation(t *testing.T) {
	p := NewPublisher("nats://127.0.0.1:59999", testLogger())
	if err := p.Connect(); err == nil {
		t.Error("Connect should fail with non-existent server")
	}

	bus := events.New()
	p.Attach(bus)
	bus.Publish(events.AlertEvent{Domain: "trading"})

	if p.IsConnected() {
		t.Error("Publisher should not be connected")
	}
	p.Close()
}

func TestPublisherForwardsAlerts(t *testing.T) {
	server := startServer(t)
	alerts := subscribe(t, server.ClientURL(), SubjectAlerts)

	p := NewPublisher(server.ClientURL(), testLogger())
	if err := p.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer p.Close()

	bus := events.New()
	p.Attach(bus)

	bus.Publish(events.AlertEvent{
		Domain:    "trading",
		Severity:  "critical",
		Kind:      "restart_limit_exceeded",
		Message:   "domain trading exhausted after 5 restarts",
		Timestamp: "2025-01-27T10:30:00Z",
	})

	select {
	case msg := <-alerts:
		alert, err := UnmarshalAlert(msg.Data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if alert.Domain != "trading" || alert.Kind != "restart_limit_exceeded" || alert.Severity != "critical" {
			t.Errorf("unexpected alert %+v", alert)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert not published")
	}
}

func TestPublisherForwardsStateAndLifecycle(t *testing.T) {
	server := startServer(t)
	states := subscribe(t, server.ClientURL(), SubjectDomainsPrefix+".*.state")
	lifecycle := subscribe(t, server.ClientURL(), SubjectLifecycle)

	p := NewPublisher(server.ClientURL(), testLogger())
	if err := p.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer p.Close()

	bus := events.New()
	p.Attach(bus)

	bus.Publish(events.DomainStateChangedEvent{Domain: "job-tracker", From: "running", To: "crashed"})
	bus.Publish(events.LifecycleEvent{Phase: "started", Domains: []string{"job-tracker"}})

	select {
	case msg := <-states:
		if msg.Subject != "holus.domains.job-tracker.state" {
			t.Errorf("subject = %s", msg.Subject)
		}
		st, err := UnmarshalState(msg.Data)
		if err != nil {
			t.Fatal(err)
		}
		if st.From != "running" || st.To != "crashed" {
			t.Errorf("unexpected state %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("state not published")
	}

	select {
	case msg := <-lifecycle:
		lc, err := UnmarshalLifecycle(msg.Data)
		if err != nil {
			t.Fatal(err)
		}
		if lc.Phase != "started" || len(lc.Domains) != 1 {
			t.Errorf("unexpected lifecycle %+v", lc)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle not published")
	}
}

func TestStatusRequestReply(t *testing.T) {
	server := startServer(t)

	type row struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	r := NewStatusResponder(server.ClientURL(), func() any {
		return []row{{Name: "trading", State: "running"}}
	}, testLogger())
	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop()

	var got []row
	if err := RequestStatus(server.ClientURL(), 2*time.Second, &got); err != nil {
		t.Fatalf("RequestStatus failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "trading" || got[0].State != "running" {
		t.Errorf("got %+v", got)
	}
}

func TestStatusRequestNoResponder(t *testing.T) {
	server := startServer(t)
	var out any
	if err := RequestStatus(server.ClientURL(), 500*time.Millisecond, &out); err == nil {
		t.Error("expected error without responder")
	}
}

func TestSubjects(t *testing.T) {
	if got := SubjectDomainState("trading"); got != "holus.domains.trading.state" {
		t.Errorf("SubjectDomainState = %s", got)
	}
	if got := SubjectDomainFailure("trading"); got != "holus.domains.trading.failure" {
		t.Errorf("SubjectDomainFailure = %s", got)
	}
}
