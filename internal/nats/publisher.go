package nats

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/holus/internal/events"
)

// Publisher forwards supervisor events from the event bus to NATS.
// Gracefully degrades when NATS is unavailable: events are dropped, never queued.
type Publisher struct {
	url       string
	conn      *nats.Conn
	logger    *slog.Logger
	host      string
	mu        sync.RWMutex
	connected bool
	unsubs    []func()
}

// NewPublisher creates a publisher for the server at url.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	host, _ := os.Hostname()

	return &Publisher{
		url:    url,
		host:   host,
		logger: logger.With("component", "nats-publisher"),
	}
}

// Connect establishes the connection. The returned error is informational:
// the publisher stays usable and simply drops messages while offline.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := nats.Connect(p.url,
		nats.Name("holus-supervisor"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.setConnected(false)
			if err != nil {
				p.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.setConnected(true)
			p.logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		p.logger.Warn("Failed to connect to NATS, alerts will only be logged", "url", p.url, "error", err)
		return err
	}

	p.conn = conn
	p.connected = true
	p.logger.Info("Connected to NATS", "url", p.url)
	return nil
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// Attach subscribes the publisher to bus.
func (p *Publisher) Attach(bus *events.Bus) {
	unsubs := []func(){
		bus.Subscribe(func(e events.DomainStateChangedEvent) {
			p.publish(SubjectDomainState(e.Domain), StateMessage{
				Domain:       e.Domain,
				From:         e.From,
				To:           e.To,
				RestartCount: e.RestartCount,
				PID:          e.PID,
				Timestamp:    e.Timestamp,
			})
		}),
		bus.Subscribe(func(e events.DomainFailureEvent) {
			p.publish(SubjectDomainFailure(e.Domain), FailureMessage{
				Domain:    e.Domain,
				Kind:      e.Kind,
				Message:   e.Message,
				ExitCode:  e.ExitCode,
				Timestamp: e.Timestamp,
			})
		}),
		bus.Subscribe(func(e events.AlertEvent) {
			p.publish(SubjectAlerts, AlertMessage{
				Domain:    e.Domain,
				Severity:  e.Severity,
				Kind:      e.Kind,
				Message:   e.Message,
				Timestamp: e.Timestamp,
			})
		}),
		bus.Subscribe(func(e events.LifecycleEvent) {
			p.publish(SubjectLifecycle, LifecycleMessage{
				Phase:     e.Phase,
				Host:      p.host,
				Domains:   e.Domains,
				Message:   e.Message,
				Timestamp: e.Timestamp,
			})
			// lifecycle notices are rare and matter most on shutdown
			if e.Phase == "stopped" {
				p.Flush()
			}
		}),
	}

	p.mu.Lock()
	p.unsubs = append(p.unsubs, unsubs...)
	p.mu.Unlock()
}

type marshaler interface {
	Marshal() ([]byte, error)
}

func (p *Publisher) publish(subject string, m marshaler) {
	p.mu.RLock()
	conn := p.conn
	connected := p.connected
	p.mu.RUnlock()

	if conn == nil || !connected {
		return
	}

	data, err := m.Marshal()
	if err != nil {
		p.logger.Warn("Failed to marshal message", "subject", subject, "error", err)
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish", "subject", subject, "error", err)
	}
}

// Flush waits until buffered messages reach the server.
func (p *Publisher) Flush() {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn == nil {
		return
	}
	if err := conn.FlushTimeout(2 * time.Second); err != nil {
		p.logger.Debug("NATS flush failed", "error", err)
	}
}

// IsConnected returns true if connected to NATS.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.conn != nil
}

// Close detaches from the bus and closes the connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, unsub := range p.unsubs {
		unsub()
	}
	p.unsubs = nil

	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
		p.conn = nil
	}
	p.connected = false
	p.logger.Debug("NATS publisher closed")
}
