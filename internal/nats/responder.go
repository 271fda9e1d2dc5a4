package nats

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// StatusFunc returns the value sent in reply to a status request.
type StatusFunc func() any

// StatusResponder answers requests on SubjectStatus.
type StatusResponder struct {
	url    string
	status StatusFunc
	conn   *nats.Conn
	sub    *nats.Subscription
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStatusResponder creates a responder that replies with status().
func NewStatusResponder(url string, status StatusFunc, logger *slog.Logger) *StatusResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusResponder{
		url:    url,
		status: status,
		logger: logger.With("component", "nats-status"),
	}
}

// Start connects and subscribes.
func (r *StatusResponder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := nats.Connect(r.url,
		nats.Name("holus-status"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return err
	}

	sub, err := conn.Subscribe(SubjectStatus, r.handle)
	if err != nil {
		conn.Close()
		return err
	}

	r.conn = conn
	r.sub = sub
	r.logger.Info("Answering status requests", "subject", SubjectStatus)
	return nil
}

func (r *StatusResponder) handle(msg *nats.Msg) {
	data, err := json.Marshal(r.status())
	if err != nil {
		r.logger.Warn("Failed to marshal status", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		r.logger.Debug("Failed to respond to status request", "error", err)
	}
}

// Stop unsubscribes and closes the connection.
func (r *StatusResponder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sub != nil {
		_ = r.sub.Unsubscribe()
		r.sub = nil
	}
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// RequestStatus asks a running supervisor for its status and decodes the
// reply into out.
func RequestStatus(url string, timeout time.Duration, out any) error {
	conn, err := nats.Connect(url, nats.Name("holus-cli"), nats.Timeout(timeout))
	if err != nil {
		return err
	}
	defer conn.Close()

	msg, err := conn.Request(SubjectStatus, nil, timeout)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return errors.New("no supervisor is answering status requests")
		}
		return err
	}
	return json.Unmarshal(msg.Data, out)
}
