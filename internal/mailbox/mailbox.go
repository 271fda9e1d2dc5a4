// Package mailbox implements file-based inter-process messaging between
// domains.
//
// Each domain owns one inbox file, <dir>/<domain>.inbox.json, holding a JSON
// array of messages. Writers append under an exclusive advisory lock on
// <dir>/<domain>.inbox.lock; the owning domain drains its inbox by reading
// the whole array and replacing it with [] inside the same critical section.
// Locks are per domain: traffic to one inbox never blocks another.
//
// An inbox has a single consumer. Messages are delivered at most once; a
// consumer that crashes after a drain loses those messages.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/smazurov/holus/internal/metrics"
)

// DefaultLockTimeout bounds lock acquisition when no WithLockTimeout option is given.
const DefaultLockTimeout = 5 * time.Second

const (
	inboxSuffix   = ".inbox.json"
	lockSuffix    = ".inbox.lock"
	lockRetryWait = 10 * time.Millisecond
)

var (
	// ErrLockTimeout is returned when an inbox lock cannot be acquired in time.
	ErrLockTimeout = errors.New("mailbox lock timeout")
	// ErrCorruptInbox is logged when an inbox file cannot be parsed. The file
	// is moved aside and the inbox treated as empty.
	ErrCorruptInbox = errors.New("corrupt inbox")
	// ErrInvalidDomain is returned for domain names that are not safe file names.
	ErrInvalidDomain = errors.New("invalid domain name")
)

var domainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Message is one entry in an inbox.
type Message struct {
	ID      string          `json:"id"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Message json.RawMessage `json:"message"`
	SentAt  time.Time       `json:"sent_at"`
}

// Mailbox reads and writes inbox files in one directory.
type Mailbox struct {
	dir         string
	lockTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithLockTimeout bounds how long Send and Drain wait for an inbox lock.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Mailbox) {
		if d > 0 {
			m.lockTimeout = d
		}
	}
}

// WithLogger sets the logger used for lock timeouts and corrupt inboxes.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mailbox) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for sent_at.
func WithClock(now func() time.Time) Option {
	return func(m *Mailbox) {
		if now != nil {
			m.now = now
		}
	}
}

// New returns a Mailbox rooted at dir. The directory is created on demand.
func New(dir string, opts ...Option) *Mailbox {
	m := &Mailbox{
		dir:         dir,
		lockTimeout: DefaultLockTimeout,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the mailbox directory.
func (m *Mailbox) Dir() string { return m.dir }

// InboxPath returns the inbox file for domain.
func (m *Mailbox) InboxPath(domain string) string {
	return filepath.Join(m.dir, domain+inboxSuffix)
}

func (m *Mailbox) lockPath(domain string) string {
	return filepath.Join(m.dir, domain+lockSuffix)
}

// ValidDomain reports whether name can be used as a domain inbox name.
func ValidDomain(name string) bool {
	return domainPattern.MatchString(name)
}

// Send appends a message with payload from one domain to another's inbox.
// The payload is encoded as JSON.
func (m *Mailbox) Send(ctx context.Context, from, to string, payload any) (Message, error) {
	if !ValidDomain(to) {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidDomain, to)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode payload: %w", err)
	}

	msg := Message{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		Message: json.RawMessage(body),
		SentAt:  m.now().UTC(),
	}

	err = m.withLock(ctx, to, false, func() error {
		msgs := m.readInbox(to)
		msgs = append(msgs, msg)
		return m.writeInbox(to, msgs)
	})
	if err != nil {
		m.logger.Error("Failed to send message", "from", from, "to", to, "error", err)
		return Message{}, err
	}

	metrics.AddMailboxSent(to, 1)
	m.logger.Debug("Message sent", "from", from, "to", to, "id", msg.ID)
	return msg, nil
}

// Drain returns every pending message for domain and empties the inbox in
// the same critical section. A missing inbox yields an empty result.
func (m *Mailbox) Drain(ctx context.Context, domain string) ([]Message, error) {
	if !ValidDomain(domain) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}

	var msgs []Message
	err := m.withLock(ctx, domain, false, func() error {
		msgs = m.readInbox(domain)
		if len(msgs) == 0 {
			return nil
		}
		return m.writeInbox(domain, []Message{})
	})
	if err != nil {
		m.logger.Error("Failed to drain inbox", "domain", domain, "error", err)
		return nil, err
	}

	if msgs == nil {
		msgs = []Message{}
	}
	if len(msgs) > 0 {
		metrics.AddMailboxDrained(domain, len(msgs))
		m.logger.Debug("Inbox drained", "domain", domain, "count", len(msgs))
	}
	return msgs, nil
}

// Peek returns the pending messages for domain without removing them.
func (m *Mailbox) Peek(ctx context.Context, domain string) ([]Message, error) {
	if !ValidDomain(domain) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}

	var msgs []Message
	err := m.withLock(ctx, domain, true, func() error {
		msgs = m.readInbox(domain)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// withLock runs fn while holding the lock for domain's inbox. shared takes a
// read lock.
func (m *Mailbox) withLock(ctx context.Context, domain string, shared bool, fn func() error) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create mailbox dir: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()

	fl := flock.New(m.lockPath(domain))
	var (
		locked bool
		err    error
	)
	if shared {
		locked, err = fl.TryRLockContext(lockCtx, lockRetryWait)
	} else {
		locked, err = fl.TryLockContext(lockCtx, lockRetryWait)
	}
	if !locked {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			metrics.IncMailboxLockTimeout(domain)
			return fmt.Errorf("%w: %s after %s", ErrLockTimeout, domain, m.lockTimeout)
		}
		return fmt.Errorf("lock inbox %s: %w", domain, err)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			m.logger.Warn("Failed to release inbox lock", "domain", domain, "error", err)
		}
	}()

	return fn()
}

// readInbox loads domain's messages. Must hold the inbox lock. A corrupt
// file is moved aside and reported as empty.
func (m *Mailbox) readInbox(domain string) []Message {
	path := m.InboxPath(domain)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		m.logger.Warn("Failed to read inbox, treating as empty", "domain", domain, "error", err)
		return nil
	}

	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		m.quarantine(domain, path, fmt.Errorf("%w: %w", ErrCorruptInbox, err))
		return nil
	}
	return msgs
}

func (m *Mailbox) quarantine(domain, path string, cause error) {
	metrics.IncMailboxCorrupt(domain)
	aside := path + ".corrupt-" + strconv.FormatInt(m.now().Unix(), 10)
	if err := os.Rename(path, aside); err != nil {
		m.logger.Error("Corrupt inbox could not be moved aside", "domain", domain, "error", cause, "rename_error", err)
		return
	}
	m.logger.Error("Corrupt inbox discarded", "domain", domain, "error", cause, "moved_to", aside)
}

// writeInbox atomically replaces domain's inbox. Must hold the inbox lock.
func (m *Mailbox) writeInbox(domain string, msgs []Message) error {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode inbox %s: %w", domain, err)
	}
	if err := renameio.WriteFile(m.InboxPath(domain), data, 0o644); err != nil {
		return fmt.Errorf("write inbox %s: %w", domain, err)
	}
	return nil
}
