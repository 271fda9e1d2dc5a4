package mailbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/goccy/go-json"
)

func newTestMailbox(t *testing.T, opts ...Option) *Mailbox {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(t.TempDir(), opts...)
}

func TestSendThenDrain(t *testing.T) {
	mb := newTestMailbox(t)
	ctx := context.Background()

	sent, err := mb.Send(ctx, "content-strategy", "job-tracker", map[string]int{"foo": 1})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if sent.ID == "" {
		t.Error("expected message ID")
	}

	msgs, err := mb.Drain(ctx, "job-tracker")
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	got := msgs[0]
	if got.From != "content-strategy" || got.To != "job-tracker" {
		t.Errorf("unexpected routing: from=%q to=%q", got.From, got.To)
	}
	var payload map[string]int
	if err := json.Unmarshal(got.Message, &payload); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if len(payload) != 1 || payload["foo"] != 1 {
		t.Errorf("payload = %v, want {foo:1}", payload)
	}
	if got.ID != sent.ID {
		t.Errorf("ID = %q, want %q", got.ID, sent.ID)
	}

	again, err := mb.Drain(ctx, "job-tracker")
	if err != nil {
		t.Fatalf("second Drain failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second drain returned %d messages, want 0", len(again))
	}
}

func TestDrainMissingInbox(t *testing.T) {
	mb := newTestMailbox(t)
	msgs, err := mb.Drain(context.Background(), "trading")
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", msgs)
	}
}

func TestDrainPreservesOrder(t *testing.T) {
	mb := newTestMailbox(t)
	ctx := context.Background()

	for i := range 5 {
		if _, err := mb.Send(ctx, "trading", "content-strategy", map[string]int{"seq": i}); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := mb.Drain(ctx, "content-strategy")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, msg := range msgs {
		var p map[string]int
		if err := json.Unmarshal(msg.Message, &p); err != nil {
			t.Fatal(err)
		}
		if p["seq"] != i {
			t.Errorf("message %d has seq %d", i, p["seq"])
		}
	}
}

func TestPeekDoesNotClear(t *testing.T) {
	mb := newTestMailbox(t)
	ctx := context.Background()

	if _, err := mb.Send(ctx, "trading", "job-tracker", "hello"); err != nil {
		t.Fatal(err)
	}

	for range 2 {
		msgs, err := mb.Peek(ctx, "job-tracker")
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != 1 {
			t.Fatalf("Peek returned %d messages, want 1", len(msgs))
		}
	}
}

func TestConcurrentSendsAreNotLost(t *testing.T) {
	mb := newTestMailbox(t)
	ctx := context.Background()

	const senders = 8
	const perSender = 10

	var wg sync.WaitGroup
	for s := range senders {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := range perSender {
				if _, err := mb.Send(ctx, "trading", "job-tracker", map[string]int{"s": s, "i": i}); err != nil {
					t.Errorf("Send failed: %v", err)
				}
			}
		}(s)
	}

	var drained []Message
	var mu sync.Mutex
	stop := make(chan struct{})
	drainerDone := make(chan struct{})
	go func() {
		defer close(drainerDone)
		for {
			msgs, err := mb.Drain(ctx, "job-tracker")
			if err != nil {
				t.Errorf("Drain failed: %v", err)
				return
			}
			mu.Lock()
			drained = append(drained, msgs...)
			mu.Unlock()
			select {
			case <-stop:
				return
			default:
				time.Sleep(time.Millisecond)
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-drainerDone

	rest, err := mb.Drain(ctx, "job-tracker")
	if err != nil {
		t.Fatal(err)
	}
	drained = append(drained, rest...)

	if len(drained) != senders*perSender {
		t.Errorf("received %d messages, want %d", len(drained), senders*perSender)
	}
	seen := make(map[string]bool)
	for _, m := range drained {
		if seen[m.ID] {
			t.Errorf("duplicate delivery of %s", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestLockTimeout(t *testing.T) {
	mb := newTestMailbox(t, WithLockTimeout(50*time.Millisecond))
	if err := os.MkdirAll(mb.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}

	holder := flock.New(filepath.Join(mb.Dir(), "trading.inbox.lock"))
	if err := holder.Lock(); err != nil {
		t.Fatalf("failed to take lock: %v", err)
	}
	defer holder.Unlock()

	start := time.Now()
	_, err := mb.Send(context.Background(), "job-tracker", "trading", "hi")
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("lock wait took %v", elapsed)
	}

	// other inboxes are unaffected
	if _, err := mb.Send(context.Background(), "trading", "job-tracker", "hi"); err != nil {
		t.Errorf("send to unlocked inbox failed: %v", err)
	}

	holder.Unlock()
	msgs, err := mb.Drain(context.Background(), "trading")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("timed-out send must not be written, got %d messages", len(msgs))
	}
}

func TestCorruptInboxMovedAside(t *testing.T) {
	now := time.Unix(1717243200, 0)
	mb := newTestMailbox(t, WithClock(func() time.Time { return now }))
	if err := os.MkdirAll(mb.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(mb.InboxPath("trading"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	msgs, err := mb.Drain(context.Background(), "trading")
	if err != nil {
		t.Fatalf("corrupt inbox must not fail Drain: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty result, got %d", len(msgs))
	}

	aside := mb.InboxPath("trading") + ".corrupt-1717243200"
	data, err := os.ReadFile(aside)
	if err != nil {
		t.Fatalf("corrupt file not preserved: %v", err)
	}
	if string(data) != "{not json" {
		t.Errorf("preserved contents = %q", data)
	}

	if _, err := mb.Send(context.Background(), "job-tracker", "trading", 1); err != nil {
		t.Fatalf("Send after corruption failed: %v", err)
	}
	msgs, _ = mb.Drain(context.Background(), "trading")
	if len(msgs) != 1 {
		t.Errorf("expected inbox to work after corruption, got %d messages", len(msgs))
	}
}

func TestInvalidDomain(t *testing.T) {
	mb := newTestMailbox(t)
	ctx := context.Background()

	for _, name := range []string{"", "../etc", "Trading", "a/b", "-lead"} {
		if _, err := mb.Send(ctx, "trading", name, 1); !errors.Is(err, ErrInvalidDomain) {
			t.Errorf("Send to %q: expected ErrInvalidDomain, got %v", name, err)
		}
		if _, err := mb.Drain(ctx, name); !errors.Is(err, ErrInvalidDomain) {
			t.Errorf("Drain %q: expected ErrInvalidDomain, got %v", name, err)
		}
	}
}

func TestInboxFileFormat(t *testing.T) {
	mb := newTestMailbox(t)
	ctx := context.Background()
	if _, err := mb.Send(ctx, "trading", "job-tracker", map[string]string{"k": "v"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(mb.InboxPath("job-tracker"))
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("inbox is not a JSON array: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(raw))
	}
	for _, key := range []string{"id", "from", "to", "message", "sent_at"} {
		if _, ok := raw[0][key]; !ok {
			t.Errorf("entry missing %q", key)
		}
	}

	if _, err := mb.Drain(ctx, "job-tracker"); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(mb.InboxPath("job-tracker"))
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("drained inbox = %q, want []", data)
	}
}

func TestWatchDeliversBatches(t *testing.T) {
	mb := newTestMailbox(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := mb.Send(ctx, "trading", "job-tracker", "before"); err != nil {
		t.Fatal(err)
	}

	received := make(chan Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- mb.Watch(ctx, "job-tracker", func(msgs []Message) {
			for _, m := range msgs {
				received <- m
			}
		})
	}()

	waitFor := func(want string) {
		t.Helper()
		select {
		case m := <-received:
			var s string
			if err := json.Unmarshal(m.Message, &s); err != nil {
				t.Fatal(err)
			}
			if s != want {
				t.Errorf("got %q, want %q", s, want)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}

	waitFor("before")

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	if _, err := mb.Send(ctx, "trading", "job-tracker", "after"); err != nil {
		t.Fatal(err)
	}
	waitFor("after")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
