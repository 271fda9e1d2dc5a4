package mailbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of inbox writes into one drain.
const watchDebounce = 50 * time.Millisecond

// Watch drains domain's inbox whenever it changes on disk and passes each
// non-empty batch to fn. Pending messages are drained once before watching
// starts. Watch blocks until ctx is done.
//
// Watch is a consumer like Drain: only one consumer per inbox is supported.
func (m *Mailbox) Watch(ctx context.Context, domain string, fn func([]Message)) error {
	if !ValidDomain(domain) {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create mailbox dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// watch the directory: inbox writes replace the file by rename
	if err := watcher.Add(m.dir); err != nil {
		return fmt.Errorf("watch %s: %w", m.dir, err)
	}

	inbox := filepath.Clean(m.InboxPath(domain))
	m.logger.Info("Watching inbox", "domain", domain, "path", inbox)

	m.deliver(ctx, domain, fn)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Inbox watcher stopped", "domain", domain)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != inbox {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDebounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			m.deliver(ctx, domain, fn)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("Inbox watcher error", "domain", domain, "error", err)
		}
	}
}

func (m *Mailbox) deliver(ctx context.Context, domain string, fn func([]Message)) {
	msgs, err := m.Drain(ctx, domain)
	if err != nil {
		// already logged by Drain; the next change retries
		return
	}
	if len(msgs) > 0 {
		fn(msgs)
	}
}
