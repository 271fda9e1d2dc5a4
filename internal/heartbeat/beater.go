package heartbeat

import (
	"context"
	"time"
)

// Beater writes heartbeats for one domain on a fixed interval. It is the
// worker side of the protocol.
type Beater struct {
	monitor  *Monitor
	domain   string
	interval time.Duration
}

// NewBeater returns a Beater writing to m every interval.
func NewBeater(m *Monitor, domain string, interval time.Duration) *Beater {
	if interval <= 0 {
		interval = m.threshold / 3
	}
	return &Beater{monitor: m, domain: domain, interval: interval}
}

// Run writes a heartbeat immediately and then every interval until ctx is done.
// Write errors are logged and retried on the next interval.
func (b *Beater) Run(ctx context.Context) {
	b.beat()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.beat()
		}
	}
}

func (b *Beater) beat() {
	if err := b.monitor.Record(b.domain, time.Now()); err != nil {
		b.monitor.logger.Warn("Failed to write heartbeat", "domain", b.domain, "error", err)
	}
}
