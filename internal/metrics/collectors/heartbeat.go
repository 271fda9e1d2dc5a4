// Package collectors polls on-disk supervisor state into Prometheus gauges.
package collectors

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/holus/internal/heartbeat"
	"github.com/smazurov/holus/internal/logging"
	"github.com/smazurov/holus/internal/mailbox"
	"github.com/smazurov/holus/internal/metrics"
)

// DefaultInterval is how often heartbeat files and inboxes are sampled.
const DefaultInterval = 10 * time.Second

// HeartbeatCollector samples heartbeat ages and inbox depths for a set of domains.
type HeartbeatCollector struct {
	logger   *slog.Logger
	monitor  *heartbeat.Monitor
	mailbox  *mailbox.Mailbox
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	domains []string
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHeartbeatCollector creates a collector. mb may be nil to skip inbox depth.
func NewHeartbeatCollector(monitor *heartbeat.Monitor, mb *mailbox.Mailbox, domains []string) *HeartbeatCollector {
	return &HeartbeatCollector{
		logger:   logging.GetLogger("metrics"),
		monitor:  monitor,
		mailbox:  mb,
		interval: DefaultInterval,
		now:      time.Now,
		domains:  append([]string(nil), domains...),
	}
}

// SetInterval changes the sampling interval. Call before Start.
func (c *HeartbeatCollector) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// SetDomains replaces the sampled domain set, dropping gauges for removed ones.
func (c *HeartbeatCollector) SetDomains(domains []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keep := make(map[string]bool, len(domains))
	for _, d := range domains {
		keep[d] = true
	}
	for _, d := range c.domains {
		if !keep[d] {
			metrics.DeleteHeartbeatMetrics(d)
		}
	}
	c.domains = append([]string(nil), domains...)
}

// Start begins periodic collection.
func (c *HeartbeatCollector) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
	return nil
}

// Stop halts collection and waits for the loop to exit.
func (c *HeartbeatCollector) Stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return nil
}

func (c *HeartbeatCollector) run(ctx context.Context) {
	defer close(c.done)
	c.logger.Debug("Starting heartbeat metrics collection", "dir", c.monitor.Dir(), "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

// Collect samples every domain once.
func (c *HeartbeatCollector) Collect(ctx context.Context) {
	c.mu.Lock()
	domains := append([]string(nil), c.domains...)
	c.mu.Unlock()

	now := c.now()
	for _, d := range domains {
		if age, ok := c.monitor.Age(d, now); ok {
			metrics.SetHeartbeatAge(d, age.Seconds())
		} else {
			metrics.SetHeartbeatMissing(d)
		}

		if c.mailbox == nil {
			continue
		}
		msgs, err := c.mailbox.Peek(ctx, d)
		if err != nil {
			c.logger.Debug("Failed to peek inbox", "domain", d, "error", err)
			continue
		}
		metrics.SetInboxPending(d, len(msgs))
	}
}
