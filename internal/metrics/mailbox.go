package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mailboxSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mailbox",
		Name:      "messages_sent_total",
		Help:      "Messages appended to a domain inbox",
	}, []string{"domain"})

	mailboxDrained = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mailbox",
		Name:      "messages_drained_total",
		Help:      "Messages removed from a domain inbox by a drain",
	}, []string{"domain"})

	mailboxLockTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mailbox",
		Name:      "lock_timeouts_total",
		Help:      "Inbox lock acquisitions that timed out",
	}, []string{"domain"})

	mailboxCorrupt = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mailbox",
		Name:      "corrupt_inboxes_total",
		Help:      "Inbox files discarded because they could not be parsed",
	}, []string{"domain"})
)

// AddMailboxSent counts messages sent to domain.
func AddMailboxSent(domain string, n int) {
	mailboxSent.WithLabelValues(domain).Add(float64(n))
}

// AddMailboxDrained counts messages drained from domain.
func AddMailboxDrained(domain string, n int) {
	mailboxDrained.WithLabelValues(domain).Add(float64(n))
}

// IncMailboxLockTimeout counts a lock timeout on domain's inbox.
func IncMailboxLockTimeout(domain string) {
	mailboxLockTimeouts.WithLabelValues(domain).Inc()
}

// IncMailboxCorrupt counts a discarded inbox file.
func IncMailboxCorrupt(domain string) {
	mailboxCorrupt.WithLabelValues(domain).Inc()
}

// DeleteMailboxMetrics removes mailbox series for domain.
func DeleteMailboxMetrics(domain string) {
	mailboxSent.DeleteLabelValues(domain)
	mailboxDrained.DeleteLabelValues(domain)
	mailboxLockTimeouts.DeleteLabelValues(domain)
	mailboxCorrupt.DeleteLabelValues(domain)
}
