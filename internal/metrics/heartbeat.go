package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	heartbeatAge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "heartbeat",
		Name:      "age_seconds",
		Help:      "Seconds since the domain last wrote its heartbeat file",
	}, []string{"domain"})

	heartbeatMissing = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "heartbeat",
		Name:      "missing",
		Help:      "1 when the heartbeat file is absent or unreadable",
	}, []string{"domain"})

	inboxPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "mailbox",
		Name:      "pending_messages",
		Help:      "Messages waiting in a domain inbox",
	}, []string{"domain"})
)

// SetHeartbeatAge records the heartbeat age for domain.
func SetHeartbeatAge(domain string, seconds float64) {
	heartbeatAge.WithLabelValues(domain).Set(seconds)
	heartbeatMissing.WithLabelValues(domain).Set(0)
}

// SetHeartbeatMissing flags domain as having no readable heartbeat.
func SetHeartbeatMissing(domain string) {
	heartbeatAge.DeleteLabelValues(domain)
	heartbeatMissing.WithLabelValues(domain).Set(1)
}

// SetInboxPending records the number of undrained messages for domain.
func SetInboxPending(domain string, n int) {
	inboxPending.WithLabelValues(domain).Set(float64(n))
}

// DeleteHeartbeatMetrics removes heartbeat and inbox gauges for domain.
func DeleteHeartbeatMetrics(domain string) {
	heartbeatAge.DeleteLabelValues(domain)
	heartbeatMissing.DeleteLabelValues(domain)
	inboxPending.DeleteLabelValues(domain)
}
