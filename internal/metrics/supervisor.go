// Package metrics provides Prometheus metrics for the supervisor, mailbox
// and shutdown path.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "holus"

var (
	domainState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "domain_state",
		Help:      "Current domain state (1 for the active state, 0 otherwise)",
	}, []string{"domain", "state"})

	domainRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "restarts_total",
		Help:      "Restart attempts per domain",
	}, []string{"domain"})

	domainFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "failures_total",
		Help:      "Detected failures per domain and kind",
	}, []string{"domain", "kind"})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "ticks_total",
		Help:      "Completed monitoring passes",
	})

	shutdownForced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "shutdown",
		Name:      "forced_kills_total",
		Help:      "Domains killed after the grace period elapsed",
	}, []string{"domain"})

	// last reported state per domain, so the previous series can be zeroed
	stateCache   = make(map[string]string)
	stateCacheMu sync.Mutex
)

// SetDomainState marks state as the active state for domain.
func SetDomainState(domain, state string) {
	stateCacheMu.Lock()
	defer stateCacheMu.Unlock()

	if prev, ok := stateCache[domain]; ok && prev != state {
		domainState.WithLabelValues(domain, prev).Set(0)
	}
	domainState.WithLabelValues(domain, state).Set(1)
	stateCache[domain] = state
}

// GetDomainState returns the last state reported for domain.
func GetDomainState(domain string) (string, bool) {
	stateCacheMu.Lock()
	defer stateCacheMu.Unlock()
	s, ok := stateCache[domain]
	return s, ok
}

// IncRestarts counts a restart attempt.
func IncRestarts(domain string) {
	domainRestarts.WithLabelValues(domain).Inc()
}

// IncFailure counts a detected failure of the given kind.
func IncFailure(domain, kind string) {
	domainFailures.WithLabelValues(domain, kind).Inc()
}

// IncTicks counts a monitoring pass.
func IncTicks() {
	ticksTotal.Inc()
}

// IncShutdownForced counts a domain killed during shutdown.
func IncShutdownForced(domain string) {
	shutdownForced.WithLabelValues(domain).Inc()
}

// DeleteDomainMetrics removes all per-domain series.
func DeleteDomainMetrics(domain string) {
	stateCacheMu.Lock()
	delete(stateCache, domain)
	stateCacheMu.Unlock()

	domainState.DeletePartialMatch(prometheus.Labels{"domain": domain})
	domainRestarts.DeleteLabelValues(domain)
	domainFailures.DeletePartialMatch(prometheus.Labels{"domain": domain})
	shutdownForced.DeleteLabelValues(domain)
	DeleteMailboxMetrics(domain)
	DeleteHeartbeatMetrics(domain)
}
