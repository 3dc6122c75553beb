// Package metrics exposes Prometheus instrumentation for the mediation
// pipeline. All recording methods are nil-safe so instrumentation can be
// disabled by wiring a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one mediator instance.
type Metrics struct {
	registry *prometheus.Registry

	transactionsTotal *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	dispatchAttempts  prometheus.Counter
	dispatchRetries   prometheus.Counter
	requestDuration   prometheus.Histogram
}

// New builds the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finbridge",
				Name:      "transactions_total",
				Help:      "Mediated transactions by outcome",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "finbridge",
			Name:      "cache_hits_total",
			Help:      "Response cache hits",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "finbridge",
			Name:      "cache_misses_total",
			Help:      "Response cache misses",
		}),
		dispatchAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "finbridge",
			Name:      "dispatch_attempts_total",
			Help:      "Outbound dispatch attempts including retries",
		}),
		dispatchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "finbridge",
			Name:      "dispatch_retries_total",
			Help:      "Outbound dispatch retries after timeouts",
		}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "finbridge",
			Name:      "request_duration_seconds",
			Help:      "End-to-end pipeline duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler serves the collectors over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTransaction records a pipeline outcome (completed, failed, rejected).
func (m *Metrics) ObserveTransaction(outcome string) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCacheHit records a response served from cache.
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// ObserveCacheMiss records a cache lookup that fell through to dispatch.
func (m *Metrics) ObserveCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// ObserveDispatchAttempt records one outbound HTTP attempt.
func (m *Metrics) ObserveDispatchAttempt() {
	if m == nil {
		return
	}
	m.dispatchAttempts.Inc()
}

// ObserveDispatchRetry records a retry scheduled after a timeout.
func (m *Metrics) ObserveDispatchRetry() {
	if m == nil {
		return
	}
	m.dispatchRetries.Inc()
}

// ObserveRequestDuration records total pipeline latency in seconds.
func (m *Metrics) ObserveRequestDuration(seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.Observe(seconds)
}
