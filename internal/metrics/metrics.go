// Package metrics holds the ledger's Prometheus collectors. They are
// registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var TransactionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "budget",
	Subsystem: "ledger",
	Name:      "transactions_recorded_total",
	Help:      "Total transactions committed, by transaction type.",
}, []string{"type"})

var TransactionsEdited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "budget",
	Subsystem: "ledger",
	Name:      "transactions_edited_total",
	Help:      "Total admin edits and deletes, by action.",
}, []string{"action"})

var PaychecksProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "budget",
	Subsystem: "paycheck",
	Name:      "processed_total",
	Help:      "Total paychecks allocated.",
})

var PaycheckAmount = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "budget",
	Subsystem: "paycheck",
	Name:      "amount_dollars",
	Help:      "Gross paycheck amounts in dollars.",
	Buckets:   prometheus.ExponentialBuckets(250, 2, 8),
})

var RolloversApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "budget",
	Subsystem: "rollover",
	Name:      "applied_total",
	Help:      "Total weeks closed, by sign of the rolled amount.",
}, []string{"sign"})

var AuditIssues = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "budget",
	Subsystem: "audit",
	Name:      "issues_total",
	Help:      "Total ledger defects found by audits, by entity type.",
}, []string{"entity"})

var EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "budget",
	Subsystem: "events",
	Name:      "publish_failures_total",
	Help:      "Total ledger events that could not be published.",
})

var CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "budget",
	Subsystem: "events",
	Name:      "circuit_breaker_state",
	Help:      "Event publisher circuit breaker state (0=closed, 1=open, 2=half-open).",
})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "budget",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests, by method, route pattern and status code.",
}, []string{"method", "route", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "budget",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency, by method and route pattern.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

var RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "budget",
	Subsystem: "http",
	Name:      "rate_limit_hits_total",
	Help:      "Total mutating requests rejected by the per-client rate limiter.",
})

var SuspiciousRequests = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "budget",
	Subsystem: "http",
	Name:      "suspicious_requests_total",
	Help:      "Total requests matching a known probing pattern.",
})

var AuditRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "budget",
	Subsystem: "audit",
	Name:      "runs_total",
	Help:      "Total audit passes run by the worker, by trigger.",
}, []string{"trigger"})

// Sign labels a rollover amount for RolloversApplied.
func Sign(cents int64) string {
	switch {
	case cents > 0:
		return "positive"
	case cents < 0:
		return "negative"
	}
	return "zero"
}
