// Package metrics holds the Prometheus collectors for the checkout core.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "packstore"

// Checkout results.
const (
	CheckoutCreated  = "created"
	CheckoutRejected = "rejected"
	CheckoutFailed   = "failed"
	CheckoutTimeout  = "timeout"
)

// Reconciliation results.
const (
	ReconcileCreated  = "created"
	ReconcileExisting = "existing"
	ReconcileUnpaid   = "unpaid"
	ReconcileNotFound = "not_found"
	ReconcileFailed   = "failed"
)

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	checkoutSessions *prometheus.CounterVec
	totalMismatches  *prometheus.CounterVec
	snapshotFailures prometheus.Counter
	reconciliations  *prometheus.CounterVec
	inconsistencies  prometheus.Counter
	rateLimited      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		checkoutSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Checkout session attempts by result.",
		}, []string{"result"}),
		totalMismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_client_total_mismatches_total",
			Help:      "Checkout requests whose client-supplied figure differed from the server price.",
		}, []string{"field"}),
		snapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_snapshot_failures_total",
			Help:      "Cart snapshots that could not be persisted after session creation.",
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_reconciliations_total",
			Help:      "Session confirmations by result.",
		}, []string{"result"}),
		inconsistencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_inconsistencies_total",
			Help:      "Paid sessions for which the order could not be persisted.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.checkoutSessions,
		m.totalMismatches,
		m.snapshotFailures,
		m.reconciliations,
		m.inconsistencies,
		m.rateLimited,
	)

	return m
}

// ObserveHTTP records one handled request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CheckoutResult counts a checkout attempt.
func (m *Metrics) CheckoutResult(result string) {
	if m == nil {
		return
	}
	m.checkoutSessions.WithLabelValues(result).Inc()
}

// ClientTotalMismatch counts an advisory client figure that disagreed with the server.
func (m *Metrics) ClientTotalMismatch(field string) {
	if m == nil {
		return
	}
	m.totalMismatches.WithLabelValues(field).Inc()
}

// SnapshotFailure counts a cart snapshot that failed to persist.
func (m *Metrics) SnapshotFailure() {
	if m == nil {
		return
	}
	m.snapshotFailures.Inc()
}

// ReconciliationResult counts a session confirmation.
func (m *Metrics) ReconciliationResult(result string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(result).Inc()
}

// ReconciliationInconsistency counts a paid session with no persisted order.
func (m *Metrics) ReconciliationInconsistency() {
	if m == nil {
		return
	}
	m.inconsistencies.Inc()
}

// RateLimited counts a throttled request.
func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
