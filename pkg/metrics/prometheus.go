// Package metrics exposes the consent core's Prometheus instrumentation:
// token validation outcomes, approval/consent outcomes, active SSE
// subscriptions, and ledger append latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var metricsRegistered = false

var (
	tokenOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentcore_token_operations_total",
			Help: "Total number of token codec operations (issue/validate).",
		},
		[]string{"operation", "status"},
	)

	tokenValidationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentcore_token_validation_errors_total",
			Help: "Total number of token validation failures by reason code.",
		},
		[]string{"code"},
	)

	ledgerAppendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consentcore_ledger_append_duration_seconds",
			Help:    "Ledger append latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms to ~0.5s
		},
		[]string{"action"},
	)

	approvalOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentcore_approval_outcomes_total",
			Help: "Total number of request_consent outcomes by status.",
		},
		[]string{"status"},
	)

	activeSSESubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consentcore_active_sse_subscriptions",
			Help: "Number of currently open Server-Sent Events subscriptions.",
		},
		[]string{"stream"},
	)

	revocationChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentcore_revocation_checks_total",
			Help: "Total number of revocation index checks by outcome.",
		},
		[]string{"revoked"},
	)
)

// RegisterMetrics registers every collector with the default Prometheus
// registry. Idempotent and safe to call multiple times.
func RegisterMetrics() {
	if metricsRegistered {
		return
	}
	prometheus.MustRegister(
		tokenOperations,
		tokenValidationErrors,
		ledgerAppendLatency,
		approvalOutcomes,
		activeSSESubscriptions,
		revocationChecks,
	)
	metricsRegistered = true
}

// Collector is the narrow recording surface the rest of the core depends
// on, so packages instrument themselves without importing prometheus
// directly.
type Collector struct{}

// NewCollector builds a Collector. Metrics must already be registered via
// RegisterMetrics (typically once, at startup).
func NewCollector() *Collector { return &Collector{} }

// RecordTokenOperation records an issue/validate outcome.
func (c *Collector) RecordTokenOperation(operation, status string) {
	tokenOperations.WithLabelValues(operation, status).Inc()
}

// RecordTokenValidationError records a validation failure by code.
func (c *Collector) RecordTokenValidationError(code string) {
	tokenValidationErrors.WithLabelValues(code).Inc()
}

// ObserveLedgerAppend records append latency for a ledger action.
func (c *Collector) ObserveLedgerAppend(action string, d time.Duration) {
	ledgerAppendLatency.WithLabelValues(action).Observe(d.Seconds())
}

// RecordApprovalOutcome records a request_consent result status.
func (c *Collector) RecordApprovalOutcome(status string) {
	approvalOutcomes.WithLabelValues(status).Inc()
}

// SetActiveSSESubscriptions sets the current open-subscription gauge for a
// stream kind ("full" or "poll").
func (c *Collector) SetActiveSSESubscriptions(stream string, count float64) {
	activeSSESubscriptions.WithLabelValues(stream).Set(count)
}

// IncActiveSSESubscriptions adjusts the gauge by delta (+1 on subscribe,
// -1 on disconnect).
func (c *Collector) IncActiveSSESubscriptions(stream string, delta float64) {
	activeSSESubscriptions.WithLabelValues(stream).Add(delta)
}

// RecordRevocationCheck records a hot-path revocation lookup outcome.
func (c *Collector) RecordRevocationCheck(revoked bool) {
	revocationChecks.WithLabelValues(boolToString(revoked)).Inc()
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Timer measures and records an operation's duration against the ledger
// append histogram.
type Timer struct {
	start     time.Time
	action    string
	collector *Collector
}

// NewLedgerTimer starts a timer for a ledger append of the given action.
func (c *Collector) NewLedgerTimer(action string) *Timer {
	return &Timer{start: time.Now(), action: action, collector: c}
}

// Stop records the elapsed duration.
func (t *Timer) Stop() {
	t.collector.ObserveLedgerAppend(t.action, time.Since(t.start))
}
