package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records checkout and cancellation outcomes.
type SettlementMetrics struct {
	duration  *prometheus.HistogramVec
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of settlement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_completed",
		Help: "Settlement transactions that committed.",
	}, []string{"operation", "method"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_failed",
		Help: "Settlement transactions that rolled back.",
	}, []string{"operation", "reason"})
	reg.MustRegister(duration, completed, failed)
	return &SettlementMetrics{
		duration:  duration,
		completed: completed,
		failed:    failed,
	}
}

// ObserveDuration records the duration for the named operation.
func (m *SettlementMetrics) ObserveDuration(operation string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncCompleted increments the commit counter for an operation/method pair.
func (m *SettlementMetrics) IncCompleted(operation, method string) {
	if m == nil || m.completed == nil {
		return
	}
	m.completed.WithLabelValues(normalizeLabel(operation), normalizeLabel(method)).Inc()
}

// IncFailed increments the rollback counter for an operation/reason pair.
func (m *SettlementMetrics) IncFailed(operation, reason string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(operation), normalizeLabel(reason)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
