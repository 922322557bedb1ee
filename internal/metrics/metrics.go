// Package metrics exposes Prometheus counters for ladder operations.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LadderMetrics groups the counters recorded by the ladder core.
type LadderMetrics struct {
	bookings        *prometheus.CounterVec
	activations     *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	upstreamErrors  *prometheus.CounterVec
	bucksSpent      prometheus.Counter
}

var (
	ladderOnce     sync.Once
	ladderRegistry *LadderMetrics
)

// Ladder returns the process-wide metrics, registering them on first use.
func Ladder() *LadderMetrics {
	ladderOnce.Do(func() {
		ladderRegistry = &LadderMetrics{
			bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "laddr",
				Subsystem: "slots",
				Name:      "bookings_total",
				Help:      "Booking and event creation attempts by event type and outcome.",
			}, []string{"event_type", "outcome"}),
			activations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "laddr",
				Subsystem: "wallet",
				Name:      "private_activations_total",
				Help:      "Private event activation attempts by outcome.",
			}, []string{"outcome"}),
			refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "laddr",
				Subsystem: "scoring",
				Name:      "refreshes_total",
				Help:      "Totals refreshes by outcome.",
			}, []string{"outcome"}),
			refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "laddr",
				Subsystem: "scoring",
				Name:      "refresh_duration_seconds",
				Help:      "Wall time of a totals refresh including upstream calls.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			}),
			upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "laddr",
				Subsystem: "upstream",
				Name:      "errors_total",
				Help:      "Failed calls to external collaborators.",
			}, []string{"service"}),
			bucksSpent: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "laddr",
				Subsystem: "wallet",
				Name:      "bucks_spent_total",
				Help:      "Bucks debited across all users.",
			}),
		}
		prometheus.MustRegister(
			ladderRegistry.bookings,
			ladderRegistry.activations,
			ladderRegistry.refreshes,
			ladderRegistry.refreshDuration,
			ladderRegistry.upstreamErrors,
			ladderRegistry.bucksSpent,
		)
	})
	return ladderRegistry
}

// RecordBooking counts a booking attempt.
func (m *LadderMetrics) RecordBooking(eventType, outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(eventType, outcome).Inc()
}

// RecordActivation counts an activation attempt.
func (m *LadderMetrics) RecordActivation(outcome string) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(outcome).Inc()
}

// RecordRefresh counts a refresh and observes its duration.
func (m *LadderMetrics) RecordRefresh(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(took.Seconds())
}

// RecordUpstreamError counts a failed collaborator call.
func (m *LadderMetrics) RecordUpstreamError(service string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(service).Inc()
}

// RecordSpend adds debited bucks.
func (m *LadderMetrics) RecordSpend(bucks int) {
	if m == nil || bucks <= 0 {
		return
	}
	m.bucksSpent.Add(float64(bucks))
}
