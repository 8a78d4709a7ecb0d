package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissionOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cave_admission_operations_total",
			Help: "Cave admission operations by outcome",
		},
		[]string{"operation", "event_id", "outcome"},
	)

	sessionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cave_session_conflicts_resolved_total",
			Help: "Session inserts that lost the open-slot race and were resolved by re-fetch",
		},
		[]string{"event_id"},
	)

	openSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cave_open_sessions",
			Help: "Currently open cave sessions per event",
		},
		[]string{"event_id"},
	)

	sessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cave_session_duration_seconds",
			Help:    "Wall time between session open and explicit close",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10),
		},
		[]string{"event_id"},
	)

	orderAmounts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cave_order_amount_total",
			Help: "Total order amount recorded per event and payment method",
		},
		[]string{"event_id", "paid_with"},
	)
)

func TrackAdmission(operation, eventID, outcome string) {
	admissionOps.WithLabelValues(operation, eventID, outcome).Inc()
}

func TrackSessionConflict(eventID string) {
	sessionConflicts.WithLabelValues(eventID).Inc()
}

func SetOpenSessions(eventID string, count int) {
	openSessions.WithLabelValues(eventID).Set(float64(count))
}

func ObserveSessionDuration(eventID string, seconds float64) {
	sessionDuration.WithLabelValues(eventID).Observe(seconds)
}

func TrackOrder(eventID, paidWith string, amount float64) {
	orderAmounts.WithLabelValues(eventID, paidWith).Add(amount)
}
