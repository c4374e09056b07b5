package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Transition labels.
const (
	TransitionReserved     = "reserved"
	TransitionExtended     = "extended"
	TransitionConfirmed    = "confirmed"
	TransitionCancelled    = "cancelled"
	TransitionSwept        = "swept"
	TransitionAutoReleased = "auto_released"
	TransitionPaused       = "paused"
	TransitionResumed      = "resumed"
	TransitionMarkedSold   = "marked_sold"
	TransitionReverted     = "reverted"
)

// ReservationMetrics counts product lifecycle transitions and notification outcomes.
type ReservationMetrics struct {
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	conflicts     prometheus.Counter
}

// NewReservationMetrics registers the lifecycle metrics on reg. A nil reg
// yields a no-op recorder.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_transitions_total",
		Help: "Product state transitions applied by the reservation engine.",
	}, []string{"transition"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_notifications_total",
		Help: "Outbound buyer notifications by kind and result.",
	}, []string{"kind", "result"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservation_conflicts_total",
		Help: "Reserve requests rejected because a product was held by another buyer.",
	})
	reg.MustRegister(transitions, notifications, conflicts)
	return &ReservationMetrics{
		transitions:   transitions,
		notifications: notifications,
		conflicts:     conflicts,
	}
}

func (m *ReservationMetrics) AddTransitions(transition string, n int) {
	if m == nil || m.transitions == nil || n <= 0 {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(transition)).Add(float64(n))
}

func (m *ReservationMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

// ObserveNotification records one send attempt; err == nil counts as sent.
func (m *ReservationMetrics) ObserveNotification(kind string, err error) {
	if m == nil || m.notifications == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(normalizeLabel(kind), result).Inc()
}
