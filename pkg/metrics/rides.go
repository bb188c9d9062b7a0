package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ride transition labels.
const (
	TransitionCreate   = "create"
	TransitionAccept   = "accept"
	TransitionComplete = "complete"
	TransitionCancel   = "cancel"
	TransitionDelete   = "delete"

	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// RideMetrics counts lifecycle transitions by outcome.
type RideMetrics struct {
	transitions *prometheus.CounterVec
	quotaDenied prometheus.Counter
}

// NewRideMetrics registers the ride metrics on the provided registerer.
func NewRideMetrics(reg prometheus.Registerer) *RideMetrics {
	if reg == nil {
		return &RideMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_transitions_total",
		Help: "Ride lifecycle transitions partitioned by transition and outcome.",
	}, []string{"transition", "outcome"})
	quotaDenied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ride_accept_quota_denied_total",
		Help: "Accept attempts refused because the monthly quota was reached.",
	})
	reg.MustRegister(transitions, quotaDenied)
	return &RideMetrics{transitions: transitions, quotaDenied: quotaDenied}
}

// Observe increments the transition counter.
func (m *RideMetrics) Observe(transition, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(transition), normalizeLabel(outcome)).Inc()
}

// IncQuotaDenied records a quota refusal.
func (m *RideMetrics) IncQuotaDenied() {
	if m == nil || m.quotaDenied == nil {
		return
	}
	m.quotaDenied.Inc()
}
