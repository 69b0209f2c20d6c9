package metrics

import "github.com/prometheus/client_golang/prometheus"

// Transition outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// OrderMetrics counts order lifecycle transitions.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	created     *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "transitions_total",
		Help:      "Order state transitions by operation and outcome.",
	}, []string{"operation", "outcome"})
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Orders created, split by subscription coverage.",
	}, []string{"covered"})
	reg.MustRegister(transitions, created)
	return &OrderMetrics{transitions: transitions, created: created}
}

// ObserveTransition records one attempted transition.
func (m *OrderMetrics) ObserveTransition(operation, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *OrderMetrics) ObserveCreated(covered bool) {
	if m == nil || m.created == nil {
		return
	}
	label := "false"
	if covered {
		label = "true"
	}
	m.created.WithLabelValues(label).Inc()
}
