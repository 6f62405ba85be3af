package metrics

import "github.com/prometheus/client_golang/prometheus"

// BreakerMetrics exports circuit breaker state of backend operations:
// 0 closed, 1 half-open, 2 open.
type BreakerMetrics struct {
	service     string
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

func newBreakerMetrics(service string, registry *prometheus.Registry) *BreakerMetrics {
	state := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rag",
			Subsystem: "backend",
			Name:      "circuit_state",
			Help:      "Circuit breaker state per backend operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "backend",
			Name:      "circuit_transitions_total",
			Help:      "Circuit breaker transitions per backend operation and target state.",
		},
		[]string{"service", "operation", "to"},
	)
	registry.MustRegister(state, transitions)
	return &BreakerMetrics{service: service, state: state, transitions: transitions}
}

// Observe matches resilience.StateObserver.
func (m *BreakerMetrics) Observe(operation, _, to string) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(m.service, operation).Set(breakerStateValue(to))
	m.transitions.WithLabelValues(m.service, operation, to).Inc()
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
