package metrics

import (
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/breaker"
)

// BreakerMetrics exposes circuit breaker state per guarded component.
type BreakerMetrics struct {
	State       *prometheus.GaugeVec
	Transitions *prometheus.CounterVec
}

// NewBreakerMetrics creates and registers circuit breaker metrics on the given registry.
func NewBreakerMetrics(reg prometheus.Registerer) *BreakerMetrics {
	m := &BreakerMetrics{
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"component"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "transitions_total",
			Help:      "Total number of circuit breaker state transitions.",
		}, []string{"component", "to"}),
	}

	reg.MustRegister(m.State, m.Transitions)
	return m
}

// Observe is a breaker.StateListener.
func (m *BreakerMetrics) Observe(component string, state circuitbreaker.State) {
	m.State.WithLabelValues(component).Set(breaker.StateValue(state))
	m.Transitions.WithLabelValues(component, state.String()).Inc()
}
