// Package breaker builds the circuit breakers guarding the backing stores.
package breaker

import (
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// StateListener is notified after every breaker state transition.
type StateListener func(component string, state circuitbreaker.State)

// New creates a breaker with shared settings:
// - 60% failure rate over at least 5 executions in a 10s window opens the breaker
// - 30s before open transitions to half-open
// - 1 success in half-open closes it again
func New(component string, listener StateListener) circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", component,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if listener != nil {
				listener(component, e.NewState)
			}
		}).
		Build()
}

// StateValue encodes a state for a gauge: closed 0, half-open 1, open 2.
func StateValue(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}
