package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/app"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// CoordinatorMetrics records refresh outcomes and lifecycle state of the
// refresh coordinator.
type CoordinatorMetrics struct {
	RefreshesTotal  *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	StaleDiscarded  *prometheus.CounterVec
	Phase           prometheus.Gauge
	Connection      prometheus.Gauge
}

var _ app.Observer = (*CoordinatorMetrics)(nil)

// NewCoordinatorMetrics creates and registers coordinator metrics on the given registry.
func NewCoordinatorMetrics(reg prometheus.Registerer) *CoordinatorMetrics {
	m := &CoordinatorMetrics{
		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "refreshes_total",
			Help:      "Total number of completed refreshes, by trigger and result.",
		}, []string{"trigger", "result"}),
		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of window fetches in seconds.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"trigger"}),
		StaleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "stale_results_discarded_total",
			Help:      "Fetch results dropped because a newer refresh superseded them.",
		}, []string{"trigger"}),
		Phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "phase",
			Help:      "Current dashboard phase (0=idle, 1=loading, 2=ready, 3=degraded).",
		}),
		Connection: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "connection_state",
			Help:      "Push subscription state (0=disconnected, 1=connecting, 2=connected, 3=errored).",
		}),
	}

	reg.MustRegister(m.RefreshesTotal, m.RefreshDuration, m.StaleDiscarded, m.Phase, m.Connection)
	return m
}

func (m *CoordinatorMetrics) RefreshCompleted(trigger, result string, duration time.Duration) {
	m.RefreshesTotal.WithLabelValues(trigger, result).Inc()
	m.RefreshDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

func (m *CoordinatorMetrics) StaleResultDiscarded(trigger string) {
	m.StaleDiscarded.WithLabelValues(trigger).Inc()
}

func (m *CoordinatorMetrics) PhaseChanged(phase domain.Phase) {
	m.Phase.Set(float64(phase))
}

func (m *CoordinatorMetrics) ConnectionChanged(state domain.ConnectionState) {
	m.Connection.Set(float64(state))
}
