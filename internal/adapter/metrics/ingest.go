package metrics

import "github.com/prometheus/client_golang/prometheus"

// IngestMetrics counts points accepted through the ingest endpoint.
type IngestMetrics struct {
	PointsTotal *prometheus.CounterVec
}

// NewIngestMetrics creates and registers ingest metrics on the given registry.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		PointsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "points_total",
			Help:      "Total number of ingested score points, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.PointsTotal)
	return m
}
