package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics covers the realtime dashboard channels.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	Viewers           prometheus.Gauge
	MessagesPublished *prometheus.CounterVec
	PublishFailures   *prometheus.CounterVec
}

func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Open websocket connections on this instance.",
		}),
		Viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "dashboard_viewers",
			Help:      "Local subscriptions to the dashboard channels.",
		}),
		MessagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_published_total",
			Help:      "Dashboard messages published, by kind and channel.",
		}, []string{"kind", "channel"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "publish_failures_total",
			Help:      "Dashboard messages that could not be published, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.ActiveConnections, m.Viewers, m.MessagesPublished, m.PublishFailures)
	return m
}
