package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Topic label values
const (
	TopicPipe = "pipe"
	TopicChat = "chat"
)

// Metrics holds all Prometheus metrics for the relay
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsRemoved prometheus.Counter

	// Connection metrics
	ConnectionsActive   prometheus.Gauge
	ConnectionsRejected prometheus.Counter

	// Message metrics
	MessagesPublished *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Number of currently registered sessions",
			},
		),
		SessionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		SessionsRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_removed_total",
				Help: "Total number of sessions removed",
			},
		),

		ConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "connections_active",
				Help: "Number of currently attached relay connections",
			},
		),
		ConnectionsRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "connections_rejected_total",
				Help: "Total number of connections rejected for an unknown session",
			},
		),

		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_published_total",
				Help: "Total number of inbound messages published to a session topic",
			},
			[]string{"topic"},
		),
		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_dropped_total",
				Help: "Total number of buffered messages discarded for slow subscribers",
			},
			[]string{"topic"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionsCreated)
	m.registry.MustRegister(m.SessionsRemoved)

	m.registry.MustRegister(m.ConnectionsActive)
	m.registry.MustRegister(m.ConnectionsRejected)

	m.registry.MustRegister(m.MessagesPublished)
	m.registry.MustRegister(m.MessagesDropped)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
