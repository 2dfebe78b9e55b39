// Package metrics defines the Prometheus metrics exported by the order
// intake server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orderhub"

// Metrics holds the server's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	acceptErrors      prometheus.Counter
	responses         *prometheus.CounterVec
	publishErrors     prometheus.Counter
	publishDropped    prometheus.Counter
	registryClients   prometheus.Gauge
}

// New registers the collectors with reg. Passing nil uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections currently being served",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted connections",
		}),
		acceptErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Total number of failed accept calls",
		}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total number of response lines written, by code",
		}, []string{"code"}),
		publishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of accepted orders that failed to publish",
		}),
		publishDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_dropped_total",
			Help:      "Total number of accepted orders dropped because the publish queue was full",
		}),
		registryClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_clients",
			Help:      "Number of registered business clients",
		}),
	}
}

// ConnOpened records a newly served connection.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

// ConnClosed records the end of a served connection.
func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// AcceptError records a failed accept.
func (m *Metrics) AcceptError() {
	if m == nil {
		return
	}
	m.acceptErrors.Inc()
}

// Response records a response code written to a client.
func (m *Metrics) Response(code string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(code).Inc()
}

// PublishError records a failed publish.
func (m *Metrics) PublishError() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

// PublishDropped records an event dropped on a full publish queue.
func (m *Metrics) PublishDropped() {
	if m == nil {
		return
	}
	m.publishDropped.Inc()
}

// RegistrySize records the number of registered clients.
func (m *Metrics) RegistrySize(n int) {
	if m == nil {
		return
	}
	m.registryClients.Set(float64(n))
}
