// Package metrics exposes lifecycle counters in the Prometheus format.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sammwyy/ploogz/api"
)

// Metrics holds the collectors for one host. Each Metrics owns its registry.
type Metrics struct {
	registry          *prometheus.Registry
	transitions       *prometheus.CounterVec
	pluginsLoaded     prometheus.Gauge
	discoveryFailures *prometheus.CounterVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ploogz",
			Name:      "transitions_total",
			Help:      "Lifecycle transition attempts by machine, event and result.",
		}, []string{"machine", "event", "result"}),
		pluginsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ploogz",
			Name:      "plugins_loaded",
			Help:      "Plugins currently owned by the host.",
		}),
		discoveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ploogz",
			Name:      "discovery_failures_total",
			Help:      "Plugin module files that failed to load, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.transitions, m.pluginsLoaded, m.discoveryFailures)
	return m
}

// Observe counts a transition attempt. A result is "ok", "illegal" for a
// rejected edge, or "hook_error".
func (m *Metrics) Observe(t api.Transition) {
	result := "ok"
	switch {
	case t.Err == nil:
	case errors.Is(t.Err, api.ErrIllegalTransition):
		result = "illegal"
	default:
		result = "hook_error"
	}
	m.transitions.WithLabelValues(t.Machine, t.Event, result).Inc()

	if t.Machine == "host" && t.Event == "teardown" && t.To == "torn_down" {
		m.pluginsLoaded.Set(0)
	}
}

// SetPluginsLoaded records how many plugins the host owns
func (m *Metrics) SetPluginsLoaded(n int) {
	m.pluginsLoaded.Set(float64(n))
}

// DiscoveryFailed counts a failed module file. It matches the signature of
// discovery.WithReporter.
func (m *Metrics) DiscoveryFailed(err error) {
	kind := "other"
	switch {
	case errors.Is(err, api.ErrConstruction):
		kind = "construction"
	case errors.Is(err, api.ErrDiscovery):
		kind = "discovery"
	}
	m.discoveryFailures.WithLabelValues(kind).Inc()
}

// Handler serves the registry over HTTP
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
