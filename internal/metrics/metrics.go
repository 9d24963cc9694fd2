// Package metrics contains the metrics provider.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the DASH engine.
type Metrics struct {
	registry           *prometheus.Registry
	fragmentsFinalized *prometheus.CounterVec
	manifestRefreshes  prometheus.Counter
	sessionsActive     prometheus.Gauge
}

// New allocates a Metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	fragmentsFinalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dash_fragments_finalized_total",
		Help: "Total number of finalized fragments",
	}, []string{"track"})

	manifestRefreshes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dash_manifest_refreshes_total",
		Help: "Total number of published manifests",
	})

	sessionsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dash_sessions_active",
		Help: "Number of active publish sessions",
	})

	registry.MustRegister(
		fragmentsFinalized,
		manifestRefreshes,
		sessionsActive,
	)

	return &Metrics{
		registry:           registry,
		fragmentsFinalized: fragmentsFinalized,
		manifestRefreshes:  manifestRefreshes,
		sessionsActive:     sessionsActive,
	}
}

// FragmentFinalized increments the finalized fragment counter of a track.
func (m *Metrics) FragmentFinalized(track string) {
	m.fragmentsFinalized.WithLabelValues(track).Inc()
}

// ManifestRefreshed increments the manifest refresh counter.
func (m *Metrics) ManifestRefreshed() {
	m.manifestRefreshes.Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	m.sessionsActive.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	m.sessionsActive.Dec()
}

// Handler returns an http.Handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
