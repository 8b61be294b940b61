// Package metrics exposes Prometheus instrumentation for the relation store
// and the working selection.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "threatmap"

// Metrics holds every collector the application records.
type Metrics struct {
	// StoreOperations counts store calls.
	// Labels: backend, operation, result (ok, not_found, error).
	StoreOperations *prometheus.CounterVec

	// StoreDuration measures store call latency.
	// Labels: backend, operation.
	StoreDuration *prometheus.HistogramVec

	SelectedThreats     prometheus.Gauge
	SelectedMitigations prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors with a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors with reg. Tests pass an isolated
// registry.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StoreOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Relation store operations by backend, operation and result.",
		}, []string{"backend", "operation", "result"}),
		StoreDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Relation store operation latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"backend", "operation"}),
		SelectedThreats: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_threats",
			Help:      "Threats in the current working selection.",
		}),
		SelectedMitigations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_mitigations",
			Help:      "Mitigations in the current working selection.",
		}),
		gatherer: gatherer,
	}
}

// SetSelection records the size of the working selection.
func (m *Metrics) SetSelection(threats, mitigations int) {
	m.SelectedThreats.Set(float64(threats))
	m.SelectedMitigations.Set(float64(mitigations))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
