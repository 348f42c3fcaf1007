package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Envelope Metrics
	EnvelopeOperationsTotal   *prometheus.CounterVec
	EnvelopeOperationDuration *prometheus.HistogramVec
	EnvelopePayloadBytes      *prometheus.HistogramVec
	KeyProviderCallsTotal     *prometheus.CounterVec
	DataKeysWipedTotal        prometheus.Counter

	// System Metrics
	StartTimeSeconds prometheus.Gauge
	GoRoutines       prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initEnvelopeMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
