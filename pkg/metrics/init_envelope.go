package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEnvelopeMetrics() {
	r.EnvelopeOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelope_operations_total",
			Help: "Total number of envelope encrypt and decrypt operations",
		},
		[]string{"operation", "status"},
	)

	r.EnvelopeOperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "envelope_operation_duration_seconds",
			Help:    "Envelope operation duration in seconds, including key provider calls",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"operation"},
	)

	r.EnvelopePayloadBytes = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "envelope_payload_bytes",
			Help:    "Size of plaintext handled by successful envelope operations",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		},
		[]string{"operation"},
	)

	r.KeyProviderCallsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelope_key_provider_calls_total",
			Help: "Total number of calls made to the key provider",
		},
		[]string{"call", "status"},
	)

	r.DataKeysWipedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "envelope_data_keys_wiped_total",
			Help: "Total number of raw data keys zeroed after use",
		},
	)
}
