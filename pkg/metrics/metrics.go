package metrics

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RecordEnvelopeOperation records an encrypt or decrypt call. size is only
// observed for successful operations.
func (r *Registry) RecordEnvelopeOperation(operation, status string, duration time.Duration, size int) {
	r.EnvelopeOperationsTotal.WithLabelValues(operation, status).Inc()
	r.EnvelopeOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())

	if status == StatusSuccess {
		r.EnvelopePayloadBytes.WithLabelValues(operation).Observe(float64(size))
	}
}

// RecordKeyProviderCall records a call to the key provider
func (r *Registry) RecordKeyProviderCall(call string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	r.KeyProviderCallsTotal.WithLabelValues(call, status).Inc()
}

// RecordKeyWiped records that a raw data key was zeroed
func (r *Registry) RecordKeyWiped() {
	r.DataKeysWipedTotal.Inc()
}

// UpdateSystemMetrics refreshes process level gauges
func (r *Registry) UpdateSystemMetrics(startTime time.Time) {
	r.StartTimeSeconds.Set(float64(startTime.Unix()))
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
}

// WriteTextfile writes the registry in the Prometheus text format, suitable
// for the node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
