package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	// Verify all metrics are initialized
	if r.EnvelopeOperationsTotal == nil {
		t.Error("EnvelopeOperationsTotal not initialized")
	}
	if r.EnvelopeOperationDuration == nil {
		t.Error("EnvelopeOperationDuration not initialized")
	}
	if r.EnvelopePayloadBytes == nil {
		t.Error("EnvelopePayloadBytes not initialized")
	}
	if r.KeyProviderCallsTotal == nil {
		t.Error("KeyProviderCallsTotal not initialized")
	}
	if r.DataKeysWipedTotal == nil {
		t.Error("DataKeysWipedTotal not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	// Should return the same instance
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordEnvelopeOperation(t *testing.T) {
	r := NewRegistry()

	r.RecordEnvelopeOperation("encrypt", StatusSuccess, 10*time.Millisecond, 128)
	r.RecordEnvelopeOperation("encrypt", StatusSuccess, 20*time.Millisecond, 256)
	r.RecordEnvelopeOperation("encrypt", StatusError, 5*time.Millisecond, 0)

	// Verify success counter
	successCounter, err := r.EnvelopeOperationsTotal.GetMetricWithLabelValues("encrypt", StatusSuccess)
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := successCounter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2 {
		t.Errorf("Success counter = %v, want 2", metric.Counter.GetValue())
	}

	// Verify error counter
	errorCounter, err := r.EnvelopeOperationsTotal.GetMetricWithLabelValues("encrypt", StatusError)
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	if err := errorCounter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 1 {
		t.Errorf("Error counter = %v, want 1", metric.Counter.GetValue())
	}
}

func TestPayloadOnlyObservedOnSuccess(t *testing.T) {
	r := NewRegistry()

	r.RecordEnvelopeOperation("decrypt", StatusSuccess, time.Millisecond, 100)
	r.RecordEnvelopeOperation("decrypt", StatusError, time.Millisecond, 999)

	histogram, err := r.EnvelopePayloadBytes.GetMetricWithLabelValues("decrypt")
	if err != nil {
		t.Fatalf("Failed to get histogram: %v", err)
	}

	var metric dto.Metric
	if err := histogram.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("Sample count = %v, want 1", metric.Histogram.GetSampleCount())
	}
	if metric.Histogram.GetSampleSum() != 100 {
		t.Errorf("Sample sum = %v, want 100", metric.Histogram.GetSampleSum())
	}
}

func TestRecordKeyProviderCall(t *testing.T) {
	r := NewRegistry()

	r.RecordKeyProviderCall("generate_data_key", nil)
	r.RecordKeyProviderCall("decrypt_data_key", errors.New("unavailable"))

	tests := []struct {
		call   string
		status string
	}{
		{"generate_data_key", StatusSuccess},
		{"decrypt_data_key", StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			counter, err := r.KeyProviderCallsTotal.GetMetricWithLabelValues(tt.call, tt.status)
			if err != nil {
				t.Fatalf("Failed to get metric: %v", err)
			}

			var metric dto.Metric
			if err := counter.Write(&metric); err != nil {
				t.Fatalf("Failed to write metric: %v", err)
			}

			if metric.Counter.GetValue() != 1 {
				t.Errorf("Counter = %v, want 1", metric.Counter.GetValue())
			}
		})
	}
}

func TestRecordKeyWiped(t *testing.T) {
	r := NewRegistry()

	r.RecordKeyWiped()
	r.RecordKeyWiped()

	var metric dto.Metric
	if err := r.DataKeysWipedTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2 {
		t.Errorf("Wiped keys = %v, want 2", metric.Counter.GetValue())
	}
}

func TestSystemMetrics(t *testing.T) {
	r := NewRegistry()

	start := time.Unix(1700000000, 0)
	r.UpdateSystemMetrics(start)

	var metric dto.Metric
	if err := r.StartTimeSeconds.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 1700000000 {
		t.Errorf("Start time = %v, want 1700000000", metric.Gauge.GetValue())
	}

	if err := r.GoRoutines.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() < 1 {
		t.Errorf("Goroutines = %v, want >= 1", metric.Gauge.GetValue())
	}
}

func TestGetPrometheusRegistry(t *testing.T) {
	r := NewRegistry()
	promRegistry := r.GetPrometheusRegistry()

	if promRegistry == nil {
		t.Fatal("GetPrometheusRegistry() returned nil")
	}

	r.RecordEnvelopeOperation("encrypt", StatusSuccess, time.Millisecond, 10)

	metrics, err := promRegistry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	expectedMetrics := []string{
		"envelope_operations_total",
		"envelope_operation_duration_seconds",
		"envelope_payload_bytes",
		"envelope_data_keys_wiped_total",
		"envelope_start_time_seconds",
	}

	metricNames := make(map[string]bool)
	for _, m := range metrics {
		metricNames[m.GetName()] = true
	}

	for _, expected := range expectedMetrics {
		if !metricNames[expected] {
			t.Errorf("Expected metric %s not found", expected)
		}
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				r.RecordEnvelopeOperation("decrypt", StatusSuccess, time.Millisecond, 32)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	counter, err := r.EnvelopeOperationsTotal.GetMetricWithLabelValues("decrypt", StatusSuccess)
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	// Should have 1000 total operations (10 goroutines * 100 operations)
	if metric.Counter.GetValue() != 1000 {
		t.Errorf("Counter = %v, want 1000", metric.Counter.GetValue())
	}
}

func TestMetricNaming(t *testing.T) {
	r := NewRegistry()
	r.RecordEnvelopeOperation("encrypt", StatusSuccess, time.Millisecond, 1)
	r.RecordKeyProviderCall("generate_data_key", nil)

	metrics, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	// Verify all metrics have the envelope_ prefix
	for _, m := range metrics {
		name := m.GetName()
		if !strings.HasPrefix(name, "envelope_") {
			t.Errorf("Metric %s does not have envelope_ prefix", name)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.RecordEnvelopeOperation("encrypt", StatusSuccess, time.Millisecond, 64)

	path := filepath.Join(t.TempDir(), "envelope.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}

	if !strings.Contains(string(data), `envelope_operations_total{operation="encrypt",status="success"} 1`) {
		t.Errorf("textfile missing operation counter:\n%s", data)
	}
}

func TestWriteTextfile_BadPath(t *testing.T) {
	r := NewRegistry()

	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "envelope.prom"))
	if err == nil {
		t.Fatal("WriteTextfile() should fail for a missing directory")
	}
}

func BenchmarkRecordEnvelopeOperation(b *testing.B) {
	r := NewRegistry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.RecordEnvelopeOperation("encrypt", StatusSuccess, 10*time.Millisecond, 512)
	}
}
