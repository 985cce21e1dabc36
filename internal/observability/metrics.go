package observability

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metric name constants. Centralized so instrument names stay consistent
// across the codebase.
const (
	// Task execution metrics
	MetricTasksCompleted = "conduct.tasks.completed"
	MetricTasksFailed    = "conduct.tasks.failed"
	MetricTasksRetried   = "conduct.tasks.retried"
	MetricTaskDuration   = "conduct.task.duration"

	// Run and wave metrics
	MetricRunsStarted  = "conduct.runs.started"
	MetricRunDuration  = "conduct.run.duration"
	MetricWaveDuration = "conduct.wave.duration"

	// Event bus metrics
	MetricEventsPublished = "conduct.events.published"
	MetricEventsDropped   = "conduct.events.dropped"
)

// InitMetrics initializes and returns a metrics provider based on the
// configuration. Supports "prometheus" and "otlp" provider types.
//
// For Prometheus:
//   - Creates a Prometheus exporter backing a scrape endpoint
//   - No explicit shutdown required (handled by the HTTP server)
//
// For OTLP:
//   - Creates an OTLP gRPC exporter that pushes metrics to a collector
//   - Requires explicit shutdown via the returned MeterProvider
//
// When cfg.Enabled is false a no-op provider is returned.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		return noop.NewMeterProvider(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "prometheus":
		return initPrometheusProvider()

	case "otlp":
		return initOTLPProvider(ctx, cfg)

	default:
		return nil, fmt.Errorf("unsupported metrics provider: %s", cfg.Provider)
	}
}

// initPrometheusProvider creates a Prometheus-backed meter provider. The
// exporter registers with the default Prometheus registry, which the
// scrape endpoint serves.
func initPrometheusProvider() (metric.MeterProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	return provider, nil
}

// initOTLPProvider creates an OTLP meter provider that pushes metrics to
// a collector endpoint via gRPC.
func initOTLPProvider(ctx context.Context, cfg MetricsConfig) (metric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(fmt.Sprintf("localhost:%d", cfg.Port)),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	return provider, nil
}

// Recorder records run and task metrics through OpenTelemetry instruments.
//
// Instruments are lazily created on first use and cached for subsequent
// recordings, so only the metrics the process actually emits are created.
//
// Thread safety:
//   - sync.RWMutex protects the instrument maps
//   - Safe to call from multiple goroutines simultaneously
type Recorder struct {
	meter      metric.Meter
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
	mu         sync.RWMutex
}

// NewRecorder creates a metrics recorder on the given meter.
//
// Example:
//
//	provider, _ := InitMetrics(ctx, cfg)
//	meter := provider.Meter("conduct")
//	recorder := NewRecorder(meter)
func NewRecorder(meter metric.Meter) *Recorder {
	return &Recorder{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// RecordCounter increments a counter metric by the given value.
func (r *Recorder) RecordCounter(name string, value int64, labels map[string]string) {
	counter := r.getOrCreateCounter(name)
	if counter == nil {
		return
	}

	attrs := labelsToAttributes(labels)
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

// RecordHistogram records a value in a histogram metric.
func (r *Recorder) RecordHistogram(name string, value float64, labels map[string]string) {
	histogram := r.getOrCreateHistogram(name)
	if histogram == nil {
		return
	}

	attrs := labelsToAttributes(labels)
	histogram.Record(context.Background(), value, metric.WithAttributes(attrs...))
}

// RecordTaskCompleted records a successful task execution.
//
// Recorded metrics:
//   - conduct.tasks.completed (counter)
//   - conduct.task.duration (histogram, milliseconds)
func (r *Recorder) RecordTaskCompleted(taskID string, attempt int, duration time.Duration) {
	labels := map[string]string{
		"task_id": taskID,
		"attempt": fmt.Sprintf("%d", attempt),
	}

	r.RecordCounter(MetricTasksCompleted, 1, labels)
	r.RecordHistogram(MetricTaskDuration, float64(duration.Milliseconds()), labels)
}

// RecordTaskFailed records a failed task attempt.
//
// Recorded metrics:
//   - conduct.tasks.failed (counter)
//   - conduct.task.duration (histogram, milliseconds)
func (r *Recorder) RecordTaskFailed(taskID string, attempt int, duration time.Duration, exhausted bool) {
	labels := map[string]string{
		"task_id":   taskID,
		"attempt":   fmt.Sprintf("%d", attempt),
		"exhausted": fmt.Sprintf("%t", exhausted),
	}

	r.RecordCounter(MetricTasksFailed, 1, labels)
	r.RecordHistogram(MetricTaskDuration, float64(duration.Milliseconds()), labels)
}

// RecordTaskRetried records a task returning to pending for another attempt.
func (r *Recorder) RecordTaskRetried(taskID string, nextAttempt int) {
	labels := map[string]string{
		"task_id": taskID,
		"attempt": fmt.Sprintf("%d", nextAttempt),
	}

	r.RecordCounter(MetricTasksRetried, 1, labels)
}

// RecordRun records a finished run.
//
// Recorded metrics:
//   - conduct.runs.started (counter)
//   - conduct.run.duration (histogram, milliseconds)
func (r *Recorder) RecordRun(status string, duration time.Duration) {
	labels := map[string]string{
		"status": status,
	}

	r.RecordCounter(MetricRunsStarted, 1, labels)
	r.RecordHistogram(MetricRunDuration, float64(duration.Milliseconds()), labels)
}

// RecordWave records the duration of one scheduler wave.
func (r *Recorder) RecordWave(wave int, duration time.Duration) {
	labels := map[string]string{
		"wave": fmt.Sprintf("%d", wave),
	}

	r.RecordHistogram(MetricWaveDuration, float64(duration.Milliseconds()), labels)
}

// RecordEventPublished implements the event bus MetricsRecorder interface.
func (r *Recorder) RecordEventPublished(eventType string, subscriberCount int) {
	r.RecordCounter(MetricEventsPublished, 1, map[string]string{
		"event_type": eventType,
	})
}

// RecordEventDropped implements the event bus MetricsRecorder interface.
func (r *Recorder) RecordEventDropped(eventType string, subscriberID string) {
	r.RecordCounter(MetricEventsDropped, 1, map[string]string{
		"event_type": eventType,
	})
}

// RecordSubscriberAdded implements the event bus MetricsRecorder interface.
func (r *Recorder) RecordSubscriberAdded(subscriberID string) {}

// RecordSubscriberRemoved implements the event bus MetricsRecorder interface.
func (r *Recorder) RecordSubscriberRemoved(subscriberID string, duration time.Duration) {}

// getOrCreateCounter retrieves or creates a counter instrument.
func (r *Recorder) getOrCreateCounter(name string) metric.Int64Counter {
	r.mu.RLock()
	counter, exists := r.counters[name]
	r.mu.RUnlock()

	if exists {
		return counter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check in case another goroutine created it
	if counter, exists := r.counters[name]; exists {
		return counter
	}

	counter, err := r.meter.Int64Counter(name)
	if err != nil {
		return nil
	}

	r.counters[name] = counter
	return counter
}

// getOrCreateHistogram retrieves or creates a histogram instrument.
func (r *Recorder) getOrCreateHistogram(name string) metric.Float64Histogram {
	r.mu.RLock()
	histogram, exists := r.histograms[name]
	r.mu.RUnlock()

	if exists {
		return histogram
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check in case another goroutine created it
	if histogram, exists := r.histograms[name]; exists {
		return histogram
	}

	histogram, err := r.meter.Float64Histogram(name)
	if err != nil {
		return nil
	}

	r.histograms[name] = histogram
	return histogram
}

// labelsToAttributes converts a string map to OpenTelemetry attributes.
func labelsToAttributes(labels map[string]string) []attribute.KeyValue {
	if labels == nil {
		return []attribute.KeyValue{}
	}

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
