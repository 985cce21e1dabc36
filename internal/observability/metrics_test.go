package observability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitMetricsDisabled(t *testing.T) {
	provider, err := InitMetrics(context.Background(), MetricsConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, provider)
}

func TestInitMetricsPrometheus(t *testing.T) {
	provider, err := InitMetrics(context.Background(), MetricsConfig{
		Enabled:  true,
		Provider: "prometheus",
		Port:     9090,
	})
	require.NoError(t, err)
	require.NotNil(t, provider)

	if p, ok := provider.(*sdkmetric.MeterProvider); ok {
		_ = p.Shutdown(context.Background())
	}
}

func TestInitMetricsRejectsBadProvider(t *testing.T) {
	_, err := InitMetrics(context.Background(), MetricsConfig{
		Enabled:  true,
		Provider: "statsd",
		Port:     8125,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid metrics config")
}

// newTestRecorder returns a recorder backed by a manual reader so tests
// can collect what was recorded.
func newTestRecorder(t *testing.T) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return NewRecorder(provider.Meter("conduct-test")), reader
}

func collectMetricNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]bool {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestRecorderTaskMetrics(t *testing.T) {
	recorder, reader := newTestRecorder(t)

	recorder.RecordTaskCompleted("build", 1, 120*time.Millisecond)
	recorder.RecordTaskFailed("deploy", 2, 300*time.Millisecond, true)
	recorder.RecordTaskRetried("deploy", 2)

	names := collectMetricNames(t, reader)
	assert.True(t, names[MetricTasksCompleted])
	assert.True(t, names[MetricTasksFailed])
	assert.True(t, names[MetricTasksRetried])
	assert.True(t, names[MetricTaskDuration])
}

func TestRecorderRunAndWaveMetrics(t *testing.T) {
	recorder, reader := newTestRecorder(t)

	recorder.RecordRun("completed", 2*time.Second)
	recorder.RecordWave(1, 800*time.Millisecond)

	names := collectMetricNames(t, reader)
	assert.True(t, names[MetricRunsStarted])
	assert.True(t, names[MetricRunDuration])
	assert.True(t, names[MetricWaveDuration])
}

func TestRecorderEventBusMetrics(t *testing.T) {
	recorder, reader := newTestRecorder(t)

	recorder.RecordEventPublished("task.started", 3)
	recorder.RecordEventDropped("task.started", "sub-1")
	recorder.RecordSubscriberAdded("sub-1")
	recorder.RecordSubscriberRemoved("sub-1", time.Second)

	names := collectMetricNames(t, reader)
	assert.True(t, names[MetricEventsPublished])
	assert.True(t, names[MetricEventsDropped])
}

func TestRecorderConcurrentUse(t *testing.T) {
	recorder, reader := newTestRecorder(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				recorder.RecordTaskCompleted("build", 1, time.Millisecond)
				recorder.RecordCounter(MetricTasksRetried, 1, nil)
			}
		}()
	}
	wg.Wait()

	names := collectMetricNames(t, reader)
	assert.True(t, names[MetricTasksCompleted])
}

func TestRecorderWithNoopMeter(t *testing.T) {
	recorder := NewRecorder(noop.NewMeterProvider().Meter("noop"))

	// Must not panic with a meter that records nothing.
	recorder.RecordTaskCompleted("build", 1, time.Millisecond)
	recorder.RecordHistogram(MetricRunDuration, 1.0, map[string]string{"status": "ok"})
}
