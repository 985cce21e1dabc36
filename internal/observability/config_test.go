package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTracingConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    TracingConfig
		wantError bool
		errMsg    string
	}{
		{
			name: "valid otlp config",
			config: TracingConfig{
				Enabled:     true,
				Provider:    "otlp",
				Endpoint:    "localhost:4317",
				ServiceName: "conduct",
				SampleRate:  0.5,
			},
			wantError: false,
		},
		{
			name: "unsupported provider",
			config: TracingConfig{
				Enabled:     true,
				Provider:    "jaeger",
				Endpoint:    "http://localhost:14268",
				ServiceName: "conduct-test",
				SampleRate:  1.0,
			},
			wantError: true,
			errMsg:    "invalid tracing provider",
		},
		{
			name: "disabled config always valid",
			config: TracingConfig{
				Enabled:  false,
				Provider: "invalid",
			},
			wantError: false,
		},
		{
			name: "noop needs no endpoint",
			config: TracingConfig{
				Enabled:    true,
				Provider:   "noop",
				SampleRate: 1.0,
			},
			wantError: false,
		},
		{
			name: "sample rate out of range",
			config: TracingConfig{
				Enabled:     true,
				Provider:    "otlp",
				Endpoint:    "localhost:4317",
				ServiceName: "conduct",
				SampleRate:  1.5,
			},
			wantError: true,
			errMsg:    "invalid sample rate",
		},
		{
			name: "missing endpoint",
			config: TracingConfig{
				Enabled:     true,
				Provider:    "otlp",
				ServiceName: "conduct",
				SampleRate:  1.0,
			},
			wantError: true,
			errMsg:    "endpoint is required",
		},
		{
			name: "missing service name",
			config: TracingConfig{
				Enabled:    true,
				Provider:   "otlp",
				Endpoint:   "localhost:4317",
				SampleRate: 1.0,
			},
			wantError: true,
			errMsg:    "service name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetricsConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    MetricsConfig
		wantError bool
		errMsg    string
	}{
		{
			name:      "valid prometheus config",
			config:    MetricsConfig{Enabled: true, Provider: "prometheus", Port: 9090},
			wantError: false,
		},
		{
			name:      "valid otlp config",
			config:    MetricsConfig{Enabled: true, Provider: "otlp", Port: 4317},
			wantError: false,
		},
		{
			name:      "disabled config always valid",
			config:    MetricsConfig{Enabled: false, Provider: "bogus", Port: -1},
			wantError: false,
		},
		{
			name:      "invalid provider",
			config:    MetricsConfig{Enabled: true, Provider: "statsd", Port: 8125},
			wantError: true,
			errMsg:    "invalid metrics provider",
		},
		{
			name:      "port too low",
			config:    MetricsConfig{Enabled: true, Provider: "prometheus", Port: 0},
			wantError: true,
			errMsg:    "invalid port",
		},
		{
			name:      "port too high",
			config:    MetricsConfig{Enabled: true, Provider: "prometheus", Port: 70000},
			wantError: true,
			errMsg:    "invalid port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    LoggingConfig
		wantError bool
		errMsg    string
	}{
		{
			name:      "valid json stdout",
			config:    LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			wantError: false,
		},
		{
			name:      "valid text stderr",
			config:    LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
			wantError: false,
		},
		{
			name:      "valid file output",
			config:    LoggingConfig{Level: "warn", Format: "json", Output: "/var/log/conduct.log"},
			wantError: false,
		},
		{
			name:      "invalid level",
			config:    LoggingConfig{Level: "verbose", Format: "json", Output: "stdout"},
			wantError: true,
			errMsg:    "invalid log level",
		},
		{
			name:      "invalid format",
			config:    LoggingConfig{Level: "info", Format: "xml", Output: "stdout"},
			wantError: true,
			errMsg:    "invalid log format",
		},
		{
			name:      "relative path output",
			config:    LoggingConfig{Level: "info", Format: "json", Output: "logs/out.log"},
			wantError: true,
			errMsg:    "invalid log output",
		},
		{
			name:      "empty output",
			config:    LoggingConfig{Level: "info", Format: "json", Output: ""},
			wantError: true,
			errMsg:    "output is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTracingConfigYAMLRoundTrip(t *testing.T) {
	in := `
enabled: true
provider: otlp
endpoint: collector:4317
service_name: conduct
sample_rate: 0.25
insecure_mode: true
`
	var cfg TracingConfig
	require.NoError(t, yaml.Unmarshal([]byte(in), &cfg))

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "otlp", cfg.Provider)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.Equal(t, "conduct", cfg.ServiceName)
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.True(t, cfg.InsecureMode)
	assert.NoError(t, cfg.Validate())
}
