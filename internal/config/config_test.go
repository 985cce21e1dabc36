package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conduct-dev/conduct/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, NewValidator().Validate(cfg))

	assert.Equal(t, 0, cfg.Core.MaxParallel)
	assert.Equal(t, 3, cfg.Core.DefaultMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Core.TaskTimeout)
	assert.True(t, cfg.Ledger.Enabled)
	assert.NotEmpty(t, cfg.Ledger.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Tracing.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
core:
  max_parallel: 4
  default_max_attempts: 2
  task_timeout: 30s
  debug: true
ledger:
  enabled: true
  path: /tmp/conduct/ledger.jsonl
logging:
  level: debug
  format: text
  output: stderr
tracing:
  enabled: true
  provider: otlp
  endpoint: collector:4317
  service_name: conduct
  sample_rate: 0.5
  insecure_mode: true
metrics:
  enabled: true
  provider: prometheus
  port: 9100
`)

	loader := NewConfigLoader(NewValidator())
	cfg, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Core.MaxParallel)
	assert.Equal(t, 2, cfg.Core.DefaultMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Core.TaskTimeout)
	assert.True(t, cfg.Core.Debug)
	assert.Equal(t, "/tmp/conduct/ledger.jsonl", cfg.Ledger.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, 0.5, cfg.Tracing.SampleRate)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)
}

func TestLoadMissingFile(t *testing.T) {
	loader := NewConfigLoader(NewValidator())
	_, err := loader.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CONFIG_LOAD_FAILED))
}

func TestLoadWithDefaultsFallsBack(t *testing.T) {
	loader := NewConfigLoader(NewValidator())
	cfg, err := loader.LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Core, cfg.Core)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "core: [not: a: mapping")
	loader := NewConfigLoader(NewValidator())
	_, err := loader.Load(path)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CONFIG_LOAD_FAILED))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "negative max_parallel",
			content: `
core:
  max_parallel: -1
  default_max_attempts: 3
logging: {level: info, format: json, output: stderr}
`,
		},
		{
			name: "zero attempts",
			content: `
core:
  max_parallel: 0
  default_max_attempts: 0
logging: {level: info, format: json, output: stderr}
`,
		},
		{
			name: "bad log level",
			content: `
core:
  max_parallel: 0
  default_max_attempts: 3
logging: {level: shout, format: json, output: stderr}
`,
		},
		{
			name: "ledger enabled without path",
			content: `
core:
  max_parallel: 0
  default_max_attempts: 3
ledger:
  enabled: true
  path: ""
logging: {level: info, format: json, output: stderr}
`,
		},
		{
			name: "bad metrics port",
			content: `
core:
  max_parallel: 0
  default_max_attempts: 3
logging: {level: info, format: json, output: stderr}
metrics: {enabled: true, provider: prometheus, port: 0}
`,
		},
	}

	loader := NewConfigLoader(NewValidator())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.CONFIG_VALIDATION_FAILED))
		})
	}
}

func TestEnvVarInterpolation(t *testing.T) {
	t.Setenv("CONDUCT_TEST_LEDGER_DIR", "/data/conduct")
	t.Setenv("CONDUCT_TEST_ENDPOINT", "otel.example.com:4317")

	path := writeConfig(t, `
core:
  max_parallel: 0
  default_max_attempts: 3
ledger:
  enabled: true
  path: ${CONDUCT_TEST_LEDGER_DIR}/ledger.jsonl
logging: {level: info, format: json, output: stderr}
tracing:
  enabled: true
  provider: otlp
  endpoint: ${CONDUCT_TEST_ENDPOINT}
  service_name: conduct
  sample_rate: 1.0
`)

	loader := NewConfigLoader(NewValidator())
	cfg, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/conduct/ledger.jsonl", cfg.Ledger.Path)
	assert.Equal(t, "otel.example.com:4317", cfg.Tracing.Endpoint)
}

func TestUnsetEnvVarLeftInPlace(t *testing.T) {
	path := writeConfig(t, `
core:
  max_parallel: 0
  default_max_attempts: 3
ledger:
  enabled: true
  path: ${CONDUCT_UNSET_VAR_FOR_TEST}/ledger.jsonl
logging: {level: info, format: json, output: stderr}
`)

	loader := NewConfigLoader(NewValidator())
	cfg, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${CONDUCT_UNSET_VAR_FOR_TEST}/ledger.jsonl", cfg.Ledger.Path)
}

func TestDefaultConfigPath(t *testing.T) {
	assert.Equal(t, "/home/u/.conduct/config.yaml", DefaultConfigPath("/home/u/.conduct"))
}
