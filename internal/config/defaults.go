package config

import (
	"path/filepath"
	"time"

	"github.com/conduct-dev/conduct/internal/observability"
	"github.com/conduct-dev/conduct/internal/task"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := DefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			MaxParallel:        0,
			DefaultMaxAttempts: task.DefaultMaxAttempts,
			TaskTimeout:        5 * time.Minute,
			Debug:              false,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir, "ledger.jsonl"),
		},
		Logging: observability.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Tracing: observability.TracingConfig{
			Enabled:    false,
			Provider:   "otlp",
			SampleRate: 1.0,
		},
		Metrics: observability.MetricsConfig{
			Enabled:  false,
			Provider: "prometheus",
			Port:     9090,
		},
	}
}
