// Package config loads and validates the configuration file. Files are
// YAML with ${VAR_NAME} environment variable interpolation, loaded
// through viper and validated with struct tags plus a few custom rules.
package config

import (
	"time"

	"github.com/conduct-dev/conduct/internal/observability"
)

// Config is the root configuration.
type Config struct {
	Core    CoreConfig                  `mapstructure:"core" yaml:"core" validate:"required"`
	Ledger  LedgerConfig                `mapstructure:"ledger" yaml:"ledger"`
	Logging observability.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics observability.MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CoreConfig contains core execution settings.
type CoreConfig struct {
	// MaxParallel caps how many tasks of one wave run concurrently.
	// Zero means sequential execution.
	MaxParallel int `mapstructure:"max_parallel" yaml:"max_parallel" validate:"min=0,max=1024"`

	// DefaultMaxAttempts is the retry budget for tasks that do not set
	// their own max_attempts.
	DefaultMaxAttempts int `mapstructure:"default_max_attempts" yaml:"default_max_attempts" validate:"min=1,max=100"`

	// TaskTimeout bounds a single task attempt. Zero disables the bound.
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`

	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// LedgerConfig configures the append-only run ledger.
type LedgerConfig struct {
	// Enabled controls whether run events are written to the ledger file.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the JSONL file the ledger appends to.
	Path string `mapstructure:"path" yaml:"path"`
}
