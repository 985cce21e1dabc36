package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/conduct-dev/conduct/internal/types"
	"github.com/spf13/viper"
)

// ConfigLoader handles loading configuration from files.
type ConfigLoader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperConfigLoader implements ConfigLoader using Viper.
type viperConfigLoader struct {
	validator ConfigValidator
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader(validator ConfigValidator) ConfigLoader {
	return &viperConfigLoader{
		validator: validator,
	}
}

// Load loads configuration from the specified file path.
// Returns an error if the file doesn't exist or cannot be parsed.
func (l *viperConfigLoader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to unmarshal config", err)
	}

	applyInterpolation(&cfg)

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED, "configuration validation failed", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration.
func (l *viperConfigLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := l.validator.Validate(cfg); err != nil {
			return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED,
				"default configuration validation failed", err)
		}
		return cfg, nil
	}

	return l.Load(path)
}

// envVarPattern matches ${VAR_NAME} references.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateString replaces ${VAR_NAME} with environment variable values.
// Unset variables leave the reference in place.
func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if envValue := os.Getenv(varName); envValue != "" {
			return envValue
		}
		return match
	})
}

// applyInterpolation expands environment references in the string-valued
// config fields.
func applyInterpolation(cfg *Config) {
	cfg.Ledger.Path = interpolateString(cfg.Ledger.Path)
	cfg.Logging.Level = interpolateString(cfg.Logging.Level)
	cfg.Logging.Format = interpolateString(cfg.Logging.Format)
	cfg.Logging.Output = interpolateString(cfg.Logging.Output)
	cfg.Tracing.Endpoint = interpolateString(cfg.Tracing.Endpoint)
	cfg.Tracing.ServiceName = interpolateString(cfg.Tracing.ServiceName)
	cfg.Tracing.TLSCertFile = interpolateString(cfg.Tracing.TLSCertFile)
	cfg.Tracing.TLSKeyFile = interpolateString(cfg.Tracing.TLSKeyFile)
}
