package config

import (
	"os"
	"path/filepath"
)

// DefaultHomeDir returns the default home directory, ~/.conduct, falling
// back to a temporary directory if user home cannot be determined.
func DefaultHomeDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".conduct")
	}
	return filepath.Join(userHome, ".conduct")
}

// DefaultConfigPath returns the default config file path for a given home directory.
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}
