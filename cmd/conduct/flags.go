package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduct-dev/conduct/cmd/conduct/internal"
)

// GlobalFlags holds persistent flags available to all commands
type GlobalFlags struct {
	Verbose    bool
	Quiet      bool
	Output     string
	ConfigFile string
}

var globalFlags = &GlobalFlags{}

// RegisterGlobalFlags registers persistent flags on the root command
func RegisterGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVarP(&globalFlags.Output, "output", "o", "text", "Output format (text|json)")
	cmd.PersistentFlags().StringVar(&globalFlags.ConfigFile, "config", "", "Path to config file (default: ~/.conduct/config.yaml)")
}

// ParseGlobalFlags validates the persistent flags.
func ParseGlobalFlags(cmd *cobra.Command) (*GlobalFlags, error) {
	switch globalFlags.Output {
	case string(internal.FormatText), string(internal.FormatJSON):
	default:
		return nil, internal.NewCLIError(internal.ExitConfigError,
			fmt.Sprintf("invalid output format: %s (must be text or json)", globalFlags.Output))
	}

	if globalFlags.Verbose && globalFlags.Quiet {
		return nil, internal.NewCLIError(internal.ExitConfigError,
			"--verbose and --quiet cannot be used together")
	}

	return globalFlags, nil
}

// Format returns the parsed output format.
func (f *GlobalFlags) Format() internal.OutputFormat {
	if f.Output == string(internal.FormatJSON) {
		return internal.FormatJSON
	}
	return internal.FormatText
}

// IsVerbose returns true if verbose mode is enabled
func (f *GlobalFlags) IsVerbose() bool {
	return f.Verbose && !f.Quiet
}
