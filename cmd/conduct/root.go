package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conduct-dev/conduct/internal/config"
	"github.com/conduct-dev/conduct/pkg/version"
)

// cfg is the loaded configuration, available to every subcommand after
// the persistent pre-run.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "conduct",
	Short: "Conduct - DAG task execution engine",
	Long: `Conduct executes interdependent tasks arranged as a directed acyclic
graph. The scheduler groups tasks into dependency waves, each task runs
under a bounded-retry state machine, and every lifecycle transition is
recorded to an append-only ledger.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig runs before every command. A missing config file is not an
// error; defaults apply and flags may override them.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		cfg = config.DefaultConfig()
		return nil
	}

	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}

	path := flags.ConfigFile
	if path == "" {
		path = config.DefaultConfigPath(config.DefaultHomeDir())
	}

	loader := config.NewConfigLoader(config.NewValidator())
	loaded, err := loader.LoadWithDefaults(path)
	if err != nil {
		return err
	}
	cfg = loaded

	if flags.IsVerbose() {
		cfg.Core.Debug = true
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.String())
	},
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
}
