package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduct-dev/conduct/cmd/conduct/internal"
	"github.com/conduct-dev/conduct/internal/scheduler"
	"github.com/conduct-dev/conduct/internal/task"
)

var validateCmd = &cobra.Command{
	Use:   "validate GRAPH_FILE",
	Short: "Validate a task graph definition",
	Long: `Parse a graph definition and check it for structural problems:
duplicate or empty task ids, references to undefined dependencies, and
dependency cycles. Nothing is executed.

Exit codes:
  0 - graph is valid
  5 - graph is invalid (parse, reference, or cycle error)`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}

	graph, err := task.ParseGraphFile(args[0])
	if err != nil {
		return err
	}

	plan, err := scheduler.New().Plan(graph)
	if err != nil {
		return err
	}

	formatter := internal.NewFormatter(flags.Format(), cmd.OutOrStdout())
	return formatter.PrintSuccess(fmt.Sprintf("%s is valid: %d tasks in %d waves",
		args[0], plan.TotalTasks, plan.TotalWaves))
}
