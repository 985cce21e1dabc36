package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduct-dev/conduct/cmd/conduct/internal"
	"github.com/conduct-dev/conduct/internal/scheduler"
	"github.com/conduct-dev/conduct/internal/task"
)

var planCmd = &cobra.Command{
	Use:   "plan GRAPH_FILE",
	Short: "Print the execution plan for a task graph",
	Long: `Compute and print the wave execution plan for a graph definition.

Each wave lists tasks whose dependencies were all satisfied by earlier
waves; tasks within a wave are ordered by descending priority with the
task id as tiebreak. The plan is deterministic: the same graph always
yields the same plan.

Examples:
  # Show the plan as a table
  conduct plan pipeline.yaml

  # Show the plan as JSON
  conduct plan pipeline.yaml -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
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
	if flags.Format() == internal.FormatJSON {
		return formatter.PrintJSON(plan)
	}

	cmd.Printf("Graph: %s (%d tasks, %d waves, max parallelism %d)\n\n",
		graphLabel(graph), plan.TotalTasks, plan.TotalWaves, plan.MaxParallelism)

	rows := make([][]string, 0, len(plan.Waves))
	for _, wave := range plan.Waves {
		rows = append(rows, []string{
			strconv.Itoa(wave.Index),
			strings.Join(wave.TaskIDs, ", "),
			fmt.Sprintf("%t", wave.CanParallel),
		})
	}
	return formatter.PrintTable([]string{"wave", "tasks", "parallel"}, rows)
}

func graphLabel(g *task.Graph) string {
	if g.Name() != "" {
		return g.Name()
	}
	return "(unnamed)"
}
