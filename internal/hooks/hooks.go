// Package hooks lets external code observe run execution at fixed points:
// before the run starts, after each task reaches a terminal-or-failed
// state, and after the run finishes.
//
// Hooks observe; they never drive transitions. A hook that returns an
// error or panics is logged and skipped, and the run continues.
package hooks

import (
	"context"
	"time"

	"github.com/conduct-dev/conduct/internal/types"
)

// RunInfo describes a run at the moment it starts.
type RunInfo struct {
	RunID     types.ID   `json:"run_id"`
	GraphName string     `json:"graph_name,omitempty"`
	TaskCount int        `json:"task_count"`
	Waves     [][]string `json:"waves"`
}

// TaskInfo describes a task that just finished an attempt cycle.
type TaskInfo struct {
	RunID   types.ID      `json:"run_id"`
	TaskID  string        `json:"task_id"`
	State   string        `json:"state"`
	Attempt int           `json:"attempt"`
	TraceID types.TraceID `json:"trace_id"`
	Error   string        `json:"error,omitempty"`
	Output  any           `json:"output,omitempty"`
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID    types.ID      `json:"run_id"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Tasks    []TaskInfo    `json:"tasks"`
}

// BeforeRunHook is called once before the first wave is dispatched.
type BeforeRunHook interface {
	BeforeRun(ctx context.Context, info RunInfo) error
}

// AfterTaskHook is called after each task settles, once per task rather
// than once per attempt.
type AfterTaskHook interface {
	AfterTask(ctx context.Context, info TaskInfo) error
}

// AfterRunHook is called once after the run finishes, whether it
// completed or aborted.
type AfterRunHook interface {
	AfterRun(ctx context.Context, summary RunSummary) error
}
