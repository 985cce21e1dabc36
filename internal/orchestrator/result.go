package orchestrator

import (
	"time"

	"github.com/conduct-dev/conduct/internal/statemachine"
	"github.com/conduct-dev/conduct/internal/types"
)

// TaskResult is the per-task outcome of a run.
type TaskResult struct {
	// TaskID names the task.
	TaskID string `json:"task_id"`

	// State is the task's final state when the run ended.
	State statemachine.State `json:"state"`

	// Attempts counts entries into the running state.
	Attempts int `json:"attempts"`

	// TraceID correlates every attempt of this task across the ledger,
	// the event stream and emitted spans.
	TraceID types.TraceID `json:"trace_id"`

	// Output is whatever the executor returned on the successful attempt.
	Output any `json:"output,omitempty"`

	// Error holds the final attempt's error for tasks that did not
	// complete.
	Error string `json:"error,omitempty"`

	// Duration is wall time across all attempts of the task.
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the task reached completed.
func (r *TaskResult) Succeeded() bool {
	return r.State == statemachine.StateCompleted
}
