package orchestrator

import (
	"context"

	"github.com/conduct-dev/conduct/internal/statemachine"
)

// Executor performs the actual work of a single task attempt. The
// orchestrator calls Execute once per attempt; a non-nil error counts
// against the task's retry budget. The returned output is opaque to the
// orchestrator and surfaces unchanged in the task's result.
//
// Implementations must honor ctx cancellation; the orchestrator never
// kills an in-flight call, it only stops dispatching new attempts.
type Executor interface {
	Execute(ctx context.Context, taskID string, exec *statemachine.TaskExecution) (any, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, taskID string, exec *statemachine.TaskExecution) (any, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, taskID string, exec *statemachine.TaskExecution) (any, error) {
	return f(ctx, taskID, exec)
}
