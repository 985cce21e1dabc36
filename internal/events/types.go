package events

import (
	"time"

	"github.com/conduct-dev/conduct/internal/types"
)

// EventType identifies the category and nature of an event.
type EventType string

// Run lifecycle events track an orchestrator run end to end.
const (
	EventRunStarted   EventType = "run.started"
	EventRunProgress  EventType = "run.progress"
	EventRunCompleted EventType = "run.completed"
	EventRunAborted   EventType = "run.aborted"
)

// Wave events track each scheduler wave as it begins and drains.
const (
	EventWaveStarted   EventType = "wave.started"
	EventWaveCompleted EventType = "wave.completed"
)

// Task events track individual task execution within a run.
const (
	EventTaskStarted   EventType = "task.started"
	EventTaskCompleted EventType = "task.completed"
	EventTaskFailed    EventType = "task.failed"
	EventTaskRetried   EventType = "task.retried"
	EventTaskSkipped   EventType = "task.skipped"
	EventTaskCancelled EventType = "task.cancelled"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// Event is a single observability event emitted by the orchestrator. It is
// JSON-serializable and carries trace correlation so subscribers can join
// events against spans and ledger entries.
type Event struct {
	// Type identifies the category and nature of the event
	Type EventType `json:"type"`

	// Timestamp records when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// RunID associates the event with an orchestrator run
	RunID types.ID `json:"run_id,omitempty"`

	// TaskID identifies which task emitted the event (empty for run/wave events)
	TaskID string `json:"task_id,omitempty"`

	// TraceID is the task trace id, stable across retries of the same task
	TraceID string `json:"trace_id,omitempty"`

	// Payload contains event-specific typed data (use type assertion to access)
	Payload any `json:"payload,omitempty"`

	// Attrs contains additional key-value attributes for flexible event metadata
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Filter defines criteria for filtering events in subscriptions.
// All filter fields use AND logic - an event must match all specified
// criteria. Empty fields act as wildcards (match all).
type Filter struct {
	// Types filters by event types (empty = all types)
	Types []EventType `json:"types,omitempty"`

	// RunID filters by run (zero = all runs)
	RunID types.ID `json:"run_id,omitempty"`

	// TaskID filters by task (empty = all tasks)
	TaskID string `json:"task_id,omitempty"`
}

// Matches determines if the given event matches this filter's criteria.
// Empty filter fields act as wildcards that match any value.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if !f.RunID.IsZero() && event.RunID != f.RunID {
		return false
	}

	if f.TaskID != "" && event.TaskID != f.TaskID {
		return false
	}

	return true
}

// RunStartedPayload contains data for run.started events.
type RunStartedPayload struct {
	RunID     types.ID `json:"run_id"`
	GraphName string   `json:"graph_name,omitempty"`
	TaskCount int      `json:"task_count"`
	WaveCount int      `json:"wave_count"`
}

// RunProgressPayload contains data for run.progress events.
type RunProgressPayload struct {
	RunID          types.ID `json:"run_id"`
	CompletedTasks int      `json:"completed_tasks"`
	TotalTasks     int      `json:"total_tasks"`
	CurrentWave    int      `json:"current_wave"`
}

// RunCompletedPayload contains data for run.completed events.
type RunCompletedPayload struct {
	RunID         types.ID      `json:"run_id"`
	Duration      time.Duration `json:"duration"`
	TasksExecuted int           `json:"tasks_executed"`
	Success       bool          `json:"success"`
}

// RunAbortedPayload contains data for run.aborted events.
type RunAbortedPayload struct {
	RunID         types.ID      `json:"run_id"`
	Error         string        `json:"error"`
	FailedTask    string        `json:"failed_task,omitempty"`
	Duration      time.Duration `json:"duration"`
	TasksExecuted int           `json:"tasks_executed"`
}

// WaveStartedPayload contains data for wave.started events.
type WaveStartedPayload struct {
	RunID       types.ID `json:"run_id"`
	Wave        int      `json:"wave"`
	TaskIDs     []string `json:"task_ids"`
	CanParallel bool     `json:"can_parallel"`
}

// WaveCompletedPayload contains data for wave.completed events.
type WaveCompletedPayload struct {
	RunID    types.ID      `json:"run_id"`
	Wave     int           `json:"wave"`
	Duration time.Duration `json:"duration"`
}

// TaskStartedPayload contains data for task.started events.
type TaskStartedPayload struct {
	RunID   types.ID `json:"run_id"`
	TaskID  string   `json:"task_id"`
	Attempt int      `json:"attempt"`
}

// TaskCompletedPayload contains data for task.completed events.
type TaskCompletedPayload struct {
	RunID    types.ID      `json:"run_id"`
	TaskID   string        `json:"task_id"`
	Attempt  int           `json:"attempt"`
	Duration time.Duration `json:"duration"`
}

// TaskFailedPayload contains data for task.failed events.
type TaskFailedPayload struct {
	RunID     types.ID      `json:"run_id"`
	TaskID    string        `json:"task_id"`
	Attempt   int           `json:"attempt"`
	Error     string        `json:"error"`
	Duration  time.Duration `json:"duration"`
	Exhausted bool          `json:"exhausted"`
}

// TaskRetriedPayload contains data for task.retried events.
type TaskRetriedPayload struct {
	RunID       types.ID `json:"run_id"`
	TaskID      string   `json:"task_id"`
	NextAttempt int      `json:"next_attempt"`
	MaxAttempts int      `json:"max_attempts"`
}

// TaskSkippedPayload contains data for task.skipped events.
type TaskSkippedPayload struct {
	RunID  types.ID `json:"run_id"`
	TaskID string   `json:"task_id"`
	Reason string   `json:"reason,omitempty"`
}

// TaskCancelledPayload contains data for task.cancelled events.
type TaskCancelledPayload struct {
	RunID  types.ID `json:"run_id"`
	TaskID string   `json:"task_id"`
	Reason string   `json:"reason,omitempty"`
}
