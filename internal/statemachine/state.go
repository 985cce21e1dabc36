// Package statemachine implements the execution state machine for tasks.
//
// A generic transition-table engine (Machine) enforces which state moves
// are legal; TaskStateMachine composes it with the per-task execution
// record to add the retry budget and dependency checks. The table is
// static data, not behavior: CanTransition is a pure lookup and
// Transition never coerces to a different state than the one requested.
package statemachine

// State is the execution state of a task.
type State string

const (
	// StatePending indicates the task is eligible or awaiting (re)execution.
	StatePending State = "pending"

	// StateRunning indicates an executor attempt is in flight.
	StateRunning State = "running"

	// StateCompleted indicates the task finished successfully. Terminal.
	StateCompleted State = "completed"

	// StateFailed indicates the most recent attempt failed. The task may
	// still return to pending while retry budget remains.
	StateFailed State = "failed"

	// StateSkipped indicates the task was deliberately not executed. Terminal.
	StateSkipped State = "skipped"

	// StateCancelled indicates the task was abandoned between attempts. Terminal.
	StateCancelled State = "cancelled"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if the state has no outgoing transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateSkipped, StateCancelled:
		return true
	default:
		return false
	}
}

// TaskTransitions is the transition table for task execution.
//
//	pending   -> running, skipped, cancelled
//	running   -> completed, failed, cancelled
//	failed    -> pending, cancelled
//	completed, skipped, cancelled -> (none)
var TaskTransitions = map[State][]State{
	StatePending:   {StateRunning, StateSkipped, StateCancelled},
	StateRunning:   {StateCompleted, StateFailed, StateCancelled},
	StateFailed:    {StatePending, StateCancelled},
	StateCompleted: {},
	StateSkipped:   {},
	StateCancelled: {},
}
