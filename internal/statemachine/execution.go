package statemachine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduct-dev/conduct/internal/task"
	"github.com/conduct-dev/conduct/internal/types"
)

// TaskExecution is the mutable per-task record driven through the state
// machine by the orchestrator, which owns it exclusively for the duration
// of a run. The TraceID is minted once at creation and shared by every
// attempt of the task, so the ledger can correlate retries.
type TaskExecution struct {
	TaskID       string
	State        State
	Attempt      int
	MaxAttempts  int
	TraceID      types.TraceID
	Dependencies []string
	Metadata     map[string]any
}

// NewTaskExecution creates the execution record for a task, in the pending
// state with a fresh trace id and zero attempts. Dependencies are copied
// from the task so the record stays valid even if the graph is discarded.
func NewTaskExecution(t task.Task) *TaskExecution {
	deps := make([]string, len(t.Dependencies))
	copy(deps, t.Dependencies)

	maxAttempts := t.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = task.DefaultMaxAttempts
	}

	return &TaskExecution{
		TaskID:       t.ID,
		State:        StatePending,
		Attempt:      0,
		MaxAttempts:  maxAttempts,
		TraceID:      types.NewTraceID(),
		Dependencies: deps,
		Metadata:     t.Metadata,
	}
}

// AttemptsRemaining reports whether the retry budget allows another entry
// into the running state.
func (e *TaskExecution) AttemptsRemaining() bool {
	return e.Attempt < e.MaxAttempts
}

// Snapshot is a JSON-serialisable view of a task execution.
type Snapshot struct {
	TaskID       string         `json:"task_id"`
	State        string         `json:"state"`
	TraceID      string         `json:"trace_id"`
	Attempt      int            `json:"attempt"`
	MaxAttempts  int            `json:"max_attempts"`
	Dependencies []string       `json:"dependencies"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Snapshot returns a point-in-time view of the execution record.
func (e *TaskExecution) Snapshot() Snapshot {
	deps := make([]string, len(e.Dependencies))
	copy(deps, e.Dependencies)
	var meta map[string]any
	if len(e.Metadata) > 0 {
		meta = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
	}
	return Snapshot{
		TaskID:       e.TaskID,
		State:        e.State.String(),
		TraceID:      e.TraceID.String(),
		Attempt:      e.Attempt,
		MaxAttempts:  e.MaxAttempts,
		Dependencies: deps,
		Metadata:     meta,
	}
}

// TaskStateMachine couples a TaskExecution to the generic Machine and adds
// the retry-budget rules: entering running consumes an attempt and is
// refused outright once the budget is spent, and failed may only return to
// pending while attempts remain.
type TaskStateMachine struct {
	exec    *TaskExecution
	machine *Machine
}

// NewTaskStateMachine wraps an execution record in a state machine using
// the task transition table.
func NewTaskStateMachine(exec *TaskExecution) *TaskStateMachine {
	// The table always contains the record's states, so NewMachine cannot
	// fail here.
	m, _ := NewMachine(TaskTransitions, exec.State)
	return &TaskStateMachine{exec: exec, machine: m}
}

// Execution returns the underlying execution record.
func (sm *TaskStateMachine) Execution() *TaskExecution {
	return sm.exec
}

// State returns the current state.
func (sm *TaskStateMachine) State() State {
	return sm.machine.State()
}

// CanTransition reports whether the table allows the move. The retry
// budget is enforced only by Start and Reset, mirroring the contract that
// CanTransition is a pure function of the table.
func (sm *TaskStateMachine) CanTransition(target State) bool {
	return sm.machine.CanTransition(target)
}

// Start drives pending -> running and consumes one attempt. The transition
// itself fails with RETRY_EXHAUSTED when the budget does not cover another
// attempt; the record stays in its current state.
func (sm *TaskStateMachine) Start() error {
	if !sm.exec.AttemptsRemaining() {
		return types.NewError(types.RETRY_EXHAUSTED,
			fmt.Sprintf("task %s has exhausted its %d attempts", sm.exec.TaskID, sm.exec.MaxAttempts))
	}
	if err := sm.machine.Transition(StateRunning); err != nil {
		return err
	}
	sm.exec.State = StateRunning
	sm.exec.Attempt++
	return nil
}

// Complete drives running -> completed.
func (sm *TaskStateMachine) Complete() error {
	if err := sm.machine.Transition(StateCompleted); err != nil {
		return err
	}
	sm.exec.State = StateCompleted
	return nil
}

// Fail drives running -> failed.
func (sm *TaskStateMachine) Fail() error {
	if err := sm.machine.Transition(StateFailed); err != nil {
		return err
	}
	sm.exec.State = StateFailed
	return nil
}

// Reset drives failed -> pending for another attempt. Once the budget is
// exhausted the only legal exit from failed is Cancel, and Reset returns
// RETRY_EXHAUSTED.
func (sm *TaskStateMachine) Reset() error {
	if sm.machine.State() == StateFailed && !sm.exec.AttemptsRemaining() {
		return types.NewError(types.RETRY_EXHAUSTED,
			fmt.Sprintf("task %s cannot be reset: %d of %d attempts used",
				sm.exec.TaskID, sm.exec.Attempt, sm.exec.MaxAttempts))
	}
	if err := sm.machine.Transition(StatePending); err != nil {
		return err
	}
	sm.exec.State = StatePending
	return nil
}

// Skip drives pending -> skipped.
func (sm *TaskStateMachine) Skip() error {
	if err := sm.machine.Transition(StateSkipped); err != nil {
		return err
	}
	sm.exec.State = StateSkipped
	return nil
}

// Cancel drives the machine to cancelled from any state that allows it.
func (sm *TaskStateMachine) Cancel() error {
	if err := sm.machine.Transition(StateCancelled); err != nil {
		return err
	}
	sm.exec.State = StateCancelled
	return nil
}

// EnsureDependenciesSatisfied verifies every declared dependency appears in
// the completed set. A violation indicates a scheduling bug upstream and is
// returned as a DEPENDENCY_UNSATISFIED error naming the unmet ids in
// sorted order.
func (sm *TaskStateMachine) EnsureDependenciesSatisfied(completed map[string]bool) error {
	var unmet []string
	for _, dep := range sm.exec.Dependencies {
		if !completed[dep] {
			unmet = append(unmet, dep)
		}
	}
	if len(unmet) == 0 {
		return nil
	}
	sort.Strings(unmet)
	return types.NewError(types.DEPENDENCY_UNSATISFIED,
		fmt.Sprintf("task %s cannot run; unmet dependencies: %s",
			sm.exec.TaskID, strings.Join(unmet, ", ")))
}
