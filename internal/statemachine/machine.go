package statemachine

import (
	"fmt"

	"github.com/conduct-dev/conduct/internal/types"
)

// Machine is a generic finite-state machine driven by a transition table.
// It knows nothing about tasks, attempts or budgets; those are layered on
// by TaskStateMachine through composition.
//
// Machine is not safe for concurrent use; callers serialize transitions
// per machine.
type Machine struct {
	table   map[State][]State
	current State
}

// NewMachine creates a Machine with the given transition table and initial
// state. The initial state must appear as a key in the table.
func NewMachine(table map[State][]State, initial State) (*Machine, error) {
	if _, ok := table[initial]; !ok {
		return nil, types.NewError(types.ILLEGAL_TRANSITION,
			fmt.Sprintf("initial state %q is not in the transition table", initial))
	}
	return &Machine{table: table, current: initial}, nil
}

// State returns the machine's current state.
func (m *Machine) State() State {
	return m.current
}

// CanTransition reports whether moving from the current state to target is
// allowed by the table. It is a pure function of the table and current state.
func (m *Machine) CanTransition(target State) bool {
	for _, allowed := range m.table[m.current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Transition moves the machine to target, or returns an ILLEGAL_TRANSITION
// error when the table forbids the move. The state is unchanged on error.
func (m *Machine) Transition(target State) error {
	if !m.CanTransition(target) {
		return types.NewError(types.ILLEGAL_TRANSITION,
			fmt.Sprintf("invalid transition from %s to %s", m.current, target))
	}
	m.current = target
	return nil
}
