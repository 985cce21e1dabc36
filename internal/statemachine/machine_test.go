package statemachine

import (
	"testing"

	"github.com/conduct-dev/conduct/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMachineRejectsUnknownInitialState(t *testing.T) {
	_, err := NewMachine(TaskTransitions, State("limbo"))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ILLEGAL_TRANSITION))
}

func TestMachineAllowedTransitions(t *testing.T) {
	tests := []struct {
		from    State
		to      State
		allowed bool
	}{
		{StatePending, StateRunning, true},
		{StatePending, StateSkipped, true},
		{StatePending, StateCancelled, true},
		{StatePending, StateCompleted, false},
		{StatePending, StateFailed, false},
		{StateRunning, StateCompleted, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateCancelled, true},
		{StateRunning, StatePending, false},
		{StateFailed, StatePending, true},
		{StateFailed, StateCancelled, true},
		{StateFailed, StateRunning, false},
		{StateCompleted, StateRunning, false},
		{StateCompleted, StateCancelled, false},
		{StateSkipped, StatePending, false},
		{StateCancelled, StatePending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			m, err := NewMachine(TaskTransitions, tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, m.CanTransition(tt.to))

			err = m.Transition(tt.to)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, m.State())
			} else {
				require.Error(t, err)
				assert.True(t, types.HasCode(err, types.ILLEGAL_TRANSITION))
				assert.Equal(t, tt.from, m.State(), "state must not change on refused transition")
			}
		})
	}
}

func TestMachineNeverCoerces(t *testing.T) {
	m, err := NewMachine(TaskTransitions, StatePending)
	require.NoError(t, err)

	// A refused transition leaves the machine exactly where it was; it
	// never lands in some third state.
	require.Error(t, m.Transition(StateCompleted))
	assert.Equal(t, StatePending, m.State())

	require.NoError(t, m.Transition(StateRunning))
	require.Error(t, m.Transition(StateSkipped))
	assert.Equal(t, StateRunning, m.State())
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateSkipped.IsTerminal())
	assert.True(t, StateCancelled.IsTerminal())
	assert.False(t, StatePending.IsTerminal())
	assert.False(t, StateRunning.IsTerminal())
	assert.False(t, StateFailed.IsTerminal())

	for _, s := range []State{StateCompleted, StateSkipped, StateCancelled} {
		assert.Empty(t, TaskTransitions[s], "terminal state %s must have no outgoing transitions", s)
	}
}

func TestMachineCustomTable(t *testing.T) {
	// The engine is generic: any table works, not just the task table.
	table := map[State][]State{
		State("open"):   {State("closed")},
		State("closed"): {},
	}

	m, err := NewMachine(table, State("open"))
	require.NoError(t, err)
	require.NoError(t, m.Transition(State("closed")))
	assert.Error(t, m.Transition(State("open")))
}
