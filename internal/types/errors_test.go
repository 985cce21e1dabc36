package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConductErrorFormat(t *testing.T) {
	err := NewError(CYCLE_DETECTED, "cycle detected in task graph")
	assert.Equal(t, "[CYCLE_DETECTED] cycle detected in task graph", err.Error())
}

func TestConductErrorFormatWithCause(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := WrapError(GRAPH_PARSE_FAILED, "failed to parse graph", cause)

	assert.Equal(t, "[GRAPH_PARSE_FAILED] failed to parse graph: underlying failure", err.Error())
}

func TestConductErrorUnwrap(t *testing.T) {
	cause := errors.New("io failure")
	err := WrapError(LEDGER_WRITE_FAILED, "append failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestConductErrorIsMatchesByCode(t *testing.T) {
	a := NewError(ILLEGAL_TRANSITION, "completed -> running")
	b := NewError(ILLEGAL_TRANSITION, "a different message")
	c := NewError(RETRY_EXHAUSTED, "budget spent")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestRetryableFlag(t *testing.T) {
	retryable := NewRetryableError(EXECUTOR_FAILED, "transient failure")
	fatal := NewError(DEPENDENCY_UNSATISFIED, "missing deps")

	assert.True(t, retryable.Retryable)
	assert.False(t, fatal.Retryable)
}

func TestHasCode(t *testing.T) {
	err := WrapError(RUN_ABORTED, "run aborted",
		NewError(RETRY_EXHAUSTED, "task b exhausted its budget"))

	assert.True(t, HasCode(err, RUN_ABORTED))
	assert.False(t, HasCode(err, CYCLE_DETECTED))
	assert.False(t, HasCode(errors.New("plain"), RUN_ABORTED))

	// Wrapped through fmt.Errorf the code is still discoverable.
	wrapped := fmt.Errorf("context: %w", err)
	require.True(t, HasCode(wrapped, RUN_ABORTED))
}
