package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for conduct errors.
type ErrorCode string

// Graph construction error codes
const (
	GRAPH_EMPTY              ErrorCode = "GRAPH_EMPTY"
	GRAPH_DUPLICATE_TASK     ErrorCode = "GRAPH_DUPLICATE_TASK"
	GRAPH_UNKNOWN_DEPENDENCY ErrorCode = "GRAPH_UNKNOWN_DEPENDENCY"
	GRAPH_INVALID_TASK       ErrorCode = "GRAPH_INVALID_TASK"
	GRAPH_PARSE_FAILED       ErrorCode = "GRAPH_PARSE_FAILED"
	TASK_NOT_FOUND           ErrorCode = "TASK_NOT_FOUND"
)

// Scheduling error codes
const (
	CYCLE_DETECTED ErrorCode = "CYCLE_DETECTED"
)

// Execution error codes
const (
	ILLEGAL_TRANSITION       ErrorCode = "ILLEGAL_TRANSITION"
	RETRY_EXHAUSTED          ErrorCode = "RETRY_EXHAUSTED"
	DEPENDENCY_UNSATISFIED   ErrorCode = "DEPENDENCY_UNSATISFIED"
	RUN_ALREADY_STARTED      ErrorCode = "RUN_ALREADY_STARTED"
	RUN_ABORTED              ErrorCode = "RUN_ABORTED"
	EXECUTOR_FAILED          ErrorCode = "EXECUTOR_FAILED"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Ledger error codes
const (
	LEDGER_WRITE_FAILED ErrorCode = "LEDGER_WRITE_FAILED"
)

// ConductError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type ConductError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *ConductError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *ConductError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a ConductError with the same Code.
func (e *ConductError) Is(target error) bool {
	var conductErr *ConductError
	if errors.As(target, &conductErr) {
		return e.Code == conductErr.Code
	}
	return false
}

// NewError creates a new non-retryable ConductError with the given code and message.
func NewError(code ErrorCode, message string) *ConductError {
	return &ConductError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable ConductError with the given code and message.
// Use this for transient errors that may succeed on retry.
func NewRetryableError(code ErrorCode, message string) *ConductError {
	return &ConductError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable ConductError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *ConductError {
	return &ConductError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// HasCode reports whether err (or anything it wraps) is a ConductError
// carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var conductErr *ConductError
	if errors.As(err, &conductErr) {
		return conductErr.Code == code
	}
	return false
}
