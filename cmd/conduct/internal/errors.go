package internal

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduct-dev/conduct/internal/types"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitRunAborted indicates a run aborted because a task exhausted its retries
	ExitRunAborted = 2
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitGraphError indicates an invalid or cyclic task graph
	ExitGraphError = 5
	// ExitConfigError indicates a configuration error
	ExitConfigError = 10
)

// CLIError represents a CLI-specific error with an exit code
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a new CLIError wrapping an existing error
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewCLIError creates a new CLIError with the given code and message
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
	}
}

// HandleError handles an error and returns the appropriate exit code.
// It also prints the error message to the command's error output.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}

	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil {
			verboseFlag := cmd.Flag("verbose")
			if verboseFlag != nil && verboseFlag.Changed {
				cmd.PrintErrln("Cause:", cliErr.Cause)
			}
		}
		return cliErr.Code
	}

	var conductErr *types.ConductError
	if errors.As(err, &conductErr) {
		cmd.PrintErrln("Error:", conductErr.Error())
		return mapConductErrorToExitCode(conductErr)
	}

	cmd.PrintErrln("Error:", err)
	return ExitError
}

// mapConductErrorToExitCode maps ConductError codes to CLI exit codes
func mapConductErrorToExitCode(err *types.ConductError) int {
	switch err.Code {
	case types.RUN_ABORTED:
		return ExitRunAborted
	case types.GRAPH_EMPTY,
		types.GRAPH_DUPLICATE_TASK,
		types.GRAPH_UNKNOWN_DEPENDENCY,
		types.GRAPH_INVALID_TASK,
		types.GRAPH_PARSE_FAILED,
		types.CYCLE_DETECTED,
		types.TASK_NOT_FOUND:
		return ExitGraphError
	case types.CONFIG_LOAD_FAILED, types.CONFIG_VALIDATION_FAILED:
		return ExitConfigError
	default:
		return ExitError
	}
}

// IsVerbose checks if verbose mode is enabled via environment variable or
// flag. Used during panic recovery, before cobra has parsed anything.
func IsVerbose() bool {
	if os.Getenv("CONDUCT_VERBOSE") != "" {
		return true
	}
	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}
	return false
}
