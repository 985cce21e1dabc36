package main

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/conduct-dev/conduct/internal/statemachine"
)

// CommandExecutor runs each task's "command" metadata through the shell.
// A task without a command succeeds immediately; such tasks exist purely
// as ordering points in the graph.
type CommandExecutor struct {
	// Shell is the interpreter used to run commands, "sh" by default.
	Shell string

	// Timeout bounds a single attempt. Zero means no bound beyond the
	// run context.
	Timeout time.Duration
}

// NewCommandExecutor creates a CommandExecutor with the given per-attempt
// timeout.
func NewCommandExecutor(timeout time.Duration) *CommandExecutor {
	return &CommandExecutor{Shell: "sh", Timeout: timeout}
}

// Execute implements orchestrator.Executor.
func (e *CommandExecutor) Execute(ctx context.Context, taskID string, execution *statemachine.TaskExecution) (any, error) {
	command, _ := execution.Metadata["command"].(string)
	if command == "" {
		return nil, nil
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("task %s command failed: %s", taskID, msg)
	}

	return strings.TrimSpace(stdout.String()), nil
}
