// Package ledger records run and task lifecycle events to an append-only
// store. The primary implementation writes one JSON object per line so the
// file can be tailed, grepped and replayed without any reader-side state.
package ledger

import (
	"context"
	"time"
)

// Event is a single ledger entry. Fields that do not apply to an event
// type are omitted from the serialized form.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	State     string         `json:"state,omitempty"`
	Attempt   int            `json:"attempt,omitempty"`
	Error     string         `json:"error,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event of the given type stamped with the current
// UTC time.
func NewEvent(eventType string) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}

// Event types recorded by the orchestrator.
const (
	EventRunStarted      = "run_started"
	EventRunCompleted    = "run_completed"
	EventRunAborted      = "run_aborted"
	EventWaveStarted     = "wave_started"
	EventTaskStateChange = "task_state_change"
	EventTaskRetry       = "task_retry"
)

// Ledger is the sink for lifecycle events. Implementations must be safe
// for concurrent use; tasks in the same wave record concurrently.
type Ledger interface {
	Record(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

// Record implements Ledger.
func (Nop) Record(context.Context, Event) error { return nil }
