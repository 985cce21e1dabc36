package ledger

import (
	"context"
	"sync"
)

// Memory keeps events in a slice. It exists for tests and for callers
// that want to inspect a run's events without touching the filesystem.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{}
}

// Record implements Ledger.
func (m *Memory) Record(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Entries returns a copy of every recorded event, oldest first.
func (m *Memory) Entries() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Tail returns the last n events, oldest first.
func (m *Memory) Tail(n int) []Event {
	events := m.Entries()
	if n <= 0 || len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

// Clear discards all recorded events.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
