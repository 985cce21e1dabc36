package task

// DefaultMaxAttempts is the retry budget applied when a task does not
// declare one of its own.
const DefaultMaxAttempts = 3

// Task is the immutable description of one unit of work in a graph.
// The core never interprets Metadata; it is carried through unchanged
// to the executor and to ledger records.
type Task struct {
	// ID uniquely identifies the task within its graph.
	ID string `json:"id" yaml:"id"`

	// Dependencies lists the ids of tasks that must complete successfully
	// before this task becomes eligible to run.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// Priority breaks ties between tasks that become eligible in the same
	// wave; higher values run first. Defaults to 0.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// MaxAttempts bounds how many times the task may enter the running
	// state. Defaults to DefaultMaxAttempts.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`

	// Metadata is opaque to the scheduling core.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// clone returns a deep-enough copy of the task for the graph to own.
// Dependency and metadata storage is copied so later mutation of the
// caller's slices cannot reach into the graph.
func (t Task) clone() Task {
	c := t
	if t.Dependencies != nil {
		c.Dependencies = make([]string, len(t.Dependencies))
		copy(c.Dependencies, t.Dependencies)
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}
