package task

import (
	"fmt"
	"sort"

	"github.com/conduct-dev/conduct/internal/types"
)

// Graph is an immutable, validated collection of tasks.
// Construction enforces referential integrity: every dependency id must
// name a task in the same graph, ids must be unique and non-empty, and
// the graph itself must be non-empty. Cycle detection is the scheduler's
// job; the graph only guarantees that references resolve.
type Graph struct {
	name        string
	description string
	tasks       map[string]Task
	order       []string
}

// GraphOption adjusts graph construction.
type GraphOption func(*graphOptions)

type graphOptions struct {
	defaultMaxAttempts int
}

// WithDefaultMaxAttempts sets the retry budget applied to tasks that do
// not declare their own max_attempts. Values <= 0 keep the package
// default.
func WithDefaultMaxAttempts(n int) GraphOption {
	return func(o *graphOptions) {
		if n > 0 {
			o.defaultMaxAttempts = n
		}
	}
}

// NewGraph validates the given tasks and builds a Graph from them.
// Tasks with MaxAttempts <= 0 receive the default budget, which is
// DefaultMaxAttempts unless WithDefaultMaxAttempts overrides it.
// Validation failures return ConductError values with graph
// construction codes.
func NewGraph(tasks []Task, opts ...GraphOption) (*Graph, error) {
	return newGraph("", "", tasks, opts...)
}

func newGraph(name, description string, tasks []Task, opts ...GraphOption) (*Graph, error) {
	options := graphOptions{defaultMaxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(&options)
	}

	if len(tasks) == 0 {
		return nil, types.NewError(types.GRAPH_EMPTY, "task graph must contain at least one task")
	}

	g := &Graph{
		name:        name,
		description: description,
		tasks:       make(map[string]Task, len(tasks)),
		order:       make([]string, 0, len(tasks)),
	}

	for _, t := range tasks {
		if t.ID == "" {
			return nil, types.NewError(types.GRAPH_INVALID_TASK, "task id is required")
		}
		if _, exists := g.tasks[t.ID]; exists {
			return nil, types.NewError(types.GRAPH_DUPLICATE_TASK,
				fmt.Sprintf("duplicate task id %q", t.ID))
		}

		owned := t.clone()
		if owned.MaxAttempts <= 0 {
			owned.MaxAttempts = options.defaultMaxAttempts
		}

		g.tasks[owned.ID] = owned
		g.order = append(g.order, owned.ID)
	}

	// Dependency references are checked after all ids are known so that
	// declaration order in the input never matters.
	for _, id := range g.order {
		for _, dep := range g.tasks[id].Dependencies {
			if _, exists := g.tasks[dep]; !exists {
				return nil, types.NewError(types.GRAPH_UNKNOWN_DEPENDENCY,
					fmt.Sprintf("dependency %q referenced by %q is undefined", dep, id))
			}
		}
	}

	return g, nil
}

// Name returns the graph's human-readable name, if one was declared.
func (g *Graph) Name() string {
	return g.name
}

// Description returns the graph's description, if one was declared.
func (g *Graph) Description() string {
	return g.description
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// Get returns the task with the given id.
func (g *Graph) Get(id string) (Task, error) {
	t, ok := g.tasks[id]
	if !ok {
		return Task{}, types.NewError(types.TASK_NOT_FOUND, fmt.Sprintf("unknown task %q", id))
	}
	return t, nil
}

// Contains reports whether the graph holds a task with the given id.
func (g *Graph) Contains(id string) bool {
	_, ok := g.tasks[id]
	return ok
}

// Dependencies returns the declared dependencies of the given task.
func (g *Graph) Dependencies(id string) ([]string, error) {
	t, err := g.Get(id)
	if err != nil {
		return nil, err
	}
	deps := make([]string, len(t.Dependencies))
	copy(deps, t.Dependencies)
	return deps, nil
}

// TaskIDs returns every task id sorted lexicographically.
// The sorted order makes the accessor safe to use anywhere determinism
// matters, independent of map iteration order.
func (g *Graph) TaskIDs() []string {
	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tasks returns every task, sorted by id.
func (g *Graph) Tasks() []Task {
	ids := g.TaskIDs()
	tasks := make([]Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, g.tasks[id])
	}
	return tasks
}

// Dependents builds the reverse adjacency of the graph: for each task id,
// the ids of tasks that declare it as a dependency, sorted for determinism.
func (g *Graph) Dependents() map[string][]string {
	dependents := make(map[string][]string, len(g.tasks))
	for id := range g.tasks {
		dependents[id] = nil
	}
	for _, id := range g.TaskIDs() {
		for _, dep := range g.tasks[id].Dependencies {
			dependents[dep] = append(dependents[dep], id)
		}
	}
	for dep := range dependents {
		sort.Strings(dependents[dep])
	}
	return dependents
}
