// Package scheduler computes deterministic execution plans for task graphs.
//
// The planner is a Kahn-style topological sort that groups mutually
// independent tasks into waves. Tasks inside a wave are ordered by
// descending priority with the task id as a stable tiebreak, so a given
// graph always produces a byte-identical plan regardless of map iteration
// order. Determinism is the planner's central contract: the orchestrator's
// retry and audit behavior is only reproducible if the plan is.
package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduct-dev/conduct/internal/task"
	"github.com/conduct-dev/conduct/internal/types"
)

// Wave is one parallel-eligible group of tasks. Every dependency of every
// task in a wave was satisfied by a strictly earlier wave.
type Wave struct {
	// Index is the 1-based position of the wave in the plan.
	Index int `json:"wave"`

	// TaskIDs lists the wave's tasks in tie-break order
	// (descending priority, then ascending id).
	TaskIDs []string `json:"tasks"`

	// CanParallel reports whether the wave holds more than one task.
	CanParallel bool `json:"can_parallel"`
}

// Plan is the full execution plan for a graph.
type Plan struct {
	TotalTasks     int    `json:"total_tasks"`
	TotalWaves     int    `json:"total_waves"`
	MaxParallelism int    `json:"max_parallelism"`
	Waves          []Wave `json:"execution_order"`
}

// Flatten linearises the plan: wave order first, tie-break order within
// each wave.
func (p *Plan) Flatten() []string {
	flat := make([]string, 0, p.TotalTasks)
	for _, wave := range p.Waves {
		flat = append(flat, wave.TaskIDs...)
	}
	return flat
}

// Scheduler computes wave plans. It holds no per-run state and may be
// shared across runs and goroutines.
type Scheduler struct{}

// New creates a Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Plan computes the execution plan for the given graph.
//
// Returns a CYCLE_DETECTED error when the topological sort cannot consume
// every task; the unconsumed remainder (which contains at least one cycle)
// is named in the error. A self-dependency is a 1-cycle and is reported the
// same way. A nil or empty graph yields an empty plan rather than an error.
func (s *Scheduler) Plan(g *task.Graph) (*Plan, error) {
	if g == nil || g.Len() == 0 {
		return &Plan{Waves: []Wave{}}, nil
	}

	inDegree := make(map[string]int, g.Len())
	for _, id := range g.TaskIDs() {
		deps, _ := g.Dependencies(id)
		inDegree[id] = len(deps)
	}

	dependents := g.Dependents()

	ready := make([]string, 0, g.Len())
	for _, id := range g.TaskIDs() {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	s.sortByTieBreak(g, ready)

	plan := &Plan{TotalTasks: g.Len()}
	visited := 0

	for len(ready) > 0 {
		wave := Wave{
			Index:       len(plan.Waves) + 1,
			TaskIDs:     ready,
			CanParallel: len(ready) > 1,
		}
		plan.Waves = append(plan.Waves, wave)
		visited += len(ready)
		if len(ready) > plan.MaxParallelism {
			plan.MaxParallelism = len(ready)
		}

		var next []string
		for _, id := range ready {
			for _, dependent := range dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}

		s.sortByTieBreak(g, next)
		ready = next
	}

	if visited != g.Len() {
		return nil, types.NewError(types.CYCLE_DETECTED,
			fmt.Sprintf("cycle detected in task graph; unschedulable tasks: %s",
				strings.Join(s.unvisited(g, inDegree), ", ")))
	}

	plan.TotalWaves = len(plan.Waves)
	return plan, nil
}

// sortByTieBreak orders ids by descending priority, ascending id.
func (s *Scheduler) sortByTieBreak(g *task.Graph, ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		ti, _ := g.Get(ids[i])
		tj, _ := g.Get(ids[j])
		if ti.Priority != tj.Priority {
			return ti.Priority > tj.Priority
		}
		return ids[i] < ids[j]
	})
}

// unvisited collects, in sorted order, the ids the sort never consumed.
// Each still has a positive in-degree; together they contain every cycle.
func (s *Scheduler) unvisited(g *task.Graph, inDegree map[string]int) []string {
	var stuck []string
	for _, id := range g.TaskIDs() {
		if inDegree[id] > 0 {
			stuck = append(stuck, id)
		}
	}
	return stuck
}
