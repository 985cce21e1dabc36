package scheduler

import (
	"encoding/json"
	"testing"

	"github.com/conduct-dev/conduct/internal/task"
	"github.com/conduct-dev/conduct/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGraph(t *testing.T, tasks []task.Task) *task.Graph {
	t.Helper()
	g, err := task.NewGraph(tasks)
	require.NoError(t, err)
	return g
}

func waveIDs(p *Plan) [][]string {
	waves := make([][]string, 0, len(p.Waves))
	for _, w := range p.Waves {
		waves = append(waves, w.TaskIDs)
	}
	return waves
}

func TestPlanSingleTask(t *testing.T) {
	g := mustGraph(t, []task.Task{{ID: "only"}})

	plan, err := New().Plan(g)
	require.NoError(t, err)

	assert.Equal(t, 1, plan.TotalTasks)
	assert.Equal(t, 1, plan.TotalWaves)
	assert.Equal(t, 1, plan.MaxParallelism)
	assert.Equal(t, [][]string{{"only"}}, waveIDs(plan))
	assert.False(t, plan.Waves[0].CanParallel)
}

func TestPlanNilGraph(t *testing.T) {
	plan, err := New().Plan(nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Waves)
	assert.Zero(t, plan.TotalTasks)
}

func TestPlanDiamond(t *testing.T) {
	// The end-to-end reference shape: A, then {B,C} by priority, then D.
	g := mustGraph(t, []task.Task{
		{ID: "A"},
		{ID: "B", Dependencies: []string{"A"}, Priority: 5},
		{ID: "C", Dependencies: []string{"A"}, Priority: 2},
		{ID: "D", Dependencies: []string{"B", "C"}},
	})

	plan, err := New().Plan(g)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"A"}, {"B", "C"}, {"D"}}, waveIDs(plan))
	assert.Equal(t, 3, plan.TotalWaves)
	assert.Equal(t, 2, plan.MaxParallelism)
	assert.True(t, plan.Waves[1].CanParallel)
	assert.Equal(t, 2, plan.Waves[1].Index)
}

func TestPlanTieBreakOrder(t *testing.T) {
	// Priority descending, id ascending for equal priority.
	g := mustGraph(t, []task.Task{
		{ID: "A", Priority: 1},
		{ID: "B", Priority: 5},
		{ID: "C", Priority: 2},
	})

	plan, err := New().Plan(g)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"B", "C", "A"}}, waveIDs(plan))
}

func TestPlanEqualPriorityFallsBackToID(t *testing.T) {
	g := mustGraph(t, []task.Task{
		{ID: "zeta", Priority: 3},
		{ID: "alpha", Priority: 3},
		{ID: "mid", Priority: 3},
	})

	plan, err := New().Plan(g)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"alpha", "mid", "zeta"}}, waveIDs(plan))
}

func TestPlanDependencyBeforeDependent(t *testing.T) {
	g := mustGraph(t, []task.Task{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"b"}},
		{ID: "d", Dependencies: []string{"a", "c"}},
	})

	plan, err := New().Plan(g)
	require.NoError(t, err)

	waveOf := make(map[string]int)
	for _, w := range plan.Waves {
		for _, id := range w.TaskIDs {
			waveOf[id] = w.Index
		}
	}

	for _, id := range g.TaskIDs() {
		deps, err := g.Dependencies(id)
		require.NoError(t, err)
		for _, dep := range deps {
			assert.Less(t, waveOf[dep], waveOf[id],
				"dependency %s must land in a strictly earlier wave than %s", dep, id)
		}
	}
}

func TestPlanDeterminism(t *testing.T) {
	// The property the orchestrator's reproducibility rests on: identical
	// graphs give byte-identical plans on every call, regardless of Go's
	// randomized map iteration.
	tasks := []task.Task{
		{ID: "ingest"},
		{ID: "normalize", Dependencies: []string{"ingest"}},
		{ID: "index", Dependencies: []string{"normalize"}, Priority: 3},
		{ID: "stats", Dependencies: []string{"normalize"}, Priority: 3},
		{ID: "dedupe", Dependencies: []string{"normalize"}, Priority: 7},
		{ID: "report", Dependencies: []string{"index", "stats", "dedupe"}},
		{ID: "archive", Dependencies: []string{"report"}},
		{ID: "audit", Dependencies: []string{"report"}},
	}

	s := New()
	reference, err := s.Plan(mustGraph(t, tasks))
	require.NoError(t, err)
	referenceJSON, err := json.Marshal(reference)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		plan, err := s.Plan(mustGraph(t, tasks))
		require.NoError(t, err)

		planJSON, err := json.Marshal(plan)
		require.NoError(t, err)
		assert.Equal(t, string(referenceJSON), string(planJSON),
			"plan differed on iteration %d", i)
	}
}

func TestPlanCycleDetected(t *testing.T) {
	g := mustGraph(t, []task.Task{
		{ID: "a", Dependencies: []string{"c"}},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"b"}},
	})

	plan, err := New().Plan(g)
	require.Error(t, err)
	assert.Nil(t, plan, "no partial plan may escape on cycle")
	assert.True(t, types.HasCode(err, types.CYCLE_DETECTED))
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
	assert.Contains(t, err.Error(), "c")
}

func TestPlanSelfDependency(t *testing.T) {
	// A self-dependency is a 1-cycle; the cycle detector reports it
	// without any special casing.
	g := mustGraph(t, []task.Task{{ID: "narcissist", Dependencies: []string{"narcissist"}}})

	_, err := New().Plan(g)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CYCLE_DETECTED))
	assert.Contains(t, err.Error(), "narcissist")
}

func TestPlanPartialCycle(t *testing.T) {
	// Tasks upstream of the cycle still schedule; the stuck remainder is
	// reported.
	g := mustGraph(t, []task.Task{
		{ID: "ok"},
		{ID: "x", Dependencies: []string{"ok", "y"}},
		{ID: "y", Dependencies: []string{"x"}},
	})

	_, err := New().Plan(g)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CYCLE_DETECTED))
	assert.Contains(t, err.Error(), "x")
	assert.Contains(t, err.Error(), "y")
	assert.NotContains(t, err.Error(), `"ok"`)
}

func TestPlanFlatten(t *testing.T) {
	g := mustGraph(t, []task.Task{
		{ID: "A"},
		{ID: "B", Dependencies: []string{"A"}, Priority: 5},
		{ID: "C", Dependencies: []string{"A"}, Priority: 2},
		{ID: "D", Dependencies: []string{"B", "C"}},
	})

	plan, err := New().Plan(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, plan.Flatten())
}

func TestPlanWideGraphMaxParallelism(t *testing.T) {
	tasks := []task.Task{{ID: "root"}}
	for _, id := range []string{"w1", "w2", "w3", "w4", "w5"} {
		tasks = append(tasks, task.Task{ID: id, Dependencies: []string{"root"}})
	}

	plan, err := New().Plan(mustGraph(t, tasks))
	require.NoError(t, err)
	assert.Equal(t, 5, plan.MaxParallelism)
	assert.Equal(t, 2, plan.TotalWaves)
}
