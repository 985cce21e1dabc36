package task

import (
	"testing"

	"github.com/conduct-dev/conduct/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraph(t *testing.T) {
	g, err := NewGraph([]Task{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"a"}, Priority: 5},
		{ID: "c", Dependencies: []string{"a", "b"}, MaxAttempts: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())

	b, err := g.Get("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, b.Dependencies)
	assert.Equal(t, 5, b.Priority)
	assert.Equal(t, DefaultMaxAttempts, b.MaxAttempts, "unset budget gets the default")

	c, err := g.Get("c")
	require.NoError(t, err)
	assert.Equal(t, 1, c.MaxAttempts, "declared budget is preserved")
}

func TestNewGraphWithDefaultMaxAttempts(t *testing.T) {
	g, err := NewGraph([]Task{
		{ID: "a"},
		{ID: "b", MaxAttempts: 5},
	}, WithDefaultMaxAttempts(2))
	require.NoError(t, err)

	a, err := g.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 2, a.MaxAttempts, "unset budget gets the configured default")

	b, err := g.Get("b")
	require.NoError(t, err)
	assert.Equal(t, 5, b.MaxAttempts, "declared budget wins over the configured default")

	// A non-positive override keeps the package default.
	g, err = NewGraph([]Task{{ID: "a"}}, WithDefaultMaxAttempts(0))
	require.NoError(t, err)
	a, err = g.Get("a")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAttempts, a.MaxAttempts)
}

func TestNewGraphConstructionErrors(t *testing.T) {
	tests := []struct {
		name     string
		tasks    []Task
		wantCode types.ErrorCode
	}{
		{
			name:     "empty graph",
			tasks:    nil,
			wantCode: types.GRAPH_EMPTY,
		},
		{
			name:     "missing id",
			tasks:    []Task{{ID: ""}},
			wantCode: types.GRAPH_INVALID_TASK,
		},
		{
			name:     "duplicate id",
			tasks:    []Task{{ID: "a"}, {ID: "a"}},
			wantCode: types.GRAPH_DUPLICATE_TASK,
		},
		{
			name:     "unknown dependency",
			tasks:    []Task{{ID: "a", Dependencies: []string{"ghost"}}},
			wantCode: types.GRAPH_UNKNOWN_DEPENDENCY,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.tasks)
			require.Error(t, err)
			assert.True(t, types.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestNewGraphForwardReference(t *testing.T) {
	// Declaration order must not matter: b may depend on a task declared
	// after it.
	_, err := NewGraph([]Task{
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "a"},
	})
	assert.NoError(t, err)
}

func TestGraphImmutability(t *testing.T) {
	deps := []string{"a"}
	meta := map[string]any{"k": "v"}
	g, err := NewGraph([]Task{
		{ID: "a"},
		{ID: "b", Dependencies: deps, Metadata: meta},
	})
	require.NoError(t, err)

	// Mutating the caller's slices after construction must not leak into
	// the graph.
	deps[0] = "poisoned"
	meta["k"] = "poisoned"

	b, err := g.Get("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, b.Dependencies)
	assert.Equal(t, "v", b.Metadata["k"])
}

func TestGraphGetUnknownTask(t *testing.T) {
	g, err := NewGraph([]Task{{ID: "a"}})
	require.NoError(t, err)

	_, err = g.Get("missing")
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.TASK_NOT_FOUND))

	_, err = g.Dependencies("missing")
	assert.True(t, types.HasCode(err, types.TASK_NOT_FOUND))
}

func TestGraphTaskIDsSorted(t *testing.T) {
	g, err := NewGraph([]Task{{ID: "zeta"}, {ID: "alpha"}, {ID: "mid"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, g.TaskIDs())
}

func TestGraphDependents(t *testing.T) {
	g, err := NewGraph([]Task{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"a"}},
		{ID: "d", Dependencies: []string{"b", "c"}},
	})
	require.NoError(t, err)

	dependents := g.Dependents()
	assert.Equal(t, []string{"b", "c"}, dependents["a"])
	assert.Equal(t, []string{"d"}, dependents["b"])
	assert.Equal(t, []string{"d"}, dependents["c"])
	assert.Empty(t, dependents["d"])
}
