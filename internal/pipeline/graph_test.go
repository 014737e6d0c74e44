package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canonNode(id, kind string) CanonicalNode {
	return CanonicalNode{ID: id, Kind: kind, Params: map[string]any{}}
}

func TestBuildValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		graph   CanonicalGraph
		wantErr string
	}{
		{
			name: "DuplicateIDs",
			graph: CanonicalGraph{
				Nodes: []CanonicalNode{canonNode("a", "dataset"), canonNode("a", "dataset")},
			},
			wantErr: "Duplicate node ids in simplified graph.",
		},
		{
			name: "MissingKind",
			graph: CanonicalGraph{
				Nodes: []CanonicalNode{canonNode("a", "")},
			},
			wantErr: "Node 'a' is missing 'kind'.",
		},
		{
			name: "UnknownKind",
			graph: CanonicalGraph{
				Nodes: []CanonicalNode{canonNode("a", "warp")},
			},
			wantErr: "Node 'a' has unknown kind 'warp'.",
		},
		{
			name: "DanglingEdgeTarget",
			graph: CanonicalGraph{
				Nodes: []CanonicalNode{canonNode("a", "dataset")},
				Edges: []CanonicalEdge{{Source: "a", Target: "b"}},
			},
			wantErr: "Edge refers to missing node: a -> b",
		},
		{
			name: "DanglingEdgeSource",
			graph: CanonicalGraph{
				Nodes: []CanonicalNode{canonNode("b", "dataset")},
				Edges: []CanonicalEdge{{Source: "a", Target: "b"}},
			},
			wantErr: "Edge refers to missing node: a -> b",
		},
		{
			name: "TwoNodeCycle",
			graph: CanonicalGraph{
				Nodes: []CanonicalNode{canonNode("a", "identity"), canonNode("b", "identity")},
				Edges: []CanonicalEdge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
			},
			wantErr: "Pipeline must be a DAG. Found cycle: a -> b -> a",
		},
		{
			name: "ThreeNodeCycle",
			graph: CanonicalGraph{
				Nodes: []CanonicalNode{
					canonNode("a", "identity"),
					canonNode("b", "identity"),
					canonNode("c", "identity"),
				},
				Edges: []CanonicalEdge{
					{Source: "a", Target: "b"},
					{Source: "b", Target: "c"},
					{Source: "c", Target: "a"},
				},
			},
			wantErr: "Pipeline must be a DAG. Found cycle: a -> b -> c -> a",
		},
		{
			name: "TooFewInputs",
			graph: CanonicalGraph{
				Nodes: []CanonicalNode{canonNode("a", "dataset"), canonNode("c", "concat")},
				Edges: []CanonicalEdge{{Source: "a", Target: "c"}},
			},
			wantErr: "Node 'c' (kind='concat') expects >= 2 input(s); got 1.",
		},
		{
			name: "TooManyInputs",
			graph: CanonicalGraph{
				Nodes: []CanonicalNode{canonNode("a", "dataset"), canonNode("b", "dataset")},
				Edges: []CanonicalEdge{{Source: "a", Target: "b"}},
			},
			wantErr: "Node 'b' (kind='dataset') expects <= 0 input(s); got 1.",
		},
		{
			name:    "EmptyGraph",
			graph:   CanonicalGraph{},
			wantErr: "Graph is empty.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := build(tc.graph, DefaultRegistry())
			require.Error(t, err)
			assert.EqualError(t, err, tc.wantErr)
		})
	}
}

// Graphs carrying several problems at once must report the earliest check in
// the sequence.
func TestBuildValidationPrecedence(t *testing.T) {
	t.Parallel()

	t.Run("UnknownKindBeforeDanglingEdge", func(t *testing.T) {
		_, err := build(CanonicalGraph{
			Nodes: []CanonicalNode{canonNode("a", "warp")},
			Edges: []CanonicalEdge{{Source: "a", Target: "missing"}},
		}, DefaultRegistry())
		assert.EqualError(t, err, "Node 'a' has unknown kind 'warp'.")
	})
	t.Run("CycleBeforeArity", func(t *testing.T) {
		// b also violates dataset's zero-input arity; the cycle wins.
		_, err := build(CanonicalGraph{
			Nodes: []CanonicalNode{canonNode("a", "identity"), canonNode("b", "dataset")},
			Edges: []CanonicalEdge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
		}, DefaultRegistry())
		assert.EqualError(t, err, "Pipeline must be a DAG. Found cycle: a -> b -> a")
	})
}

func diamondGraph() CanonicalGraph {
	return CanonicalGraph{
		Nodes: []CanonicalNode{
			canonNode("a", "dataset"),
			canonNode("b", "segmentation"),
			canonNode("c", "filter"),
			canonNode("d", "concat"),
		},
		Edges: []CanonicalEdge{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "c"},
			{Source: "b", Target: "d"},
			{Source: "c", Target: "d"},
		},
	}
}

func TestGraphTopology(t *testing.T) {
	t.Parallel()

	g, err := build(diamondGraph(), DefaultRegistry())
	require.NoError(t, err)

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.NodeIDs())
	assert.Equal(t, []string{"a"}, g.Sources())
	assert.Equal(t, []string{"d"}, g.Sinks())
	assert.Equal(t, []string{"b", "c"}, g.Successors("a"))
	assert.Equal(t, []string{"b", "c"}, g.Predecessors("d"))
	assert.Empty(t, g.Predecessors("a"))
	assert.Empty(t, g.Successors("d"))

	node := g.Node("b")
	require.NotNil(t, node)
	assert.Equal(t, "segmentation", node.Kind.Name)
}

func TestGraphDeduplicatesParallelEdges(t *testing.T) {
	t.Parallel()

	g, err := build(CanonicalGraph{
		Nodes: []CanonicalNode{canonNode("a", "dataset"), canonNode("b", "segmentation")},
		Edges: []CanonicalEdge{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "b"},
		},
	}, DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.Predecessors("b"))
	assert.Equal(t, []string{"b"}, g.Successors("a"))
}

func TestPredecessorOrderFollowsEdges(t *testing.T) {
	t.Parallel()

	build2 := func(first, second string) []string {
		g, err := build(CanonicalGraph{
			Nodes: []CanonicalNode{
				canonNode("x", "dataset"),
				canonNode("y", "dataset"),
				canonNode("c", "concat"),
			},
			Edges: []CanonicalEdge{
				{Source: first, Target: "c"},
				{Source: second, Target: "c"},
			},
		}, DefaultRegistry())
		require.NoError(t, err)
		return g.Predecessors("c")
	}

	assert.Equal(t, []string{"x", "y"}, build2("x", "y"))
	assert.Equal(t, []string{"y", "x"}, build2("y", "x"))
}

func TestKahnOrder(t *testing.T) {
	t.Parallel()

	g, err := build(diamondGraph(), DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.kahnOrder())
}

func TestDFSOrder(t *testing.T) {
	t.Parallel()

	g, err := build(diamondGraph(), DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b", "d"}, g.dfsOrder())
}

func TestOrdersAreTopological(t *testing.T) {
	t.Parallel()

	g, err := build(diamondGraph(), DefaultRegistry())
	require.NoError(t, err)

	for name, order := range map[string][]string{
		"kahn": g.kahnOrder(),
		"dfs":  g.dfsOrder(),
	} {
		require.Len(t, order, g.Len(), name)
		position := map[string]int{}
		for i, id := range order {
			position[id] = i
		}
		for _, id := range g.NodeIDs() {
			for _, succ := range g.Successors(id) {
				assert.Less(t, position[id], position[succ],
					"%s: %s must run before %s", name, id, succ)
			}
		}
	}
}
