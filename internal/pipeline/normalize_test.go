package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("FlatGraph", func(t *testing.T) {
		got, err := Normalize(map[string]any{
			"nodes": []any{
				map[string]any{"id": "a", "kind": "dataset"},
				map[string]any{"id": "b", "kind": "segmentation"},
			},
			"edges": []any{
				map[string]any{"source": "a", "target": "b"},
			},
		})
		require.NoError(t, err)
		require.Len(t, got.Nodes, 2)
		assert.Equal(t, CanonicalNode{ID: "a", Kind: "dataset", Params: map[string]any{}}, got.Nodes[0])
		assert.Equal(t, CanonicalNode{ID: "b", Kind: "segmentation", Params: map[string]any{}}, got.Nodes[1])
		assert.Equal(t, []CanonicalEdge{{Source: "a", Target: "b"}}, got.Edges)
	})
	t.Run("PipelineWrapper", func(t *testing.T) {
		got, err := Normalize(map[string]any{
			"pipeline": map[string]any{
				"nodes": []any{map[string]any{"id": "a", "kind": "dataset"}},
			},
		})
		require.NoError(t, err)
		require.Len(t, got.Nodes, 1)
		assert.Equal(t, "a", got.Nodes[0].ID)
	})
	t.Run("NumericIDsStringified", func(t *testing.T) {
		got, err := Normalize(map[string]any{
			"nodes": []any{
				map[string]any{"id": float64(1), "kind": "dataset"},
				map[string]any{"id": float64(2), "kind": "segmentation"},
			},
			"edges": []any{
				map[string]any{"source": float64(1), "target": float64(2)},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "1", got.Nodes[0].ID)
		assert.Equal(t, []CanonicalEdge{{Source: "1", Target: "2"}}, got.Edges)
	})
	t.Run("KindProbeOrder", func(t *testing.T) {
		got, err := Normalize(map[string]any{
			"nodes": []any{
				map[string]any{"id": "a", "data": map[string]any{"kind": "filter"}, "kind": "ignored"},
				map[string]any{"id": "b", "data": map[string]any{"type": "concat"}},
				map[string]any{"id": "c", "data": map[string]any{"kind": ""}, "kind": "text"},
				map[string]any{"id": "d", "type": "figure"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "filter", got.Nodes[0].Kind)
		assert.Equal(t, "concat", got.Nodes[1].Kind)
		assert.Equal(t, "text", got.Nodes[2].Kind)
		assert.Equal(t, "figure", got.Nodes[3].Kind)
	})
	t.Run("ParamsPrecedence", func(t *testing.T) {
		got, err := Normalize(map[string]any{
			"nodes": []any{
				map[string]any{
					"id":     "a",
					"kind":   "dataset",
					"data":   map[string]any{"params": map[string]any{"seed": 1.0}},
					"params": map[string]any{"seed": 2.0},
				},
				map[string]any{"id": "b", "kind": "dataset", "params": map[string]any{"seed": 3.0}},
				map[string]any{"id": "c", "kind": "dataset", "data": map[string]any{"params": nil}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"seed": 1.0}, got.Nodes[0].Params)
		assert.Equal(t, map[string]any{"seed": 3.0}, got.Nodes[1].Params)
		assert.Equal(t, map[string]any{}, got.Nodes[2].Params)
	})
	t.Run("TrackOutputFlag", func(t *testing.T) {
		got, err := Normalize(map[string]any{
			"nodes": []any{
				map[string]any{"id": "a", "kind": "dataset", "data": map[string]any{"trackOutput": true}},
				map[string]any{"id": "b", "kind": "dataset", "trackOutput": true},
				map[string]any{"id": "c", "kind": "dataset", "trackOutput": "yes"},
				map[string]any{"id": "d", "kind": "dataset"},
			},
		})
		require.NoError(t, err)
		assert.True(t, got.Nodes[0].TrackOutput)
		assert.True(t, got.Nodes[1].TrackOutput)
		assert.False(t, got.Nodes[2].TrackOutput)
		assert.False(t, got.Nodes[3].TrackOutput)
	})

	violations := []struct {
		name    string
		payload map[string]any
		wantErr string
	}{
		{
			name:    "WrapperNotMapping",
			payload: map[string]any{"pipeline": "nope"},
			wantErr: "pipeline wrapper must be a mapping",
		},
		{
			name:    "NodesNotList",
			payload: map[string]any{"nodes": "nope"},
			wantErr: "nodes must be a list",
		},
		{
			name:    "EdgesNotList",
			payload: map[string]any{"edges": 5.0},
			wantErr: "edges must be a list",
		},
		{
			name:    "NodeNotMapping",
			payload: map[string]any{"nodes": []any{"nope"}},
			wantErr: "each node must be a mapping",
		},
		{
			name:    "MissingID",
			payload: map[string]any{"nodes": []any{map[string]any{"kind": "dataset"}}},
			wantErr: "Each node must have a non-empty string 'id'.",
		},
		{
			name:    "NoneID",
			payload: map[string]any{"nodes": []any{map[string]any{"id": "None", "kind": "dataset"}}},
			wantErr: "Each node must have a non-empty string 'id'.",
		},
		{
			name: "DuplicateID",
			payload: map[string]any{"nodes": []any{
				map[string]any{"id": "a", "kind": "dataset"},
				map[string]any{"id": "a", "kind": "dataset"},
			}},
			wantErr: "Duplicate node id 'a'.",
		},
		{
			name: "ParamsNotDict",
			payload: map[string]any{"nodes": []any{
				map[string]any{"id": "a", "kind": "dataset", "params": []any{}},
			}},
			wantErr: "Node 'a' params must be a dict.",
		},
		{
			name:    "EdgeNotMapping",
			payload: map[string]any{"edges": []any{5.0}},
			wantErr: "each edge must be a mapping",
		},
		{
			name:    "EdgeMissingTarget",
			payload: map[string]any{"edges": []any{map[string]any{"source": "a"}}},
			wantErr: "Each edge must include 'source' and 'target'.",
		},
	}
	for _, tc := range violations {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.payload)
			require.Error(t, err)
			assert.EqualError(t, err, tc.wantErr)
		})
	}
}
