package sqlite

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/models"
)

func TestStore_UpsertPipeline(t *testing.T) {
	t.Run("insert and fetch round-trip", func(t *testing.T) {
		store, ctx := setupTestStore(t)

		require.NoError(t, store.UpsertPipeline(ctx, models.Pipeline{
			ID:          "alpha",
			Name:        "Alpha",
			FullGraph:   map[string]any{"nodes": []any{map[string]any{"id": "a", "kind": "dataset"}}},
			Description: "first pipeline",
			Metadata:    map[string]any{"owner": "alice"},
		}))

		stored, err := store.GetPipeline(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, "alpha", stored.ID)
		assert.Equal(t, "Alpha", stored.Name)
		assert.Equal(t, "first pipeline", stored.Description)
		assert.Equal(t, map[string]any{"owner": "alice"}, stored.Metadata)
		assert.NotEmpty(t, stored.CreatedAt)
		assert.NotEmpty(t, stored.UpdatedAt)

		nodes, ok := stored.FullGraph["nodes"].([]any)
		require.True(t, ok)
		require.Len(t, nodes, 1)
		assert.Equal(t, map[string]any{"id": "a", "kind": "dataset"}, nodes[0])
	})

	t.Run("update replaces mutable fields and keeps created_at", func(t *testing.T) {
		store, ctx := setupTestStore(t)

		require.NoError(t, store.UpsertPipeline(ctx, models.Pipeline{
			ID: "alpha", Name: "Alpha", Description: "first",
		}))
		original, err := store.GetPipeline(ctx, "alpha")
		require.NoError(t, err)

		require.NoError(t, store.UpsertPipeline(ctx, models.Pipeline{
			ID:        "alpha",
			Name:      "Alpha v2",
			FullGraph: map[string]any{"nodes": []any{}},
			Metadata:  map[string]any{"revision": float64(2)},
		}))

		updated, err := store.GetPipeline(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, "Alpha v2", updated.Name)
		assert.Empty(t, updated.Description)
		assert.Equal(t, map[string]any{"revision": float64(2)}, updated.Metadata)
		assert.Equal(t, original.CreatedAt, updated.CreatedAt)
	})

	t.Run("nil graph is stored as an empty object", func(t *testing.T) {
		store, ctx := setupTestStore(t)

		require.NoError(t, store.UpsertPipeline(ctx, models.Pipeline{ID: "bare", Name: "Bare"}))
		stored, err := store.GetPipeline(ctx, "bare")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{}, stored.FullGraph)
	})

	t.Run("empty id returns error", func(t *testing.T) {
		store, ctx := setupTestStore(t)

		err := store.UpsertPipeline(ctx, models.Pipeline{Name: "anonymous"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pipeline id cannot be empty")
	})
}

func TestStore_GetPipeline_NotFound(t *testing.T) {
	store, ctx := setupTestStore(t)

	_, err := store.GetPipeline(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrPipelineNotFound)
}

func TestStore_ListPipelines(t *testing.T) {
	store, ctx := setupTestStore(t)

	list, err := store.ListPipelines(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, id := range []string{"gamma", "alpha", "beta"} {
		require.NoError(t, store.UpsertPipeline(ctx, models.Pipeline{ID: id, Name: id}))
	}

	list, err = store.ListPipelines(ctx)
	require.NoError(t, err)

	ids := lo.Map(list, func(p models.Pipeline, _ int) string { return p.ID })
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, ids)
}
