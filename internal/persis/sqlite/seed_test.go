package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/models"
	"github.com/alger-org/alger/internal/pipeline"
)

func TestStore_Seed(t *testing.T) {
	store, ctx := setupTestStore(t)
	require.NoError(t, store.Seed(ctx))

	admin, err := store.EnsureUser(ctx, "admin", models.UserDefaults{})
	require.NoError(t, err)
	assert.Equal(t, "Administrator", admin.DisplayName)
	assert.Equal(t, "admin@example.com", admin.Email)
	assert.Equal(t, []string{"admin", "operator"}, admin.Roles)

	demo, err := store.GetPipeline(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "Demo Pipeline", demo.Name)
	assert.Equal(t, "Baseline imaging demo pipeline", demo.Description)
	assert.Equal(t, map[string]any{"seeded": true}, demo.Metadata)
}

func TestStore_Seed_DemoPipelineExecutes(t *testing.T) {
	store, ctx := setupTestStore(t)
	require.NoError(t, store.Seed(ctx))

	demo, err := store.GetPipeline(ctx, "demo")
	require.NoError(t, err)

	// The stored graph must run as-is, with both strategies agreeing on the
	// sink outputs.
	kahnResult, kahnSummary, err := pipeline.Run(demo.FullGraph)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fig", "log"}, kahnResult.Sinks)

	sinks, ok := kahnSummary["sinks"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, sinks)
	assert.Contains(t, sinks, "fig")
	assert.Contains(t, sinks, "log")

	_, dfsSummary, err := pipeline.Run(demo.FullGraph, pipeline.WithStrategy(pipeline.StrategyDFS))
	require.NoError(t, err)
	assert.Equal(t, kahnSummary["sinks"], dfsSummary["sinks"])
}

func TestStore_Seed_Idempotent(t *testing.T) {
	store, ctx := setupTestStore(t)
	require.NoError(t, store.Seed(ctx))

	admin, err := store.EnsureUser(ctx, "admin", models.UserDefaults{})
	require.NoError(t, err)

	require.NoError(t, store.Seed(ctx))

	again, err := store.EnsureUser(ctx, "admin", models.UserDefaults{})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	pipelines, err := store.ListPipelines(ctx)
	require.NoError(t, err)
	assert.Len(t, pipelines, 1)
}

func TestStore_Seed_KeepsOperatorEdits(t *testing.T) {
	store, ctx := setupTestStore(t)
	require.NoError(t, store.Seed(ctx))

	edited, err := store.GetPipeline(ctx, "demo")
	require.NoError(t, err)
	edited.Name = "Demo Pipeline (tuned)"
	require.NoError(t, store.UpsertPipeline(ctx, edited))

	require.NoError(t, store.Seed(ctx))

	demo, err := store.GetPipeline(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "Demo Pipeline (tuned)", demo.Name)
}
