package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"nodes": []any{
			map[string]any{"id": "src", "kind": "dataset"},
			map[string]any{"id": "out", "kind": "text"},
		},
		"edges": []any{
			map[string]any{"source": "src", "target": "out"},
		},
	}

	t.Run("SecondLoadHitsCache", func(t *testing.T) {
		cache := NewCache(4, time.Minute)
		calls := 0
		loader := func() (CanonicalGraph, error) {
			calls++
			return Normalize(payload)
		}

		first, err := cache.LoadLatest("demo", "rev-1", loader)
		require.NoError(t, err)
		second, err := cache.LoadLatest("demo", "rev-1", loader)
		require.NoError(t, err)

		assert.Equal(t, 1, calls)
		assert.Equal(t, first.Nodes, second.Nodes)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("RevisionChangeReloads", func(t *testing.T) {
		cache := NewCache(4, time.Minute)
		calls := 0
		loader := func() (CanonicalGraph, error) {
			calls++
			return Normalize(payload)
		}

		_, err := cache.LoadLatest("demo", "rev-1", loader)
		require.NoError(t, err)
		_, err = cache.LoadLatest("demo", "rev-2", loader)
		require.NoError(t, err)

		assert.Equal(t, 2, calls)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("InvalidateForcesReload", func(t *testing.T) {
		cache := NewCache(4, time.Minute)
		calls := 0
		loader := func() (CanonicalGraph, error) {
			calls++
			return Normalize(payload)
		}

		_, err := cache.LoadLatest("demo", "rev-1", loader)
		require.NoError(t, err)
		cache.Invalidate("demo")
		assert.Equal(t, 0, cache.Size())

		_, err = cache.LoadLatest("demo", "rev-1", loader)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("LoaderErrorNotCached", func(t *testing.T) {
		cache := NewCache(4, time.Minute)
		boom := errors.New("bad graph")

		_, err := cache.LoadLatest("demo", "rev-1", func() (CanonicalGraph, error) {
			return CanonicalGraph{}, boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, cache.Size())

		got, err := cache.LoadLatest("demo", "rev-1", func() (CanonicalGraph, error) {
			return Normalize(payload)
		})
		require.NoError(t, err)
		assert.Len(t, got.Nodes, 2)
	})
}
