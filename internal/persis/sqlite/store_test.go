package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/models"
)

func setupTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	store, err := New(ctx, filepath.Join(t.TempDir(), "alger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, ctx
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantErr     bool
		errContains string
	}{
		{
			name:        "empty path returns error",
			path:        "",
			wantErr:     true,
			errContains: "cannot be empty",
		},
		{
			name:    "valid path creates database",
			path:    filepath.Join(t.TempDir(), "alger.db"),
			wantErr: false,
		},
		{
			name:    "missing parent directories are created",
			path:    filepath.Join(t.TempDir(), "nested", "deep", "alger.db"),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(context.Background(), tt.path)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, store)
			assert.FileExists(t, tt.path)
			assert.NoError(t, store.Close())
		})
	}
}

func TestNew_DirectoryCreationFailure(t *testing.T) {
	tmpDir := t.TempDir()
	blockingFile := filepath.Join(tmpDir, "blocked")
	err := os.WriteFile(blockingFile, []byte("block"), 0600)
	require.NoError(t, err)

	store, err := New(context.Background(), filepath.Join(blockingFile, "subdir", "alger.db"))
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "failed to create directory")
}

func TestNew_ReopenExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alger.db")

	store1, err := New(ctx, path)
	require.NoError(t, err)
	created, err := store1.EnsureUser(ctx, "alice", models.UserDefaults{DisplayName: "Alice"})
	require.NoError(t, err)
	require.NoError(t, store1.Close())

	// Reopening must treat the already-applied migrations as a no-op and keep
	// the stored rows intact.
	store2, err := New(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store2.Close() })

	again, err := store2.EnsureUser(ctx, "alice", models.UserDefaults{})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Alice", again.DisplayName)
}
