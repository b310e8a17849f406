package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, Entry{
		ID:             "first",
		Path:           "a.py",
		Classification: "content",
		ChangedLines:   []int{2, 3},
		Added:          1,
		Ordered:        []string{"a.x", "a.y"},
		Duration:       15 * time.Millisecond,
		CreatedAt:      base,
	}))
	require.NoError(t, store.Record(ctx, Entry{
		ID:             "second",
		Path:           "b.py",
		Classification: "file-reorder",
		CreatedAt:      base.Add(time.Second),
	}))

	entries, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].ID)
	assert.Equal(t, []string{}, entries[0].Ordered)

	first := entries[1]
	assert.Equal(t, "a.py", first.Path)
	assert.Equal(t, []int{2, 3}, first.ChangedLines)
	assert.Equal(t, []string{"a.x", "a.y"}, first.Ordered)
	assert.Equal(t, 15*time.Millisecond, first.Duration)
	assert.True(t, base.Equal(first.CreatedAt))

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "second", limited[0].ID)
}

func TestRecordRejectsDuplicateID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, Entry{ID: "dup", Path: "a.py", Classification: "content"}))
	assert.Error(t, store.Record(ctx, Entry{ID: "dup", Path: "a.py", Classification: "content"}))
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), Entry{ID: "kept", Path: "a.py", Classification: "content"}))
	require.NoError(t, store.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	entries, err := reopened.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].ID)
}
