package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(skill string, committed bool, startedAt time.Time) Run {
	return Run{
		ID:                uuid.New().String(),
		Skill:             skill,
		OldHash:           "old",
		NewHash:           "new",
		Created:           1,
		Updated:           2,
		Deleted:           0,
		Conflicts:         0,
		MetadataCommitted: committed,
		StartedAt:         startedAt,
		DurationMS:        42,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	store := openTestStore(t)

	runs, err := store.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening runs migrations again without error.
	store, err = Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRecordAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRun(ctx, testRun("alpha", true, base), map[string]string{"a.txt": "d1"}))
	require.NoError(t, store.RecordRun(ctx, testRun("alpha", true, base.Add(time.Hour)), map[string]string{"a.txt": "d2"}))
	require.NoError(t, store.RecordRun(ctx, testRun("beta", false, base.Add(30*time.Minute)), nil))

	t.Run("all skills newest first", func(t *testing.T) {
		runs, err := store.ListRuns(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "alpha", runs[0].Skill)
		assert.Equal(t, "beta", runs[1].Skill)
		assert.Equal(t, "alpha", runs[2].Skill)
	})

	t.Run("filtered by skill", func(t *testing.T) {
		runs, err := store.ListRuns(ctx, "beta", 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "beta", runs[0].Skill)
		assert.False(t, runs[0].MetadataCommitted)
	})

	t.Run("limit", func(t *testing.T) {
		runs, err := store.ListRuns(ctx, "", 2)
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})
}

func TestLatestManifest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRun(ctx, testRun("alpha", true, base), map[string]string{"a.txt": "d1"}))
	require.NoError(t, store.RecordRun(ctx, testRun("alpha", true, base.Add(time.Hour)), map[string]string{"a.txt": "d2", "b.txt": "d3"}))
	// A conflicted run never supplies the manifest.
	require.NoError(t, store.RecordRun(ctx, testRun("alpha", false, base.Add(2*time.Hour)), map[string]string{"poison.txt": "x"}))

	manifest, err := store.LatestManifest(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": "d2", "b.txt": "d3"}, manifest)
}

func TestLatestManifestNeverSynced(t *testing.T) {
	store := openTestStore(t)

	manifest, err := store.LatestManifest(context.Background(), "never-synced")
	require.NoError(t, err)
	assert.Nil(t, manifest)
}

func TestRecordRunNilManifest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := testRun("gamma", true, time.Now().UTC())
	require.NoError(t, store.RecordRun(ctx, run, nil))

	manifest, err := store.LatestManifest(ctx, "gamma")
	require.NoError(t, err)
	assert.Empty(t, manifest)
}
