package digest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/thread-digest/digest/fileutils"
)

func TestNewStore_RequiresDir(t *testing.T) {
	t.Parallel()
	_, err := NewStore("")
	require.Error(t, err)
}

func TestStore_CheckpointRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, filepath.Join(t.TempDir(), "nested", "analysis"))
	require.Empty(t, store.LoadCheckpoint())

	recs := []AnalysisRecord{
		{ThreadID: 7, Headline: "a", Stats: NewClassificationStats(1, 3)},
		{ThreadID: 8, Headline: "b"},
		{ThreadID: 7, Headline: "duplicate"},
	}
	require.NoError(t, store.SaveCheckpoint(recs))

	b, err := os.ReadFile(store.CheckpointPath())
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Contains(t, raw, "articles")
	require.Contains(t, raw, "timestamp")
	require.JSONEq(t, `1709294400000`, string(raw["timestamp"]))

	got := store.LoadCheckpoint()
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Headline)
	require.Equal(t, int64(8), got[1].ThreadID)

	require.NoError(t, store.DeleteCheckpoint())
	require.False(t, fileutils.FileExists(store.CheckpointPath()))
	require.NoError(t, store.DeleteCheckpoint(), "deleting a missing checkpoint is not an error")
}

func TestStore_CorruptCheckpointIsEmpty(t *testing.T) {
	t.Parallel()

	for name, contents := range map[string]string{
		"garbage":   "not json at all",
		"truncated": `{"articles":[{"threadId":1`,
		"wrongType": `{"articles":"nope"}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := newTestStore(t, t.TempDir())
			require.NoError(t, os.WriteFile(store.CheckpointPath(), []byte(contents), 0o644))
			got := store.LoadCheckpoint()
			require.NotNil(t, got)
			require.Empty(t, got)
		})
	}
}

func TestStore_CommitOutputWritesWireFormat(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, t.TempDir())
	require.NoError(t, store.CommitOutput(BatchResult{Timestamp: 5}))

	b, err := os.ReadFile(store.OutputPath())
	require.NoError(t, err)
	require.JSONEq(t, `{
		"articles": [],
		"batchStats": {"threadCount":0,"totalAnalyzedPosts":0,"averageAntisemiticPercentage":0,"generatedAt":0},
		"timestamp": 5
	}`, string(b))
}

func TestStore_LoadOutputMissing(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, t.TempDir())
	_, err := store.LoadOutput()
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_AcquireLock(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, t.TempDir())
	release, err := store.AcquireLock("run-a")
	require.NoError(t, err)

	b, err := os.ReadFile(store.LockPath())
	require.NoError(t, err)
	var info LockInfo
	require.NoError(t, json.Unmarshal(b, &info))
	require.Equal(t, os.Getpid(), info.PID)
	require.Equal(t, "run-a", info.RunID)

	// Our own pid is never considered a live competitor.
	releaseB, err := store.AcquireLock("run-b")
	require.NoError(t, err)

	// run-a no longer owns the lock, so its release must leave it alone.
	release()
	require.True(t, fileutils.FileExists(store.LockPath()))

	releaseB()
	require.False(t, fileutils.FileExists(store.LockPath()))
}

func TestStore_AcquireLockUnreadableFile(t *testing.T) {
	t.Parallel()

	for name, contents := range map[string]string{
		"empty":   "",
		"garbage": "garbage",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := newTestStore(t, t.TempDir())
			require.NoError(t, os.WriteFile(store.LockPath(), []byte(contents), 0o644))

			// A fresh unreadable lock may be mid-write by another job.
			_, err := store.AcquireLock("run")
			require.ErrorIs(t, err, ErrJobLocked)
			require.True(t, fileutils.FileExists(store.LockPath()))

			old := time.Now().Add(-time.Minute)
			require.NoError(t, os.Chtimes(store.LockPath(), old, old))
			release, err := store.AcquireLock("run")
			require.NoError(t, err)
			release()
			require.False(t, fileutils.FileExists(store.LockPath()))
		})
	}
}
