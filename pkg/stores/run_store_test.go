package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/port-labs/incremental-sync/pkg/engine"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	store, err := NewRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(id string, startedAt time.Time) engine.RunRecord {
	return engine.RunRecord{
		ID:          id,
		Mode:        engine.SyncModeIncremental,
		Status:      "completed",
		StartedAt:   startedAt,
		CompletedAt: startedAt.Add(2 * time.Minute),
		Summary: engine.RunSummary{
			Subscriptions: 3,
			Batches:       1,
			Pages:         4,
			Records:       120,
			Upserts:       110,
			Deletes:       10,
			Dropped:       2,
		},
	}
}

func TestNewRunStoreRequiresPath(t *testing.T) {
	_, err := NewRunStore("")
	require.Error(t, err)
}

func TestRecordAndGetRun(t *testing.T) {
	store := newTestStore(t)
	started := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordRun(context.Background(), sampleRun("run-1", started)))

	got, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, engine.SyncModeIncremental, got.Mode)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 120, got.Summary.Records)
	assert.Equal(t, 2, got.Summary.Dropped)
	assert.True(t, got.StartedAt.Equal(started))
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, store.RecordRun(context.Background(),
			sampleRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := store.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
}

func TestRecordRunFailedStatus(t *testing.T) {
	store := newTestStore(t)

	run := sampleRun("run-err", time.Now().UTC())
	run.Status = "failed"
	run.Error = "query pagination failed"
	require.NoError(t, store.RecordRun(context.Background(), run))

	got, err := store.GetRun(context.Background(), "run-err")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "query pagination failed", got.Error)
}
