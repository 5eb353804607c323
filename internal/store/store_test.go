package store

import (
	"context"
	"testing"
	"time"

	"github.com/inovacc/gitsafe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) History {
	t.Helper()

	h, err := Open(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() { _ = h.Close() })

	return h
}

func TestRecordAndListRuns(t *testing.T) {
	ctx := context.Background()
	h := openTest(t)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	runs := []*model.SyncRun{
		{RepositoryID: "a", Trigger: model.TriggerSchedule, StartedAt: base, Duration: 1500 * time.Millisecond, Outcome: model.OutcomeSynced, CommitHash: "abc", Size: 42},
		{RepositoryID: "a", Trigger: model.TriggerManual, StartedAt: base.Add(time.Hour), Outcome: model.OutcomeFailed, Error: "fetch failed"},
		{RepositoryID: "b", Trigger: model.TriggerSchedule, StartedAt: base.Add(30 * time.Minute), Outcome: model.OutcomeSkipped, CommitHash: "def"},
	}

	for _, run := range runs {
		require.NoError(t, h.RecordRun(ctx, run))
		assert.NotEmpty(t, run.ID)
	}

	got, err := h.ListRuns(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.OutcomeFailed, got[0].Outcome)
	assert.Equal(t, "fetch failed", got[0].Error)
	assert.Equal(t, model.TriggerManual, got[0].Trigger)

	assert.Equal(t, runs[0].ID, got[1].ID)
	assert.Equal(t, "abc", got[1].CommitHash)
	assert.Equal(t, int64(42), got[1].Size)
	assert.Equal(t, 1500*time.Millisecond, got[1].Duration)
	assert.True(t, base.Equal(got[1].StartedAt))

	all, err := h.ListRuns(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].RepositoryID)
	assert.Equal(t, "b", all[1].RepositoryID)
}

func TestListRunsUnknownRepository(t *testing.T) {
	got, err := openTest(t).ListRuns(context.Background(), "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteRuns(t *testing.T) {
	ctx := context.Background()
	h := openTest(t)

	require.NoError(t, h.RecordRun(ctx, &model.SyncRun{RepositoryID: "a", StartedAt: time.Now(), Outcome: model.OutcomeSynced}))
	require.NoError(t, h.RecordRun(ctx, &model.SyncRun{RepositoryID: "b", StartedAt: time.Now(), Outcome: model.OutcomeSynced}))

	require.NoError(t, h.DeleteRuns(ctx, "a"))
	require.NoError(t, h.DeleteRuns(ctx, "never-recorded"))

	a, err := h.ListRuns(ctx, "a", 10)
	require.NoError(t, err)
	assert.Empty(t, a)

	b, err := h.ListRuns(ctx, "b", 10)
	require.NoError(t, err)
	assert.Len(t, b, 1)
}

func TestRecordRunRequiresRepository(t *testing.T) {
	err := openTest(t).RecordRun(context.Background(), &model.SyncRun{StartedAt: time.Now()})
	assert.ErrorIs(t, err, model.ErrInvalidRun)
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	h, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, h.RecordRun(ctx, &model.SyncRun{RepositoryID: "a", StartedAt: time.Now(), Outcome: model.OutcomeSynced}))
	require.NoError(t, h.Close())

	h, err = Open(dir)
	require.NoError(t, err)

	defer func() { _ = h.Close() }()

	got, err := h.ListRuns(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
