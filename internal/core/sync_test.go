package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/inovacc/gitsafe/internal/model"
	"github.com/inovacc/gitsafe/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRepos(repos ...model.Repository) func(cfg *model.Config) {
	return func(cfg *model.Config) {
		cfg.Repositories = append(cfg.Repositories, repos...)
	}
}

func TestSyncRepositoryExhaustsAttempts(t *testing.T) {
	f := newFixture(t, withRepos(model.Repository{
		ID:           "repo1",
		URL:          "https://github.com/example/repo1",
		CredentialID: model.Ptr("cred"),
		Enabled:      true,
	}))
	f.syncer.script("repo1", failing("boom 1"), failing("boom 2"), failing("boom 3"))

	ctx := context.Background()

	_, err := f.manager.SyncRepository(ctx, "repo1")
	require.EqualError(t, err, "boom 1")

	repo := f.repo(t, "repo1")
	require.NotNil(t, repo.AttemptsLeft)
	assert.Equal(t, 2, *repo.AttemptsLeft)
	assert.Equal(t, "boom 1", *repo.Error)
	assert.True(t, repo.Enabled)

	_, err = f.manager.SyncRepository(ctx, "repo1")
	require.Error(t, err)
	assert.Equal(t, 1, *f.repo(t, "repo1").AttemptsLeft)

	_, err = f.manager.SyncRepository(ctx, "repo1")
	require.ErrorIs(t, err, ErrOutOfAttempts)
	assert.ErrorContains(t, err, "boom 3")

	repo = f.repo(t, "repo1")
	assert.False(t, repo.Enabled)
	assert.Nil(t, repo.AttemptsLeft)
	assert.Equal(t, "boom 3", *repo.Error)

	assert.Equal(t, []string{"failure", "failure", "failure", "disabled"}, f.notifier.order)
	require.Len(t, f.notifier.disabled, 1)
	assert.Equal(t, 3, f.notifier.disabled[0].attempts)
	assert.Equal(t, "boom 3", f.notifier.disabled[0].message)
	assert.False(t, f.notifier.disabled[0].repo.Enabled)
	assert.Equal(t, "sync", f.notifier.failures[0].operation)
	assert.Equal(t, "cred", *f.notifier.failures[0].credID)

	_, err = f.manager.SyncRepository(ctx, "repo1")
	require.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, 3, f.syncer.callCount())

	persisted := f.persister.last()
	require.NotNil(t, persisted)
	assert.False(t, persisted.FindRepository("repo1").Enabled)
}

func TestSyncSuccessResetsAttempts(t *testing.T) {
	f := newFixture(t, withRepos(model.Repository{ID: "r", URL: "https://example.com/r.git", Enabled: true}))
	f.syncer.script("r", failing("down"), synced("abc123", "fix things"))

	_, err := f.manager.SyncRepository(context.Background(), "r")
	require.Error(t, err)
	assert.Equal(t, 2, *f.repo(t, "r").AttemptsLeft)

	res, err := f.manager.SyncRepository(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.CommitHash)

	repo := f.repo(t, "r")
	assert.Nil(t, repo.AttemptsLeft)
	assert.Nil(t, repo.Error)
	require.NotNil(t, repo.LastSync)
	assert.Equal(t, int64(128), *repo.Size)
	assert.Equal(t, "abc123", *repo.LastSyncCommitHash)
	assert.Equal(t, "fix things", *repo.LastSyncMessage)

	// next failure starts from the full budget again
	f.syncer.script("r", failing("again"))
	_, _ = f.manager.SyncRepository(context.Background(), "r")
	assert.Equal(t, 2, *f.repo(t, "r").AttemptsLeft)
}

func TestSyncPassesSnapshotToEngine(t *testing.T) {
	f := newFixture(t, func(cfg *model.Config) {
		cfg.Credentials["cred"] = &model.Credential{ID: "cred", Username: "bot", Password: model.Encrypted("sealed")}
		cfg.Repositories = append(cfg.Repositories, model.Repository{
			ID: "r", URL: "https://example.com/r.git", Enabled: true, CredentialID: model.Ptr("cred"),
		})
	})

	_, err := f.manager.SyncRepository(context.Background(), "r")
	require.NoError(t, err)

	require.Len(t, f.syncer.calls, 1)
	call := f.syncer.calls[0]
	assert.Equal(t, testEncryptionKey, call.key)
	require.NotNil(t, call.cred)
	assert.Equal(t, "bot", call.cred.Username)

	// the engine got copies
	call.cred.Username = "changed"
	call.repo.URL = "changed"

	assert.Equal(t, "https://example.com/r.git", f.repo(t, "r").URL)
	f.manager.Store().Read(func(cfg *model.Config) {
		assert.Equal(t, "bot", cfg.Credentials["cred"].Username)
	})
}

func TestSyncRepositoryNotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.manager.SyncRepository(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSyncAll(t *testing.T) {
	f := newFixture(t, withRepos(
		model.Repository{ID: "ok", URL: "https://example.com/ok.git", Enabled: true},
		model.Repository{ID: "same", URL: "https://example.com/same.git", Enabled: true, LastSyncCommitHash: model.Ptr("h"), LastSyncMessage: model.Ptr("m")},
		model.Repository{ID: "bad", URL: "https://example.com/bad.git", Enabled: true},
		model.Repository{ID: "last", URL: "https://example.com/last.git", Enabled: true, AttemptsLeft: model.Ptr(1)},
		model.Repository{ID: "off", URL: "https://example.com/off.git", Enabled: false},
	))
	f.syncer.script("same", skipped("h", "m"))
	f.syncer.script("bad", failing("unreachable"))
	f.syncer.script("last", failing("still broken"))

	summary := f.manager.SyncAll(context.Background())

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.Disabled)
	assert.Zero(t, summary.Errored)
	assert.Equal(t, 4, f.syncer.callCount(), "disabled repositories are not scheduled")

	assert.False(t, f.repo(t, "last").Enabled)
	assert.Equal(t, 2, *f.repo(t, "bad").AttemptsLeft)
	assert.Equal(t, "m", *f.repo(t, "same").LastSyncMessage)
	assert.Len(t, f.notifier.failures, 2)
	assert.Len(t, f.notifier.disabled, 1)
}

func TestSyncAllPanicIsExecutionError(t *testing.T) {
	f := newFixture(t, withRepos(
		model.Repository{ID: "explodes", URL: "https://example.com/x.git", Enabled: true},
		model.Repository{ID: "fine", URL: "https://example.com/y.git", Enabled: true},
	))
	f.syncer.script("explodes", func() (*model.SyncResult, error) { panic("engine bug") })

	summary := f.manager.SyncAll(context.Background())
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.Synced)

	repo := f.repo(t, "explodes")
	assert.Nil(t, repo.AttemptsLeft, "no retry transition for execution errors")
	assert.Nil(t, repo.Error)
	assert.True(t, repo.Enabled)
	assert.Empty(t, f.notifier.failures)

	_, err := f.manager.SyncRepository(context.Background(), "fine")
	require.NoError(t, err, "locks are released after a panic")
}

func TestSyncSerializesSameRepository(t *testing.T) {
	f := newFixture(t, withRepos(model.Repository{ID: "r", URL: "https://example.com/r.git", Enabled: true}))

	slow := func() (*model.SyncResult, error) {
		time.Sleep(20 * time.Millisecond)
		return synced("a", "a")()
	}
	f.syncer.script("r", slow, slow, slow, slow)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			_, _ = f.manager.SyncRepository(context.Background(), "r")
		})
	}

	wg.Wait()

	assert.Equal(t, 4, f.syncer.callCount())
	assert.Equal(t, 1, f.syncer.peakFor("r"))
	assert.Zero(t, f.manager.locks.Len())
}

func TestSyncAbandonedWaitStillCompletes(t *testing.T) {
	f := newFixture(t, withRepos(model.Repository{ID: "r", URL: "https://example.com/r.git", Enabled: true}))

	release := make(chan struct{})
	f.syncer.script("r", func() (*model.SyncResult, error) {
		<-release
		return synced("late", "late")()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.manager.SyncRepository(ctx, "r")
	require.ErrorIs(t, err, ErrExecution)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)

	assert.Eventually(t, func() bool {
		repo := f.repo(t, "r")
		return repo.LastSyncCommitHash != nil && *repo.LastSyncCommitHash == "late"
	}, time.Second, 5*time.Millisecond)
}

func TestSyncAllCancelledWaitKeepsResults(t *testing.T) {
	f := newFixture(t, withRepos(model.Repository{ID: "r", URL: "https://example.com/r.git", Enabled: true}))

	started := make(chan struct{})
	release := make(chan struct{})
	f.syncer.script("r", func() (*model.SyncResult, error) {
		close(started)
		<-release
		return synced("late", "late")()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	summary := f.manager.SyncAll(ctx)
	assert.Equal(t, 1, summary.Errored)
	assert.Zero(t, f.persister.count())

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	f.manager.Wait()

	require.Equal(t, 1, f.persister.count(), "the result is persisted before Wait returns")
	assert.Equal(t, "late", *f.persister.last().FindRepository("r").LastSyncCommitHash)
}

func TestSyncRecordsHistory(t *testing.T) {
	h, err := store.Open(t.TempDir())
	require.NoError(t, err)

	defer func() { _ = h.Close() }()

	f := newFixture(t, withRepos(model.Repository{ID: "r", URL: "https://example.com/r.git", Enabled: true}), WithHistory(h))
	f.syncer.script("r", synced("one", "first"), failing("nope"), skipped("one", "first"))

	ctx := context.Background()
	for range 3 {
		_, _ = f.manager.SyncRepository(ctx, "r")
	}

	runs, err := f.manager.ListRuns(ctx, "r", 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	outcomes := map[model.Outcome]int{}
	for _, run := range runs {
		outcomes[run.Outcome]++
		assert.Equal(t, model.TriggerManual, run.Trigger)
	}

	assert.Equal(t, map[model.Outcome]int{model.OutcomeSynced: 1, model.OutcomeFailed: 1, model.OutcomeSkipped: 1}, outcomes)
}

func TestListRunsWithoutHistory(t *testing.T) {
	_, err := newFixture(t, nil).manager.ListRuns(context.Background(), "", 0)
	assert.True(t, errors.Is(err, ErrNoHistory))
}
