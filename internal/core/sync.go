package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/inovacc/gitsafe/internal/model"
	"github.com/inovacc/gitsafe/internal/notify"
	"github.com/inovacc/gitsafe/internal/retry"
	"golang.org/x/sync/errgroup"
)

// BatchSummary counts the outcomes of one SyncAll run.
type BatchSummary struct {
	Total    int
	Synced   int
	Skipped  int
	Failed   int
	Disabled int
	Errored  int
	Duration time.Duration
}

// syncInput is everything an attempt needs, copied out of the configuration.
type syncInput struct {
	repo          *model.Repository
	cred          *model.Credential
	encryptionKey string
	webhooks      []string
	attempts      int
}

// SyncAll syncs every enabled repository with bounded concurrency. Failures
// of single repositories are recorded on them and do not stop the batch.
func (m *Manager) SyncAll(ctx context.Context) *BatchSummary {
	start := m.now()

	var (
		ids   []string
		limit int
	)

	m.store.Read(func(cfg *model.Config) {
		for i := range cfg.Repositories {
			if cfg.Repositories[i].Enabled {
				ids = append(ids, cfg.Repositories[i].ID)
			}
		}

		limit = cfg.Server.SyncConcurrency
	})

	if limit < 1 {
		limit = model.DefaultSyncConcurrency
	}

	var synced, skipped, failed, disabled, errored atomic.Int32

	g := new(errgroup.Group)
	g.SetLimit(limit)

	for _, id := range ids {
		g.Go(func() error {
			res, err := m.syncOne(ctx, id, model.TriggerSchedule)

			switch {
			case err == nil && res.Skipped:
				skipped.Add(1)
			case err == nil:
				synced.Add(1)
			case errors.Is(err, ErrExecution):
				errored.Add(1)
			case errors.Is(err, ErrOutOfAttempts):
				failed.Add(1)
				disabled.Add(1)
			case errors.Is(err, ErrDisabled), errors.Is(err, ErrNotFound):
				// changed since the snapshot
			default:
				failed.Add(1)
			}

			return nil
		})
	}

	_ = g.Wait()

	summary := &BatchSummary{
		Total:    len(ids),
		Synced:   int(synced.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
		Disabled: int(disabled.Load()),
		Errored:  int(errored.Load()),
		Duration: m.now().Sub(start),
	}

	m.logger.Info("sync run finished",
		slog.Int("total", summary.Total),
		slog.Int("synced", summary.Synced),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Int("disabled", summary.Disabled),
		slog.Int("errored", summary.Errored),
		slog.Duration("duration", summary.Duration),
	)

	return summary
}

// SyncRepository syncs one repository on demand. A failure that exhausts
// the repository's attempts is returned wrapped in ErrOutOfAttempts.
func (m *Manager) SyncRepository(ctx context.Context, id string) (*model.SyncResult, error) {
	var err error

	m.store.Read(func(cfg *model.Config) {
		repo := cfg.FindRepository(id)

		switch {
		case repo == nil:
			err = fmt.Errorf("repository %s: %w", id, ErrNotFound)
		case !repo.Enabled:
			err = fmt.Errorf("repository %s: %w", id, ErrDisabled)
		}
	})

	if err != nil {
		return nil, err
	}

	return m.syncOne(ctx, id, model.TriggerManual)
}

// syncOne runs one attempt on the executor. Attempts of the same repository
// are serialized; the lock is held until the attempt and its bookkeeping
// finish, even when ctx ends earlier.
func (m *Manager) syncOne(ctx context.Context, id, trigger string) (*model.SyncResult, error) {
	var (
		res     *model.SyncResult
		syncErr error
	)

	err := m.executor.Do(ctx, func() {
		unlock := m.locks.Lock(id)
		defer unlock()

		res, syncErr = m.attempt(context.WithoutCancel(ctx), id, trigger)
	})
	if err != nil {
		execErr := &ExecutionError{RepositoryID: id, Err: err}
		m.logger.Error("sync execution failed, skipping repository",
			slog.String("repository", id),
			slog.Any("error", err),
		)

		return nil, execErr
	}

	return res, syncErr
}

// attempt reads the current state of id, syncs it and applies the retry
// transition.
func (m *Manager) attempt(ctx context.Context, id, trigger string) (*model.SyncResult, error) {
	in, err := m.input(id)
	if err != nil {
		return nil, err
	}

	started := m.now()
	res, syncErr := m.engine.Sync(ctx, in.repo, in.cred, in.encryptionKey)
	elapsed := m.now().Sub(started)

	if syncErr != nil {
		return nil, m.recordFailure(ctx, in, trigger, started, elapsed, syncErr)
	}

	m.recordSuccess(ctx, in, trigger, started, elapsed, res)

	return res, nil
}

func (m *Manager) input(id string) (*syncInput, error) {
	var (
		in  *syncInput
		err error
	)

	m.store.Read(func(cfg *model.Config) {
		repo := cfg.FindRepository(id)
		if repo == nil {
			err = fmt.Errorf("repository %s: %w", id, ErrNotFound)
			return
		}

		if !repo.Enabled {
			err = fmt.Errorf("repository %s: %w", id, ErrDisabled)
			return
		}

		in = &syncInput{
			repo:          repo.Clone(),
			cred:          cfg.Credential(repo.CredentialRef()).Clone(),
			encryptionKey: cfg.Server.EncryptionKey,
			webhooks:      append([]string(nil), cfg.Server.ErrorWebhooks...),
			attempts:      cfg.Server.SyncAttempts,
		}
	})

	return in, err
}

func (m *Manager) recordFailure(ctx context.Context, in *syncInput, trigger string, started time.Time, elapsed time.Duration, syncErr error) error {
	message := syncErr.Error()
	logger := m.logger.With(slog.String("repository", in.repo.ID))
	logger.Warn("sync failed", slog.String("error", message))

	var (
		disabled bool
		updated  *model.Repository
	)

	cfg, err := m.store.Update(func(cfg *model.Config) error {
		repo := cfg.FindRepository(in.repo.ID)
		if repo == nil {
			return fmt.Errorf("repository %s: %w", in.repo.ID, ErrNotFound)
		}

		disabled = retry.ApplyFailure(repo, message, in.attempts)
		updated = repo.Clone()

		return nil
	})
	if err != nil {
		logger.Warn("repository removed during sync", slog.Any("error", err))
		updated = in.repo
	} else {
		m.persist(cfg)
	}

	m.notifier.NotifyFailure(in.webhooks, in.repo, notify.OperationSync, in.repo.CredentialID, message)

	if disabled {
		logger.Error("repository ran out of sync attempts and was disabled", slog.Int("attempts", in.attempts))
		m.notifier.NotifyDisabled(in.webhooks, updated, in.repo.CredentialID, message, in.attempts)
	}

	m.recordRun(ctx, &model.SyncRun{
		RepositoryID: in.repo.ID,
		Trigger:      trigger,
		StartedAt:    started,
		Duration:     elapsed,
		Outcome:      model.OutcomeFailed,
		Error:        message,
	})

	if disabled {
		return fmt.Errorf("%w: %w", ErrOutOfAttempts, syncErr)
	}

	return syncErr
}

func (m *Manager) recordSuccess(ctx context.Context, in *syncInput, trigger string, started time.Time, elapsed time.Duration, res *model.SyncResult) {
	logger := m.logger.With(slog.String("repository", in.repo.ID))

	var recovered bool

	cfg, err := m.store.Update(func(cfg *model.Config) error {
		repo := cfg.FindRepository(in.repo.ID)
		if repo == nil {
			return fmt.Errorf("repository %s: %w", in.repo.ID, ErrNotFound)
		}

		recovered = retry.ApplySuccess(repo, res, m.now())

		return nil
	})
	if err != nil {
		logger.Warn("repository removed during sync", slog.Any("error", err))
	} else {
		m.persist(cfg)
	}

	if recovered {
		logger.Info("repository recovered after failures")
	}

	outcome := model.OutcomeSynced
	if res.Skipped {
		outcome = model.OutcomeSkipped
	}

	m.recordRun(ctx, &model.SyncRun{
		RepositoryID: in.repo.ID,
		Trigger:      trigger,
		StartedAt:    started,
		Duration:     elapsed,
		Outcome:      outcome,
		CommitHash:   res.CommitHash,
		Size:         res.Size,
	})
}

func (m *Manager) recordRun(ctx context.Context, run *model.SyncRun) {
	if m.history == nil {
		return
	}

	if err := m.history.RecordRun(ctx, run); err != nil {
		m.logger.Warn("failed to record sync run",
			slog.String("repository", run.RepositoryID),
			slog.Any("error", err),
		)
	}
}
