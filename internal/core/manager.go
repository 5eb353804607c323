package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/inovacc/gitsafe/internal/config"
	"github.com/inovacc/gitsafe/internal/model"
	"github.com/inovacc/gitsafe/internal/notify"
	"github.com/inovacc/gitsafe/internal/store"
)

// Syncer performs one sync attempt. *git.Engine implements it.
type Syncer interface {
	Sync(ctx context.Context, repo *model.Repository, cred *model.Credential, encryptionKey string) (*model.SyncResult, error)
	StoragePath(rawURL string) string
	ArchiveDir() string
}

// Persister accepts configuration snapshots for writing. *persist.Debouncer
// implements it.
type Persister interface {
	RequestPersist(cfg *model.Config)
}

// Notifier reports failures to webhooks. *notify.Notifier implements it.
type Notifier interface {
	NotifyFailure(urls []string, repo *model.Repository, operation string, credentialID *string, message string)
	NotifyDisabled(urls []string, repo *model.Repository, credentialID *string, message string, attempts int)
}

// Manager coordinates syncs and configuration changes.
type Manager struct {
	store     *config.Store
	engine    Syncer
	persister Persister
	notifier  Notifier
	history   store.History
	locks     *KeyedMutex
	executor  *Executor
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithPersister sets where changed configurations are sent.
func WithPersister(p Persister) Option {
	return func(m *Manager) {
		m.persister = p
	}
}

// WithNotifier sets the webhook notifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithHistory records every sync attempt in h.
func WithHistory(h store.History) Option {
	return func(m *Manager) {
		m.history = h
	}
}

// WithExecutor sets the worker pool git work runs on.
func WithExecutor(e *Executor) Option {
	return func(m *Manager) {
		m.executor = e
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager over st. Without WithExecutor the pool size
// follows the configured sync concurrency.
func NewManager(st *config.Store, engine Syncer, opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		engine:   engine,
		notifier: notify.NewNotifier(),
		locks:    NewKeyedMutex(),
		logger:   slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.executor == nil {
		m.executor = NewExecutor(m.concurrency())
	}

	return m
}

// Store returns the configuration store.
func (m *Manager) Store() *config.Store {
	return m.store
}

// Wait blocks until every sync job has finished its bookkeeping, including
// jobs whose callers stopped waiting. Call it before closing the persister
// or the history store.
func (m *Manager) Wait() {
	m.executor.Wait()
}

// mutate applies fn under the write lock and persists the result.
func (m *Manager) mutate(fn func(cfg *model.Config) error) error {
	cfg, err := m.store.Update(fn)
	if err != nil {
		return err
	}

	m.persist(cfg)

	return nil
}

func (m *Manager) persist(cfg *model.Config) {
	if m.persister != nil {
		m.persister.RequestPersist(cfg)
	}
}

func (m *Manager) concurrency() int {
	n := model.DefaultSyncConcurrency

	m.store.Read(func(cfg *model.Config) {
		if cfg.Server.SyncConcurrency > 0 {
			n = cfg.Server.SyncConcurrency
		}
	})

	return n
}
