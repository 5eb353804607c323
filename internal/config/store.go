package config

import (
	"sync"

	"github.com/inovacc/gitsafe/internal/model"
)

// Store is the process wide, lock guarded configuration. Readers take
// snapshots; writers mutate under the lock and receive a clone to persist
// after the lock is released. Never call blocking I/O inside Read or Update.
type Store struct {
	mu  sync.RWMutex
	cfg *model.Config
}

// NewStore wraps cfg. The store takes ownership of cfg.
func NewStore(cfg *model.Config) *Store {
	return &Store{cfg: cfg}
}

// Snapshot returns a deep copy of the current configuration.
func (s *Store) Snapshot() *model.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cfg.Clone()
}

// Read runs fn under the read lock. fn must not retain cfg.
func (s *Store) Read(fn func(cfg *model.Config)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn(s.cfg)
}

// Update runs fn under the write lock. When fn succeeds a clone of the
// updated configuration is returned for persistence. fn must validate before
// it mutates so a returned error leaves the configuration untouched.
func (s *Store) Update(fn func(cfg *model.Config) error) (*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.cfg); err != nil {
		return nil, err
	}

	return s.cfg.Clone(), nil
}
