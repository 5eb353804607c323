// Package persist coalesces bursts of configuration changes into single
// atomic writes performed by one background goroutine.
package persist

import (
	"log/slog"
	"sync"
	"time"

	"github.com/inovacc/gitsafe/internal/model"
)

// DefaultQuietPeriod is how long the debouncer waits after the last request.
const DefaultQuietPeriod = 500 * time.Millisecond

// SaveFunc writes a configuration snapshot to durable storage.
type SaveFunc func(cfg *model.Config) error

// Debouncer is the single writer of the configuration file. Every request
// replaces the pending snapshot and restarts one quiet period timer; when the
// timer fires the latest snapshot is saved.
type Debouncer struct {
	save   SaveFunc
	quiet  time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	latest *model.Config
	wake   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithQuietPeriod overrides DefaultQuietPeriod.
func WithQuietPeriod(d time.Duration) Option {
	return func(db *Debouncer) {
		db.quiet = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(db *Debouncer) {
		db.logger = logger
	}
}

// New starts the background writer.
func New(save SaveFunc, opts ...Option) *Debouncer {
	d := &Debouncer{
		save:     save,
		quiet:    DefaultQuietPeriod,
		logger:   slog.Default(),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	go d.run()

	return d
}

// RequestPersist queues cfg for saving. It never blocks on the writer: a
// snapshot not yet picked up is replaced by cfg. Requests after Close are
// dropped.
func (d *Debouncer) RequestPersist(cfg *model.Config) {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()

	if d.closed {
		d.logger.Warn("config persistence request after shutdown dropped")
		return
	}

	d.mu.Lock()
	d.latest = cfg
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Debouncer) take() *model.Config {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg := d.latest
	d.latest = nil

	return cfg
}

// Close flushes any pending snapshot and stops the writer. It blocks until
// the final write finished.
func (d *Debouncer) Close() {
	d.closeOnce.Do(func() {
		d.closeMu.Lock()
		d.closed = true
		close(d.wake)
		d.closeMu.Unlock()
	})

	<-d.done
}

func (d *Debouncer) run() {
	defer close(d.done)

	var (
		pending *model.Config
		timer   = time.NewTimer(d.quiet)
	)

	// the timer only runs while a snapshot is pending
	timer.Stop()

	for {
		select {
		case _, ok := <-d.wake:
			if cfg := d.take(); cfg != nil {
				pending = cfg
			}

			if !ok {
				timer.Stop()

				if pending != nil {
					d.write(pending)
				}

				d.logger.Info("config persistence shutting down")

				return
			}

			timer.Reset(d.quiet)
		case <-timer.C:
			if pending != nil {
				d.write(pending)
				pending = nil
			}
		}
	}
}

func (d *Debouncer) write(cfg *model.Config) {
	if err := d.save(cfg); err != nil {
		d.logger.Error("failed to save config", slog.Any("error", err))
		return
	}

	d.logger.Debug("config saved")
}
