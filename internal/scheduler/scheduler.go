// Package scheduler runs the recurring sync job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inovacc/gitsafe/internal/config"
	"github.com/robfig/cron/v3"
)

// Job is the work run on every tick.
type Job func(ctx context.Context)

// Scheduler fires Job on a six field (seconds first) cron expression. A tick
// that arrives while the previous run is still going is skipped.
type Scheduler struct {
	expression string
	schedule   cron.Schedule
	job        Job
	logger     *slog.Logger
	location   *time.Location

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithLocation sets the time zone the expression is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// New validates expression and returns a stopped scheduler.
func New(expression string, job Job, opts ...Option) (*Scheduler, error) {
	schedule, err := config.CronParser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}

	s := &Scheduler{
		expression: expression,
		schedule:   schedule,
		job:        job,
		logger:     slog.Default(),
		location:   time.Local,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start begins firing the job. Calling Start on a running scheduler does
// nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	adapter := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	ctx := s.ctx
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.job(ctx)
	}))

	s.cron.Start()
	s.running = true

	s.logger.Info("sync scheduler started",
		slog.String("expression", s.expression),
		slog.Time("next_run", s.Next()),
	)
}

// Stop cancels the job context and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	s.cancel()
	s.running = false
	c := s.cron
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("sync scheduler stopped")
}

// Running reports whether the scheduler has been started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Next returns the next activation time after now.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(time.Now().In(s.location))
}

// Expression returns the configured cron expression.
func (s *Scheduler) Expression() string {
	return s.expression
}

// cronLogger forwards cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
