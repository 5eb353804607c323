package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs blocking git work on a bounded set of goroutines separate
// from the caller. A caller that stops waiting gets an error back, but the
// work itself keeps running until it returns.
type Executor struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewExecutor allows up to workers jobs to run at once.
func NewExecutor(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}

	return &Executor{sem: semaphore.NewWeighted(int64(workers))}
}

// Do runs fn once a slot is free and waits for it. The returned error is
// non-nil only when fn could not run or complete: ctx ended first, or fn
// panicked.
func (e *Executor) Do(ctx context.Context, fn func()) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan error, 1)

	e.wg.Go(func() {
		defer e.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()

		fn()

		done <- nil
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every job started by Do has returned, including jobs
// whose callers stopped waiting.
func (e *Executor) Wait() {
	e.wg.Wait()
}
