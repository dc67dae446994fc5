// Package executor provides a bounded-concurrency cache.Executor backed by
// a weighted semaphore: background tasks (migration, memory reclamation)
// are posted here so the cache subsystem itself never owns a thread.
package executor

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/ljluestc/arangodb/cache"
)

var _ cache.Executor = (*Pool)(nil)

// Pool runs posted closures on their own goroutine, admitting at most
// maxConcurrent at a time. Post never blocks: if the semaphore is already
// saturated, it returns false immediately rather than queuing, matching
// cache.Executor's "degrade to best-effort synchronous" contract.
type Pool struct {
	sem *semaphore.Weighted
}

// New constructs a Pool that runs up to maxConcurrent closures at once.
// maxConcurrent is clamped to at least 1.
func New(maxConcurrent int64) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pool{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Post implements cache.Executor.
func (p *Pool) Post(fn func()) bool {
	if !p.sem.TryAcquire(1) {
		return false
	}
	go func() {
		defer p.sem.Release(1)
		fn()
	}()
	return true
}

// Wait blocks until every in-flight closure has returned. Intended for
// tests and graceful shutdown.
func (p *Pool) Wait(ctx context.Context, maxConcurrent int64) error {
	if err := p.sem.Acquire(ctx, maxConcurrent); err != nil {
		return err
	}
	p.sem.Release(maxConcurrent)
	return nil
}
