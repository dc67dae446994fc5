// Package freq implements a bounded-size approximate frequency estimator:
// a circular buffer holding the N most-recently observed events. Insert is
// O(1) and lossy — it overwrites a uniformly random slot rather than the
// oldest one, so no index bookkeeping beyond the slot array is required.
package freq

import (
	"sync"

	"github.com/ljluestc/arangodb/prng"
)

// Sample pairs an observed event with its approximate occurrence count
// among the most recent entries retained by a Buffer.
type Sample[T comparable] struct {
	Event T
	Count int
}

// Buffer is a concurrency-safe bounded circular buffer of recent events.
type Buffer[T comparable] struct {
	mu     sync.Mutex
	rng    prng.Source
	slots  []T
	filled []bool
}

// New creates a Buffer retaining up to size recent events, drawing
// overwrite indices from rng. size is clamped to at least 1.
func New[T comparable](size int, rng prng.Source) *Buffer[T] {
	if size < 1 {
		size = 1
	}
	if rng == nil {
		rng = prng.Default{}
	}
	return &Buffer[T]{
		rng:    rng,
		slots:  make([]T, size),
		filled: make([]bool, size),
	}
}

// Insert records a single occurrence of e, possibly overwriting an
// unrelated older event.
func (b *Buffer[T]) Insert(e T) {
	b.mu.Lock()
	idx := int(b.rng.Uint64() % uint64(len(b.slots)))
	b.slots[idx] = e
	b.filled[idx] = true
	b.mu.Unlock()
}

// Frequencies returns the approximate occurrence count of every event
// currently resident in the buffer. The result is a snapshot; it does not
// reflect events inserted concurrently with the call.
func (b *Buffer[T]) Frequencies() []Sample[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := make(map[T]int, len(b.slots))
	for i, ok := range b.filled {
		if ok {
			counts[b.slots[i]]++
		}
	}
	out := make([]Sample[T], 0, len(counts))
	for e, c := range counts {
		out = append(out, Sample[T]{Event: e, Count: c})
	}
	return out
}

// Capacity returns the number of slots the buffer can retain.
func (b *Buffer[T]) Capacity() int { return len(b.slots) }
