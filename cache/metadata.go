package cache

import (
	"sync/atomic"

	"github.com/ljluestc/arangodb/internal/spinlock"
)

// metadataFlag bits track shutdown/migration/resize state with a single
// atomic word, so readers on the hot path can check "is this cache usable"
// without taking a lock.
type metadataFlag uint32

const (
	flagMigrating metadataFlag = 1 << 0
	flagResizing  metadataFlag = 1 << 1
	flagShutdown  metadataFlag = 1 << 2
)

// Metadata tracks one cache's accounting: current usage and the soft/hard
// limits the Manager has assigned it. usage and allocatedSize are plain
// atomics rather than spinlock-guarded so that code already holding a
// bucket lock can adjust them without reversing the Manager -> Cache ->
// Table lock order documented in SPEC_FULL.md.
type Metadata struct {
	usage         atomic.Uint64
	allocatedSize atomic.Uint64

	limitLock   spinlock.RW
	softLimit   uint64
	hardLimit   uint64

	flags atomic.Uint32
}

func newMetadata(initialLimit uint64) *Metadata {
	m := &Metadata{softLimit: initialLimit, hardLimit: initialLimit}
	return m
}

func (m *Metadata) adjustUsage(delta int64) {
	if delta >= 0 {
		m.usage.Add(uint64(delta))
		return
	}
	m.usage.Add(^uint64(-delta - 1)) // two's-complement subtraction
}

func (m *Metadata) currentUsage() uint64 { return m.usage.Load() }

func (m *Metadata) setAllocatedSize(n uint64) { m.allocatedSize.Store(n) }
func (m *Metadata) allocated() uint64         { return m.allocatedSize.Load() }

func (m *Metadata) limits(tries uint64) (soft, hard uint64, ok bool) {
	if !m.limitLock.RLock(tries) {
		return 0, 0, false
	}
	soft, hard = m.softLimit, m.hardLimit
	m.limitLock.RUnlock()
	return soft, hard, true
}

func (m *Metadata) setLimits(soft, hard uint64, tries uint64) bool {
	if !m.limitLock.Lock(tries) {
		return false
	}
	m.softLimit, m.hardLimit = soft, hard
	m.limitLock.Unlock()
	return true
}

func (m *Metadata) setFlag(f metadataFlag) {
	for {
		old := m.flags.Load()
		if old&uint32(f) != 0 {
			return
		}
		if m.flags.CompareAndSwap(old, old|uint32(f)) {
			return
		}
	}
}

func (m *Metadata) clearFlag(f metadataFlag) {
	for {
		old := m.flags.Load()
		if old&uint32(f) == 0 {
			return
		}
		if m.flags.CompareAndSwap(old, old&^uint32(f)) {
			return
		}
	}
}

func (m *Metadata) hasFlag(f metadataFlag) bool { return m.flags.Load()&uint32(f) != 0 }

func (m *Metadata) isMigrating() bool { return m.hasFlag(flagMigrating) }
func (m *Metadata) isResizing() bool  { return m.hasFlag(flagResizing) }
func (m *Metadata) isShutdown() bool  { return m.hasFlag(flagShutdown) }
