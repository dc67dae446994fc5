package cache

import (
	"math/rand"
	"sync/atomic"

	"github.com/ljluestc/arangodb/prng"
)

// TransactionalCache adds a per-bucket banish list on top of PlainCache's
// table operations: find and remove are identical to PlainCache, but
// insert first rejects known-poisoned keys and banish can mark one
// (spec.md §4.5).
type TransactionalCache struct {
	cacheCore
	table atomic.Pointer[Table[*transactionalBucket]]
}

var _ Cache = (*TransactionalCache)(nil)

func newTransactionalCache(id uint64, m *Manager, meta *Metadata, hasher Hasher, rng prng.Source, t *Table[*transactionalBucket]) *TransactionalCache {
	c := &TransactionalCache{cacheCore: newCacheCore(id, m, meta, hasher, rng)}
	c.table.Store(t)
	return c
}

func (c *TransactionalCache) currentTable() *Table[*transactionalBucket] {
	return successorOrSelf(c.table.Load())
}

// Find is identical to PlainCache.Find (spec.md §4.5).
func (c *TransactionalCache) Find(key []byte) Finding {
	if c.meta.isShutdown() {
		return emptyFinding()
	}
	hash := c.hasher.HashKey(key)
	t := c.currentTable()
	b, locked, _ := t.lockExclusive(hash, triesFast)
	if !locked {
		return emptyFinding()
	}
	core := b.core()
	defer core.lock.Unlock()

	i := scanBucket(core, hash, key, c.hasher)
	if i < 0 {
		c.recordMiss()
		return emptyFinding()
	}
	v := core.slots[i].value
	core.moveToFront(i)
	c.recordHit()
	return foundFinding(v)
}

// Insert rejects keys whose hash is on the bucket's banish list, else
// behaves like PlainCache.Insert, including §4.7's Resizing/soft-limit
// rejection (spec.md §4.5).
func (c *TransactionalCache) Insert(key, value []byte) error {
	if c.meta.isShutdown() {
		return ErrShutdown
	}
	if c.meta.isResizing() {
		if soft, _, ok := c.meta.limits(triesFast); ok && c.meta.currentUsage() >= soft {
			return ErrResourceLimit
		}
	}
	cv, err := construct(key, value)
	if err != nil {
		return err
	}

	hash := c.hasher.HashKey(key)
	t := c.currentTable()
	b, locked, _ := t.lockExclusive(hash, triesFast)
	if !locked {
		return ErrBusy
	}
	core := &b.bucketCore

	if b.isBanished(hash) {
		core.lock.Unlock()
		cv.release()
		return ErrBanished
	}

	evicted := false
	if i := scanBucket(core, hash, key, c.hasher); i >= 0 {
		old := core.slots[i].value
		c.meta.adjustUsage(int64(cv.Size()) - int64(old.Size()))
		old.release()
		core.slots[i].value = cv
		core.slots[i].hash = hash
		core.moveToFront(i)
	} else if j := core.emptySlot(); j >= 0 {
		core.slots[j] = slot{hash: hash, value: cv}
		core.moveToFront(j)
		t.slotFilled()
		c.meta.adjustUsage(int64(cv.Size()))
	} else {
		j := core.lastOccupied()
		old := core.slots[j].value
		c.meta.adjustUsage(int64(cv.Size()) - int64(old.Size()))
		old.release()
		core.slots[j] = slot{hash: hash, value: cv}
		core.moveToFront(j)
		evicted = true
	}
	core.lock.Unlock()

	if c.recordInsert(evicted) {
		c.maybeRequestMigrate(c, t.logSize, t.filledCount())
	}
	return nil
}

// Remove is identical to PlainCache.Remove (spec.md §4.5).
func (c *TransactionalCache) Remove(key []byte) error {
	if c.meta.isShutdown() {
		return ErrShutdown
	}
	hash := c.hasher.HashKey(key)
	t := c.currentTable()
	b, locked, _ := t.lockExclusive(hash, triesFast)
	if !locked {
		return ErrBusy
	}
	core := b.core()

	i := scanBucket(core, hash, key, c.hasher)
	if i < 0 {
		core.lock.Unlock()
		return ErrNotFound
	}
	v := core.slots[i].value
	c.meta.adjustUsage(-int64(v.Size()))
	v.release()
	core.slots[i] = slot{}
	t.slotEmptied()
	core.lock.Unlock()

	if t.checkLowFill() {
		c.maybeRequestShrinkTable(c, t.logSize)
	}
	return nil
}

// Banish exclusive-locks the primary bucket, drops any matching slot, and
// records hash as banished until the bucket next migrates or the entry is
// pushed out of the bucket's FIFO banish list (spec.md §4.5).
func (c *TransactionalCache) Banish(key []byte) error {
	if c.meta.isShutdown() {
		return ErrShutdown
	}
	hash := c.hasher.HashKey(key)
	t := c.currentTable()
	b, locked, _ := t.lockExclusive(hash, triesFast)
	if !locked {
		return ErrBusy
	}
	core := b.core()
	defer core.lock.Unlock()

	if i := scanBucket(core, hash, key, c.hasher); i >= 0 {
		v := core.slots[i].value
		c.meta.adjustUsage(-int64(v.Size()))
		v.release()
		core.slots[i] = slot{}
		t.slotEmptied()
	}
	b.addBanish(hash)
	return nil
}

func (c *TransactionalCache) shutdown() {
	c.meta.setFlag(flagShutdown)
	t := c.table.Load()
	for _, b := range t.buckets {
		core := b.core()
		core.lock.Lock(triesGuarantee)
		core.releaseAll()
		core.lock.Unlock()
	}
}

// freeMemoryWhile mirrors PlainCache.freeMemoryWhile, batch cap included.
func (c *TransactionalCache) freeMemoryWhile(shouldContinue func() bool) {
	t := c.currentTable()
	n := len(t.buckets)
	if n == 0 {
		return
	}
	start := rand.Intn(n)
	batch := n
	if batch > freeMemoryBatchBuckets {
		batch = freeMemoryBatchBuckets
	}
	for off := 0; off < batch; off++ {
		if !shouldContinue() {
			return
		}
		b := t.buckets[(start+off)%n]
		core := b.core()
		if !core.lock.Lock(triesSlow) {
			continue
		}
		for i := len(core.slots) - 1; i >= 0; i-- {
			if !shouldContinue() {
				break
			}
			if v := core.slots[i].value; v != nil {
				c.meta.adjustUsage(-int64(v.Size()))
				v.release()
				core.slots[i] = slot{}
				t.slotEmptied()
			}
		}
		core.lock.Unlock()
	}
}

// runMigration mirrors PlainCache.runMigration, additionally clearing each
// drained bucket's banish list: banishment survives eviction but not
// migration (spec.md §4.5).
func (c *TransactionalCache) runMigration(newLogSize uint32) error {
	old := c.table.Load()
	old.disable()

	newT := newTable[*transactionalBucket](newLogSize, func() *transactionalBucket { return &transactionalBucket{} }, old.bucketBytes)
	old.next.Store(newT)
	for _, b := range old.buckets {
		core := b.core()
		core.lock.Lock(triesGuarantee)
		for i := range core.slots {
			v := core.slots[i].value
			if v == nil {
				continue
			}
			hash := core.slots[i].hash
			nb := newT.primary(hash)
			ncore := nb.core()
			ncore.lock.Lock(triesGuarantee)
			if j := ncore.emptySlot(); j >= 0 {
				ncore.slots[j] = slot{hash: hash, value: v}
				newT.slotFilled()
			} else {
				v.release()
				c.meta.adjustUsage(-int64(v.Size()))
			}
			ncore.lock.Unlock()
			core.slots[i] = slot{}
		}
		b.clearBanish()
		core.migrated.Store(true)
		core.lock.Unlock()
	}

	c.table.Store(newT)
	c.meta.setAllocatedSize(newT.allocatedBytes())
	return nil
}
