package cache

import (
	"math/rand"
	"sync/atomic"

	"github.com/ljluestc/arangodb/prng"
)

// PlainCache is the table-operation strategy with no banishment: find,
// insert, and remove behave exactly as spec.md §4.4 describes, and Banish
// always fails with ErrNotImplemented.
type PlainCache struct {
	cacheCore
	table atomic.Pointer[Table[*plainBucket]]
}

var _ Cache = (*PlainCache)(nil)

func newPlainCache(id uint64, m *Manager, meta *Metadata, hasher Hasher, rng prng.Source, t *Table[*plainBucket]) *PlainCache {
	c := &PlainCache{cacheCore: newCacheCore(id, m, meta, hasher, rng)}
	c.table.Store(t)
	return c
}

func (c *PlainCache) currentTable() *Table[*plainBucket] {
	return successorOrSelf(c.table.Load())
}

// Find implements spec.md §4.4's find: exclusive-lock the primary bucket
// (promotion reorders the slot array), scan for a match, lease and promote
// it to the bucket's front on hit.
func (c *PlainCache) Find(key []byte) Finding {
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

// Insert implements spec.md §4.4's insert, plus §4.7's admission rule: a
// cache the Manager has flagged Resizing rejects new inserts once usage has
// caught back up to its soft limit, rather than letting inserts race ahead
// of the FreeMemoryTask that is trying to shrink it.
func (c *PlainCache) Insert(key, value []byte) error {
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
	core := b.core()

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

// Remove implements spec.md §4.4's remove.
func (c *PlainCache) Remove(key []byte) error {
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

// Banish is not supported by PlainCache (spec.md §4.4).
func (c *PlainCache) Banish(key []byte) error { return ErrNotImplemented }

func (c *PlainCache) shutdown() {
	c.meta.setFlag(flagShutdown)
	t := c.table.Load()
	for _, b := range t.buckets {
		core := b.core()
		core.lock.Lock(triesGuarantee)
		core.releaseAll()
		core.lock.Unlock()
	}
}

// freeMemoryWhile evicts entries, oldest-first within each visited bucket,
// visiting consecutive buckets from a random starting bucket, until
// shouldContinue returns false
// or freeMemoryBatchBuckets buckets have been visited. The batch cap bounds
// how long a single FreeMemoryTask run holds the bucket locks of a large
// table; FreeMemoryTask reposts itself while usage still exceeds target, so
// a table larger than one batch gets swept across several runs instead of
// one goroutine draining it end to end (spec.md §4.8).
func (c *PlainCache) freeMemoryWhile(shouldContinue func() bool) {
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

// runMigration implements MigrateTask's per-cache half (spec.md §4.8):
// disable the old table, build a new one, drain every bucket into it.
func (c *PlainCache) runMigration(newLogSize uint32) error {
	old := c.table.Load()
	old.disable()

	newT := newTable[*plainBucket](newLogSize, func() *plainBucket { return &plainBucket{} }, old.bucketBytes)
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
				// new table undersized for the live set; drop the
				// entry being moved rather than grow unbounded mid-migration.
				v.release()
				c.meta.adjustUsage(-int64(v.Size()))
			}
			ncore.lock.Unlock()
			core.slots[i] = slot{}
		}
		core.migrated.Store(true)
		core.lock.Unlock()
	}

	c.table.Store(newT)
	c.meta.setAllocatedSize(newT.allocatedBytes())
	return nil
}
