package cache

import (
	"sync/atomic"
	"time"

	"github.com/ljluestc/arangodb/internal/freq"
	"github.com/ljluestc/arangodb/internal/util"
	"github.com/ljluestc/arangodb/prng"
)

// Cache is the narrow capability set both PlainCache and TransactionalCache
// implement. It deliberately excludes anything that would force deep
// inheritance between the two strategies (spec.md §9): the only shared
// surface is find/insert/remove/banish plus the bookkeeping the Manager
// needs to schedule tasks against a cache it only holds by handle.
type Cache interface {
	Find(key []byte) Finding
	Insert(key, value []byte) error
	Remove(key []byte) error
	Banish(key []byte) error

	// Size reports the cache's allocated table footprint in bytes.
	Size() uint64
	// Usage reports the cache's current resident-entry footprint in bytes.
	Usage() uint64
	// HitRate reports lifetime and windowed (last findStatsCapacity finds)
	// hit rates as fractions in [0,1].
	HitRate() (lifetime, windowed float64)

	id() uint64
	freeMemoryWhile(shouldContinue func() bool)
	runMigration(newLogSize uint32) error
	shutdown()
}

// cacheCore holds the state PlainCache and TransactionalCache share:
// identity, accounting, the hasher capability, and the feedback loop that
// asks the Manager for more room. Table storage itself is NOT here,
// because Table[B] is generic over the bucket flavor and the two cache
// kinds use different flavors.
type cacheCore struct {
	cacheID uint64
	manager *Manager
	meta    *Metadata
	hasher  Hasher

	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64

	inserts   util.PaddedAtomicUint64
	evictions util.PaddedAtomicUint64

	findStats *freq.Buffer[bool]

	lastMigrateRequest atomic.Int64
}

func newCacheCore(id uint64, m *Manager, meta *Metadata, hasher Hasher, rng prng.Source) cacheCore {
	c := cacheCore{
		cacheID: id,
		manager: m,
		meta:    meta,
		hasher:  hasher,
	}
	if m.cfg.EnableWindowedStats {
		c.findStats = freq.New[bool](findStatsCapacity, rng)
	}
	return c
}

func (c *cacheCore) id() uint64 { return c.cacheID }

func (c *cacheCore) Size() uint64  { return c.meta.allocated() }
func (c *cacheCore) Usage() uint64 { return c.meta.currentUsage() }

func (c *cacheCore) recordHit() {
	c.hits.Add(1)
	if c.findStats != nil {
		c.findStats.Insert(true)
	}
	c.manager.recordFind(c.cacheID)
}

func (c *cacheCore) recordMiss() {
	c.misses.Add(1)
	if c.findStats != nil {
		c.findStats.Insert(false)
	}
	c.manager.recordFind(c.cacheID)
}

// HitRate reports the lifetime hit rate always; the windowed rate is 0 when
// Config.EnableWindowedStats is false, since no sample buffer is kept.
func (c *cacheCore) HitRate() (lifetime, windowed float64) {
	hits, misses := c.hits.Load(), c.misses.Load()
	if total := hits + misses; total > 0 {
		lifetime = float64(hits) / float64(total)
	}
	if c.findStats == nil {
		return lifetime, 0
	}
	var wHits, wTotal int
	for _, s := range c.findStats.Frequencies() {
		wTotal += s.Count
		if s.Event {
			wHits += s.Count
		}
	}
	if wTotal > 0 {
		windowed = float64(wHits) / float64(wTotal)
	}
	return lifetime, windowed
}

// recordInsert updates the insert/eviction counters and reports whether
// this insert falls on an evictionMask boundary (every 4096th insert), i.e.
// whether the caller should now evaluate the eviction ratio.
func (c *cacheCore) recordInsert(evicted bool) (shouldCheckGrowth bool) {
	inserts := c.inserts.Add(1)
	if evicted {
		c.evictions.Add(1)
	}
	return inserts&evictionMask == 0
}

func (c *cacheCore) evictionRatio() float64 {
	inserts := c.inserts.Load()
	if inserts == 0 {
		return 0
	}
	return float64(c.evictions.Load()) / float64(inserts)
}

// maybeRequestMigrate asks the Manager for a larger table when the eviction
// ratio exceeds threshold, subject to a per-cache cooldown so a burst of
// evictions produces one request rather than many (spec.md §4.6). The ratio
// is cumulative: evictions over all inserts since the cache was created; it
// is not limited to the most recent inserts. The new size is the smallest
// logSize above the current one that keeps the table's current occupancy
// near targetFillRatio fullness, so a nearly full table may grow by more
// than one doubling at once.
func (c *cacheCore) maybeRequestMigrate(self Cache, currentLogSize uint32, filled int64) {
	if c.evictionRatio() <= evictionRateThreshold {
		return
	}
	if !c.armMigrateCooldown() {
		return
	}
	c.manager.requestMigrate(self, growthLogSize(filled, currentLogSize))
}

// maybeRequestShrinkTable asks the Manager for a smaller table once it has
// been persistently under-filled (Table.checkLowFill), subject to the same
// cooldown maybeRequestMigrate uses: growing and shrinking a table are the
// same kind of background work from the Manager's point of view, so a burst
// of removals can't queue a flurry of migrations behind a recent grow.
func (c *cacheCore) maybeRequestShrinkTable(self Cache, currentLogSize uint32) {
	if currentLogSize <= kMinLogSize {
		return
	}
	if !c.armMigrateCooldown() {
		return
	}
	c.manager.requestMigrate(self, currentLogSize-1)
}

func (c *cacheCore) armMigrateCooldown() bool {
	now := time.Now().UnixNano()
	last := c.lastMigrateRequest.Load()
	if now-last < int64(migrateCooldown) {
		return false
	}
	return c.lastMigrateRequest.CompareAndSwap(last, now)
}

// growthLogSize picks the smallest logSize strictly larger than current
// whose bucket count keeps filled slots near targetFillRatio full.
func growthLogSize(filled int64, current uint32) uint32 {
	if filled < 0 {
		filled = 0
	}
	wantBuckets := (uint64(filled) / slotsPerBucket) + 1
	wantBuckets = uint64(float64(wantBuckets) / targetFillRatio)
	want := util.LogSize(wantBuckets)
	if want <= current {
		want = current + 1
	}
	return want
}
