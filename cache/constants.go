package cache

import (
	"time"

	"github.com/ljluestc/arangodb/internal/spinlock"
)

// Tuning constants, mostly carried over verbatim from the reference
// implementation this subsystem is modeled on (see DESIGN.md); kMinLogSize
// is the exception, as its own comment explains.
const (
	// kMinSize is the minimum memory reservation (bytes) for a new cache;
	// it seeds Metadata's initial soft/hard limit and is one input to the
	// initial table size computed by initialLogSize.
	kMinSize uint64 = 16384
	// kMinLogSize is the floor on a table's logSize, both for the initial
	// table (see initialLogSize) and for Table.checkLowFill's shrink path.
	// The reference implementation this package is modeled on pins this at
	// 14 against a bucket struct on the order of tens of bytes; our bucket
	// layout (slotsPerBucket inline slots plus headers) is heavier, so
	// kMinLogSize is scaled down to keep the resulting table's byte
	// footprint in the same working-set ballpark rather than preserving
	// the original exponent verbatim.
	kMinLogSize uint32 = 9

	// triesFast is the try budget typical find/insert call sites use.
	triesFast uint64 = 200
	// triesSlow is the try budget for call sites that can tolerate more
	// contention before giving up.
	triesSlow uint64 = 10000
	// triesGuarantee never gives up; reserved for administrative call sites
	// (migration, shutdown) that must make progress.
	triesGuarantee uint64 = spinlock.Unlimited

	// findStatsCapacity bounds the windowed hit-rate sample.
	findStatsCapacity = 16384

	slotsPerBucket  = 8
	banishListSize  = 4
	maxTableHops    = 8
	evictionMask    = 4095 // check roughly every 4096 insertions
	evictionRateThreshold = 0.01

	freeMemoryBatchBuckets = 32

	targetFillRatio      = 0.5
	shrinkFillRatio      = 0.125
	shrinkStreakToDecide = 2
)

// migrateCooldown bounds how often a single cache may ask the Manager for a
// table resize (grow or shrink), so a burst of eviction pressure or a burst
// of removals produces at most one outstanding request rather than a storm
// of them. Growth requested through Manager.requestGrow has no such
// cooldown: it is driven only by Manager.Rebalance on the host's own
// cadence, never by the cache itself.
const (
	migrateCooldown = 500 * time.Millisecond
)
