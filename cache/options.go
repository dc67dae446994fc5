package cache

import "github.com/ljluestc/arangodb/prng"

// CacheType selects which table-operation strategy a newly created cache
// uses. Both variants share cacheCore; only find/insert/banish semantics
// differ (spec.md §9's "tagged variants of a Cache sum type").
type CacheType int

const (
	Plain CacheType = iota
	Transactional
)

func (t CacheType) String() string {
	switch t {
	case Plain:
		return "plain"
	case Transactional:
		return "transactional"
	default:
		return "unknown"
	}
}

// CreateOptions are the parameters a caller supplies to Manager.CreateCache.
type CreateOptions struct {
	Type   CacheType
	Hasher Hasher
}

// Config configures a Manager. Zero values are safe for GlobalLimit
// (falls back to kMinSize) and the ratios (fall back to the spec.md §6
// defaults); Executor and PRNG default to no-ops / the standard library.
type Config struct {
	// GlobalLimit bounds the total bytes the Manager will allocate across
	// every active table plus the spare pool.
	GlobalLimit uint64

	// EnableWindowedStats turns on the findStatsCapacity-sized rolling hit
	// rate sample on every created cache. Disabling it saves the buffer's
	// memory at the cost of Cache.HitRate's windowed return always being 0.
	EnableWindowedStats bool

	// IdealLowerRatio and IdealUpperRatio scale GlobalLimit into the
	// per-cache low-water/high-water marks Rebalance uses.
	IdealLowerRatio float64
	IdealUpperRatio float64

	// SpareTableCapacity bounds how many detached tables DestroyCache may
	// retain for fast reuse. Once the pool is full, a further destroyed
	// cache's table is freed whatever its size; retained spares are not
	// replaced by larger ones.
	SpareTableCapacity int

	Executor Executor
	PRNG     prng.Source
}
