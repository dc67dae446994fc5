package cache

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ljluestc/arangodb/internal/freq"
	"github.com/ljluestc/arangodb/internal/util"
	"github.com/ljluestc/arangodb/prng"
)

// Manager owns the global memory budget, the registry of live caches, and
// the spare-table pool; it is the only component that talks to the
// Executor. A Manager is an explicit collaborator passed to every cache it
// creates, never a process-wide global (spec.md §9).
type Manager struct {
	cfg Config

	globalAllocation util.PaddedAtomicInt64
	nextID           atomic.Uint64

	mu       sync.Mutex
	registry map[uint64]Cache
	spares   []spareTable

	rank *freq.Buffer[uint64]
}

type spareTable struct {
	cacheType CacheType
	logSize   uint32
	bytes     uint64
	table     any // *Table[*plainBucket] or *Table[*transactionalBucket]
}

// NewManager constructs a Manager from cfg, applying spec.md §6's defaults
// for any zero-valued field.
func NewManager(cfg Config) *Manager {
	if cfg.GlobalLimit == 0 {
		cfg.GlobalLimit = kMinSize
	}
	if cfg.IdealLowerRatio == 0 {
		cfg.IdealLowerRatio = 0.04
	}
	if cfg.IdealUpperRatio == 0 {
		cfg.IdealUpperRatio = 0.25
	}
	if cfg.SpareTableCapacity == 0 {
		cfg.SpareTableCapacity = 4
	}
	if cfg.Executor == nil {
		cfg.Executor = nopExecutor{}
	}
	if cfg.PRNG == nil {
		cfg.PRNG = prng.Default{}
	}
	return &Manager{
		cfg:      cfg,
		registry: make(map[uint64]Cache),
		rank:     freq.New[uint64](findStatsCapacity, cfg.PRNG),
	}
}

// Stats is the snapshot memoryStats returns (spec.md §4.8).
type Stats struct {
	GlobalLimit      uint64
	GlobalAllocation uint64
	SpareAllocation  uint64
	SpareTables      int
	ActiveTables     int
	PerCacheUsage    map[uint64]uint64
}

// memoryStats snapshots Manager state under its lock. tries = triesGuarantee
// blocks until the lock is acquired; any other value is advisory only, since
// Manager's lock is a plain mutex (see DESIGN.md) — bounded waiting is
// approximated with a single TryLock-equivalent best effort.
func (m *Manager) memoryStats(tries uint64) (Stats, bool) {
	if tries == triesGuarantee {
		m.mu.Lock()
	} else if !m.mu.TryLock() {
		return Stats{}, false
	}
	defer m.mu.Unlock()

	st := Stats{
		GlobalLimit:      m.cfg.GlobalLimit,
		GlobalAllocation: uint64(m.globalAllocation.Load()),
		ActiveTables:     len(m.registry),
		SpareTables:      len(m.spares),
		PerCacheUsage:    make(map[uint64]uint64, len(m.registry)),
	}
	for _, sp := range m.spares {
		st.SpareAllocation += sp.bytes
	}
	for id, c := range m.registry {
		st.PerCacheUsage[id] = c.Usage()
	}
	return st, true
}

// Stats is the public accessor for memoryStats with a guaranteed wait.
func (m *Manager) Stats() Stats {
	st, _ := m.memoryStats(triesGuarantee)
	return st
}

// Caches returns a snapshot of every live cache, keyed by id. Intended for
// metrics exporters that need to label per-cache gauges.
func (m *Manager) Caches() map[uint64]Cache {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint64]Cache, len(m.registry))
	for id, c := range m.registry {
		out[id] = c
	}
	return out
}

// reserve attempts to admit a request of n bytes against the global
// budget, reclaiming spare tables oldest-first and otherwise reporting
// failure (spec.md §4.8's admission control; FreeMemoryTask-based
// reclamation from live caches is attempted separately by the caller).
func (m *Manager) reserve(n uint64) bool {
	if uint64(m.globalAllocation.Load())+n <= m.cfg.GlobalLimit {
		m.globalAllocation.Add(int64(n))
		return true
	}
	for len(m.spares) > 0 && uint64(m.globalAllocation.Load())+n > m.cfg.GlobalLimit {
		m.freeOldestSpareLocked()
	}
	if uint64(m.globalAllocation.Load())+n <= m.cfg.GlobalLimit {
		m.globalAllocation.Add(int64(n))
		return true
	}
	return false
}

// freeOldestSpareLocked frees the spare table that has been in the pool
// longest; spares are appended as caches are destroyed, so that is index 0.
func (m *Manager) freeOldestSpareLocked() {
	if len(m.spares) == 0 {
		return
	}
	sp := m.spares[0]
	m.spares = m.spares[1:]
	m.globalAllocation.Add(-int64(sp.bytes))
}

// CreateCache implements spec.md §4.8's createCache.
func (m *Manager) CreateCache(opts CreateOptions) (Cache, error) {
	if opts.Hasher == nil {
		return nil, ErrResourceLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID.Add(1)
	meta := newMetadata(kMinSize)

	switch opts.Type {
	case Plain:
		logSize := initialLogSize(bucketSizeOf((*plainBucket)(nil)))
		t, size := m.acquireTable(Plain, logSize, func() *plainBucket { return &plainBucket{} })
		if t == nil {
			return nil, ErrResourceLimit
		}
		meta.setAllocatedSize(size)
		c := newPlainCache(id, m, meta, opts.Hasher, m.cfg.PRNG, t)
		m.registry[id] = c
		return c, nil
	case Transactional:
		logSize := initialLogSize(bucketSizeOf((*transactionalBucket)(nil)))
		t, size := m.acquireTableTransactional(Transactional, logSize, func() *transactionalBucket { return &transactionalBucket{} })
		if t == nil {
			return nil, ErrResourceLimit
		}
		meta.setAllocatedSize(size)
		c := newTransactionalCache(id, m, meta, opts.Hasher, m.cfg.PRNG, t)
		m.registry[id] = c
		return c, nil
	}
	return nil, ErrResourceLimit
}

// acquireTableTyped recycles a matching spare table if one exists, else
// allocates a fresh one and reserves its size against the global budget.
// Callers must hold m.mu.
func acquireTableTyped[B bucketContainer](m *Manager, kind CacheType, logSize uint32, alloc func() B) (*Table[B], uint64) {
	for i, sp := range m.spares {
		if sp.cacheType != kind || sp.logSize != logSize {
			continue
		}
		if t, ok := sp.table.(*Table[B]); ok {
			m.spares = append(m.spares[:i], m.spares[i+1:]...)
			return t, sp.bytes
		}
	}
	var probe B
	bucketBytes := bucketSizeOf(probe)
	n := uint64(1) << logSize
	size := n * bucketBytes
	if !m.reclaimForAdmission(size) {
		return nil, 0
	}
	return newTable[B](logSize, alloc, bucketBytes), size
}

// acquireTable is the non-generic entry point CreateCache can call for the
// plain-bucket flavor; acquireTableTransactional covers the other.
func (m *Manager) acquireTable(kind CacheType, logSize uint32, alloc func() *plainBucket) (*Table[*plainBucket], uint64) {
	return acquireTableTyped[*plainBucket](m, kind, logSize, alloc)
}

func (m *Manager) acquireTableTransactional(kind CacheType, logSize uint32, alloc func() *transactionalBucket) (*Table[*transactionalBucket], uint64) {
	return acquireTableTyped[*transactionalBucket](m, kind, logSize, alloc)
}

// bucketSizeOf returns an approximate per-bucket byte footprint used for
// admission accounting purposes; exact struct layout sizing is left to the
// runtime. TransactionalBucket's banish list adds a handful of uint32
// hashes on top of PlainBucket's slot array, small enough next to
// slotsPerBucket*cachedValueHeaderSize that both flavors are costed the
// same rather than tracked separately.
func bucketSizeOf(b any) uint64 {
	return slotsPerBucket * cachedValueHeaderSize
}

// initialLogSize picks the logSize a freshly created cache's table starts
// at: the smallest logSize whose table reaches kMinSize bytes, floored at
// kMinLogSize so a cheap bucket struct can't collapse the initial table
// below a useful working set (spec.md §4.8).
func initialLogSize(bucketBytes uint64) uint32 {
	want := util.LogSize(kMinSize / bucketBytes)
	if want < kMinLogSize {
		want = kMinLogSize
	}
	return want
}

// DestroyCache implements spec.md §4.8's destroyCache. A destroyed cache's
// table is retained as a spare only if doing so both stays under
// SpareTableCapacity and keeps globalAllocation within idealUpperRatio of
// GlobalLimit (spec.md §9's Open Question, resolved as the suggested
// heuristic: retain if globalAllocation + tableSize ≤ idealUpperRatio ×
// globalLimit, else free). globalAllocation already counts this table's
// bytes at this point, since they were reserved when the table was
// allocated and retaining it as a spare reserves the same bytes again, so
// the check reads the current total directly rather than adding size a
// second time.
func (m *Manager) DestroyCache(c Cache) {
	c.shutdown()

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.registry, c.id())

	size := c.Size()
	withinCap := len(m.spares) < m.cfg.SpareTableCapacity
	withinRatio := uint64(m.globalAllocation.Load()) <= uint64(m.cfg.IdealUpperRatio*float64(m.cfg.GlobalLimit))
	if withinCap && withinRatio {
		if sp := m.spareOf(c); sp != nil {
			m.spares = append(m.spares, *sp)
			return
		}
	}
	m.globalAllocation.Add(-int64(size))
}

// spareOf extracts the table a destroyed cache can offer back to the pool.
// Returns nil if the cache's table type cannot be recovered (shouldn't
// happen for the two concrete cache kinds).
func (m *Manager) spareOf(c Cache) *spareTable {
	switch cc := c.(type) {
	case *PlainCache:
		t := cc.table.Load()
		return &spareTable{cacheType: Plain, logSize: t.logSize, bytes: t.allocatedBytes(), table: t}
	case *TransactionalCache:
		t := cc.table.Load()
		return &spareTable{cacheType: Transactional, logSize: t.logSize, bytes: t.allocatedBytes(), table: t}
	default:
		return nil
	}
}

// requestGrow pushes an underused cache's table toward the smallest
// logSize whose table footprint (buckets × bucketBytes) reaches newLimit
// bytes, by requesting a migration the same way
// cacheCore.maybeRequestMigrate grows a table under eviction pressure. "Grow" here means table capacity: Metadata carries no
// standing usage quota outside an active resize (see requestShrink), so
// Rebalance's low-water case has nothing else to raise. Returns false
// without requesting anything if the table is already at least that big,
// the budget precheck fails, or the cache's table type can't be read.
func (m *Manager) requestGrow(c Cache, newLimit uint64) bool {
	m.mu.Lock()
	ok := uint64(m.globalAllocation.Load())+newLimit <= m.cfg.GlobalLimit
	m.mu.Unlock()
	if !ok {
		return false
	}

	logSize, bucketBytes, found := m.tableInfoOf(c)
	if !found {
		return false
	}
	want := util.LogSize(newLimit / bucketBytes)
	if want <= logSize {
		return false
	}
	return m.requestMigrate(c, want)
}

// tableInfoOf reads a cache's current table's logSize and per-bucket byte
// cost without needing a type assertion at every call site that wants them.
func (m *Manager) tableInfoOf(c Cache) (logSize uint32, bucketBytes uint64, ok bool) {
	switch cc := c.(type) {
	case *PlainCache:
		t := cc.table.Load()
		return t.logSize, t.bucketBytes, true
	case *TransactionalCache:
		t := cc.table.Load()
		return t.logSize, t.bucketBytes, true
	default:
		return 0, 0, false
	}
}

// requestMigrate posts a MigrateTask for c to grow/shrink its table to
// newLogSize, guarded by Metadata's Migrating flag so at most one
// migration per cache is ever in flight.
func (m *Manager) requestMigrate(c Cache, newLogSize uint32) bool {
	meta := m.metadataOf(c)
	if meta == nil || meta.isMigrating() || meta.isShutdown() {
		return false
	}
	meta.setFlag(flagMigrating)

	task := migrateTask{manager: m, cache: c, newLogSize: newLogSize}
	if !m.cfg.Executor.Post(task.run) {
		// best-effort synchronous fallback per spec.md §6: a false-returning
		// Executor degrades background work rather than disabling it. The
		// flag stays set while the task runs inline; task.run clears it.
		task.run()
		return true
	}
	return true
}

// requestShrink posts a FreeMemoryTask driving c's usage down to target
// bytes, guarded by Metadata's Resizing flag. It also lowers the cache's
// soft limit to target for the duration of the resize, so Insert (spec.md
// §4.7) can reject new writes that would race ahead of FreeMemoryTask
// instead of growing usage back past the point the resize is trying to
// reach.
func (m *Manager) requestShrink(c Cache, target uint64) bool {
	meta := m.metadataOf(c)
	if meta == nil || meta.isResizing() || meta.isShutdown() {
		return false
	}
	meta.setFlag(flagResizing)
	if _, hard, ok := meta.limits(triesFast); ok {
		meta.setLimits(target, hard, triesFast)
	}

	task := freeMemoryTask{manager: m, cache: c, target: target}
	if !m.cfg.Executor.Post(task.run) {
		task.run()
		return true
	}
	return true
}

func (m *Manager) metadataOf(c Cache) *Metadata {
	switch cc := c.(type) {
	case *PlainCache:
		return cc.meta
	case *TransactionalCache:
		return cc.meta
	default:
		return nil
	}
}

// recordFind feeds the Manager's global ranking buffer, used to pick
// reclamation victims under admission pressure (spec.md §4.8).
func (m *Manager) recordFind(cacheID uint64) {
	m.rank.Insert(cacheID)
}

// Rebalance is called periodically by the host (the cache subsystem owns
// no threads of its own, spec.md §5) to push any cache above
// idealUpperRatio×GlobalLimit toward a shrink and any cache below
// idealLowerRatio×GlobalLimit toward a grow.
func (m *Manager) Rebalance() {
	m.mu.Lock()
	caches := make([]Cache, 0, len(m.registry))
	for _, c := range m.registry {
		caches = append(caches, c)
	}
	limit := m.cfg.GlobalLimit
	lower := uint64(m.cfg.IdealLowerRatio * float64(limit))
	upper := uint64(m.cfg.IdealUpperRatio * float64(limit))
	m.mu.Unlock()

	for _, c := range caches {
		usage := c.Usage()
		switch {
		case usage > upper:
			m.requestShrink(c, upper)
		case usage < lower:
			m.requestGrow(c, lower)
		}
	}
}

// reclaimForAdmission attempts to make room for a pending request by
// shrinking the least-recently-used caches, ranked by the global frequency
// buffer (low-frequency caches preferred, ties broken by larger usage).
// Callers must hold m.mu.
func (m *Manager) reclaimForAdmission(need uint64) bool {
	if m.reserve(need) {
		return true
	}

	victims := make([]Cache, 0, len(m.registry))
	for _, c := range m.registry {
		victims = append(victims, c)
	}
	samples := m.rank.Frequencies()

	score := make(map[uint64]int, len(samples))
	for _, s := range samples {
		score[s.Event] = s.Count
	}
	sort.Slice(victims, func(i, j int) bool {
		si, sj := score[victims[i].id()], score[victims[j].id()]
		if si != sj {
			return si < sj
		}
		return victims[i].Usage() > victims[j].Usage()
	})

	for _, c := range victims {
		m.requestShrink(c, c.Usage()/2)
		if m.reserve(need) {
			return true
		}
	}
	return false
}
