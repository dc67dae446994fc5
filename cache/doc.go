// Package cache provides a shared in-process caching subsystem: a Manager
// owns a global memory budget and a registry of independent Cache
// instances (PlainCache or TransactionalCache), each backed by its own
// bucketed hash Table that migrates to a new size under memory pressure.
//
// Design
//
//   - Concurrency: every bucket is protected by its own bounded-retry spin
//     lock (internal/spinlock.RW). Hot-path calls use triesFast and
//     tolerate a Busy result; administrative calls (migration, shutdown)
//     use triesGuarantee and never give up.
//
//   - Storage: a Table is a power-of-two-sized array of fixed-capacity
//     buckets (slotsPerBucket slots each). Lookups hash the key, pick the
//     primary bucket, and scan its slots; matches are promoted to the
//     bucket's front as an MRU approximation of LRU.
//
//   - Cache kinds: PlainCache supports find/insert/remove. TransactionalCache
//     additionally supports banish, rejecting inserts of known-poisoned
//     keys until the bucket next migrates or the entry ages out of the
//     bucket's small FIFO banish list.
//
//   - Growth and shrink: each cache tracks its own insert/eviction ratio and
//     its Table's fullness, asking its Manager to migrate to a larger Table
//     when the eviction ratio crosses a threshold or a smaller one when
//     fullness stays persistently low, subject to a shared cooldown. The
//     Manager may deny either request.
//
//   - Reclamation: the Manager ranks caches by recent find frequency and
//     posts FreeMemoryTask/MigrateTask closures to an external Executor;
//     the cache subsystem owns no threads of its own.
//
//   - Metrics: Manager.Stats and Cache.HitRate expose the counters a host
//     would wire into its own observability stack; see package
//     metrics/prom for a Prometheus adapter.
//
// Basic usage
//
//	m := cache.NewManager(cache.Config{GlobalLimit: 64 << 20})
//	c, err := m.CreateCache(cache.CreateOptions{Type: cache.Plain, Hasher: hash.NewBinary()})
//	_ = c.Insert([]byte("k"), []byte("v"))
//	f := c.Find([]byte("k"))
//	defer f.Release()
//
// With a transactional cache
//
//	c, _ := m.CreateCache(cache.CreateOptions{Type: cache.Transactional, Hasher: hash.NewBinary()})
//	_ = c.Insert([]byte("k"), []byte("v1"))
//	_ = c.Banish([]byte("k"))
//	_ = c.Insert([]byte("k"), []byte("v2")) // returns ErrBanished
//
// Thread-safety & complexity
//
// All Cache and Manager methods are safe for concurrent use. Find/insert/
// remove/banish are amortized O(slotsPerBucket) under their bucket's lock;
// migration is O(table size) and is posted to the configured Executor, or
// runs inline on the requesting goroutine when the Executor does not
// accept it.
package cache
