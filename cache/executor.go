package cache

// Executor dispatches background work without the cache subsystem owning
// any threads itself: Manager is handed one at construction and posts
// FreeMemoryTask/MigrateTask closures to it. Post returns false if the
// closure was not scheduled (queue full, executor shut down); the caller
// must then fall back to a best-effort synchronous attempt or abandon the
// request, per spec.md §6.
type Executor interface {
	Post(fn func()) bool
}

// nopExecutor never schedules anything; Manager falls back to it when
// constructed with a nil Executor, matching spec.md §6's "a null/false-
// returning callback disables background tasks" clause.
type nopExecutor struct{}

func (nopExecutor) Post(func()) bool { return false }
