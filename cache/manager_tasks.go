package cache

// migrateTask and freeMemoryTask are value objects the Manager posts to its
// Executor. Each carries a handle obtained from the Manager registry at
// schedule time, never an owning reference that would keep a destroyed
// cache reachable (spec.md §9's "self-referential scheduling"); they never
// re-enter the Manager's lock, since Post may fall back to running
// synchronously from inside a call that already holds it.
type migrateTask struct {
	manager    *Manager
	cache      Cache
	newLogSize uint32
}

func (t migrateTask) run() {
	meta := t.manager.metadataOf(t.cache)
	if meta == nil {
		return
	}
	defer meta.clearFlag(flagMigrating)

	_ = t.cache.runMigration(t.newLogSize)
}

// freeMemoryTask implements FreeMemoryTask from spec.md §4.8: evict entries
// until usage falls to target, re-enqueuing itself if more work remains.
type freeMemoryTask struct {
	manager *Manager
	cache   Cache
	target  uint64
}

func (t freeMemoryTask) run() {
	meta := t.manager.metadataOf(t.cache)
	if meta == nil {
		return
	}

	t.cache.freeMemoryWhile(func() bool { return t.cache.Usage() > t.target })

	if t.cache.Usage() > t.target {
		if t.manager.cfg.Executor.Post(t.run) {
			return
		}
	}
	meta.clearFlag(flagResizing)
}
