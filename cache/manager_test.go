package cache

import (
	"testing"

	"github.com/ljluestc/arangodb/hash"
)

// S1 — create 8 transactional caches, then destroy them and observe
// spare-pool recycling.
func TestManager_CreateDestroySpareRecycling(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{GlobalLimit: 1 << 20, SpareTableCapacity: 4})

	caches := make([]Cache, 8)
	for i := range caches {
		c, err := m.CreateCache(CreateOptions{Type: Transactional, Hasher: hash.Binary{}})
		if err != nil {
			t.Fatalf("CreateCache[%d]: %v", i, err)
		}
		caches[i] = c
	}

	st := m.Stats()
	if st.ActiveTables != 8 {
		t.Fatalf("activeTables = %d, want 8", st.ActiveTables)
	}
	if st.SpareTables != 0 {
		t.Fatalf("spareTables = %d, want 0", st.SpareTables)
	}
	for i, c := range caches {
		if c.Size() <= 80<<10 {
			t.Fatalf("cache[%d].Size() = %d, want > 80KiB", i, c.Size())
		}
	}

	for _, c := range caches {
		m.DestroyCache(c)
	}

	st = m.Stats()
	if st.ActiveTables != 0 {
		t.Fatalf("activeTables = %d, want 0 after destroy", st.ActiveTables)
	}
	if st.SpareTables == 0 {
		t.Fatal("spareTables = 0, want at least one table recycled")
	}
	if st.SpareTables > 4 {
		t.Fatalf("spareTables = %d exceeds SpareTableCapacity", st.SpareTables)
	}
}

// S6 — no executor configured: background tasks degrade to a synchronous
// best-effort attempt rather than being silently dropped, and flags clear.
func TestManager_NoExecutorStillMakesProgress(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{GlobalLimit: 8 << 20}) // nopExecutor by default
	c, err := m.CreateCache(CreateOptions{Type: Plain, Hasher: hash.Binary{}})
	if err != nil {
		t.Fatalf("CreateCache: %v", err)
	}
	t.Cleanup(func() { m.DestroyCache(c) })

	for i := 0; i < 1<<16; i++ {
		k := keyOf(i)
		if err := c.Insert(k, k); err != nil && err != ErrBusy {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	meta := m.metadataOf(c)
	if meta.isMigrating() {
		t.Fatal("isMigrating() stayed true with no executor")
	}
	if meta.isResizing() {
		t.Fatal("isResizing() stayed true with no executor")
	}
}

func TestManager_RequestGrowRespectsGlobalLimit(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{GlobalLimit: 8 << 20})
	c, err := m.CreateCache(CreateOptions{Type: Plain, Hasher: hash.Binary{}})
	if err != nil {
		t.Fatalf("CreateCache: %v", err)
	}
	t.Cleanup(func() { m.DestroyCache(c) })

	if m.requestGrow(c, 1<<30) {
		t.Fatal("requestGrow should deny a request exceeding the global limit")
	}
}

// requestGrow must actually migrate the table to a larger size, not just
// report whether the budget would allow it.
func TestManager_RequestGrowActuallyGrowsTable(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{GlobalLimit: 8 << 20})
	c, err := m.CreateCache(CreateOptions{Type: Plain, Hasher: hash.Binary{}})
	if err != nil {
		t.Fatalf("CreateCache: %v", err)
	}
	t.Cleanup(func() { m.DestroyCache(c) })

	before := c.Size()
	if !m.requestGrow(c, before*8) {
		t.Fatal("requestGrow should have accepted a request well within the global limit")
	}
	if after := c.Size(); after <= before {
		t.Fatalf("Size() = %d after requestGrow, want > %d", after, before)
	}
}

// Rebalance must actually act on underused caches, not merely compute the
// low-water mark: a cache well below idealLowerRatio×GlobalLimit should see
// its table grow when Rebalance runs.
func TestManager_RebalanceGrowsUnderusedCache(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{GlobalLimit: 4 << 20, IdealLowerRatio: 0.5})
	c, err := m.CreateCache(CreateOptions{Type: Plain, Hasher: hash.Binary{}})
	if err != nil {
		t.Fatalf("CreateCache: %v", err)
	}
	t.Cleanup(func() { m.DestroyCache(c) })

	before := c.Size()
	m.Rebalance()
	if after := c.Size(); after <= before {
		t.Fatalf("Size() = %d after Rebalance, want > %d (an idle cache sits well under idealLowerRatio)", after, before)
	}
}
