package cache

import (
	"fmt"
	"math/rand"
	"runtime"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ljluestc/arangodb/hash"
)

// S4 — four caches shared by 4×GOMAXPROCS workers, mixed find/insert/remove
// over disjoint key ranges. Should pass under -race without detector reports.
func TestRace_MixedWorkload(t *testing.T) {
	m := NewManager(Config{GlobalLimit: 32 << 20})

	const nCaches = 4
	caches := make([]Cache, nCaches)
	for i := range caches {
		c, err := m.CreateCache(CreateOptions{Type: Plain, Hasher: hash.Binary{}})
		if err != nil {
			t.Fatalf("CreateCache: %v", err)
		}
		caches[i] = c
	}
	t.Cleanup(func() {
		for _, c := range caches {
			m.DestroyCache(c)
		}
	})

	deadline := time.Now().Add(500 * time.Millisecond)
	var hitCount, missCount atomic.Uint64

	var g errgroup.Group
	for w := 0; w < 4*runtime.GOMAXPROCS(0); w++ {
		w := w
		g.Go(func() error {
			c := caches[w%nCaches]
			base := w * 1_000_000
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)))
			for time.Now().Before(deadline) {
				key := []byte(strconv.Itoa(base + r.Intn(10_000)))
				switch roll := r.Intn(100); {
				case roll < 95:
					f := c.Find(key)
					if f.Found() {
						hitCount.Add(1)
						if string(f.Value()) != string(key) {
							f.Release()
							return fmt.Errorf("value mismatch for key %q", key)
						}
					} else {
						missCount.Add(1)
					}
					f.Release()
				case roll < 99:
					if err := c.Insert(key, key); err != nil && err != ErrBusy {
						return err
					}
				default:
					if err := c.Remove(key); err != nil && err != ErrNotFound && err != ErrBusy {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	_ = hitCount.Load()
	_ = missCount.Load()
}

// S5 — chaos: repeatedly create and destroy caches; Manager's accounting
// must return to its idle baseline plus whatever the spare pool retains.
func TestRace_ChaosCreateDestroy(t *testing.T) {
	m := NewManager(Config{GlobalLimit: 32 << 20})
	idleAllocation := m.Stats().GlobalAllocation

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for i := 0; i < 256; i++ {
				c, err := m.CreateCache(CreateOptions{Type: Plain, Hasher: hash.Binary{}})
				if err != nil {
					continue
				}
				_ = c.Insert([]byte("k"), []byte("v"))
				m.DestroyCache(c)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	st := m.Stats()
	if st.ActiveTables != 0 {
		t.Fatalf("activeTables = %d, want 0 at quiescence", st.ActiveTables)
	}
	if st.GlobalAllocation != idleAllocation+st.SpareAllocation {
		t.Fatalf("globalAllocation = %d, want idle baseline %d plus spare pool %d", st.GlobalAllocation, idleAllocation, st.SpareAllocation)
	}
}
