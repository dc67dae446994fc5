package spinlock

import (
	"sync"
	"testing"
)

func TestRW_ExclusiveExcludesExclusive(t *testing.T) {
	var l RW
	if !l.TryLock() {
		t.Fatal("expected first TryLock to succeed")
	}
	if l.TryLock() {
		t.Fatal("expected second TryLock to fail while held")
	}
	l.Unlock()
	if !l.TryLock() {
		t.Fatal("expected TryLock to succeed after Unlock")
	}
	l.Unlock()
}

func TestRW_SharedAllowsMultipleReaders(t *testing.T) {
	var l RW
	if !l.TryRLock() {
		t.Fatal("first RLock failed")
	}
	if !l.TryRLock() {
		t.Fatal("second concurrent RLock failed")
	}
	if l.TryLock() {
		t.Fatal("exclusive lock should not succeed while readers hold the lock")
	}
	l.RUnlock()
	l.RUnlock()
	if !l.TryLock() {
		t.Fatal("exclusive lock should succeed once all readers release")
	}
}

func TestRW_LockBoundedTriesFails(t *testing.T) {
	var l RW
	l.TryLock() // held forever in this test
	if l.Lock(5) {
		t.Fatal("expected bounded Lock to fail while held")
	}
}

func TestRW_ConcurrentExclusiveIsSerialized(t *testing.T) {
	var l RW
	var counter int
	var wg sync.WaitGroup
	const goroutines = 32
	const perGoroutine = 1000
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if l.Lock(Unlimited) {
					counter++
					l.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	if counter != goroutines*perGoroutine {
		t.Fatalf("lost updates under contention: got %d want %d", counter, goroutines*perGoroutine)
	}
}
