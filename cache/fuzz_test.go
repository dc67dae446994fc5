package cache

import (
	"strings"
	"testing"

	"github.com/ljluestc/arangodb/hash"
)

// Fuzz PlainCache's insert/find/remove round trip under arbitrary byte
// strings. Guards against panics and checks the same invariants the
// table-driven tests assert under fixed inputs.
func FuzzPlainCache_InsertFindRemove(f *testing.F) {
	f.Add("", "")
	f.Add("a", "1")
	f.Add("b", "2")
	f.Add("αβγ", "δ")
	f.Add("emoji🙂", "🙂🙂")
	f.Add("long", strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, k, v string) {
		const limit = 1 << 12
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}
		key, value := []byte(k), []byte(v)

		m := NewManager(Config{GlobalLimit: 8 << 20})
		c, err := m.CreateCache(CreateOptions{Type: Plain, Hasher: hash.Binary{}})
		if err != nil {
			t.Fatalf("CreateCache: %v", err)
		}
		defer m.DestroyCache(c)

		if err := c.Insert(key, value); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		found := c.Find(key)
		if !found.Found() {
			t.Fatalf("Find after Insert: want hit")
		}
		if string(found.Value()) != v {
			t.Fatalf("Find after Insert: want %q, got %q", v, found.Value())
		}
		found.Release()

		if err := c.Remove(key); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if f := c.Find(key); f.Found() {
			t.Fatal("Find after Remove: want miss")
		}
		if err := c.Remove(key); err != ErrNotFound {
			t.Fatalf("Remove again: want ErrNotFound, got %v", err)
		}

		// Insert must work again after a clean removal.
		if err := c.Insert(key, value); err != nil {
			t.Fatalf("Insert after Remove: %v", err)
		}
	})
}

// Fuzz TransactionalCache's banish/insert interaction after an insert/find
// round trip: insert, find, banish, find-miss, insert rejected as banished.
func FuzzTransactionalCache_BanishInsertFind(f *testing.F) {
	f.Add("", "")
	f.Add("a", "1")
	f.Add("poison", "v1")
	f.Add("emoji🙂", "🙂🙂")
	f.Add("long", strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, k, v string) {
		const limit = 1 << 12
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}
		key, value := []byte(k), []byte(v)

		m := NewManager(Config{GlobalLimit: 8 << 20})
		c, err := m.CreateCache(CreateOptions{Type: Transactional, Hasher: hash.Binary{}})
		if err != nil {
			t.Fatalf("CreateCache: %v", err)
		}
		defer m.DestroyCache(c)

		if err := c.Insert(key, value); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		found := c.Find(key)
		if !found.Found() {
			t.Fatalf("Find after Insert: want hit")
		}
		found.Release()

		if err := c.Banish(key); err != nil {
			t.Fatalf("Banish: %v", err)
		}
		if f := c.Find(key); f.Found() {
			t.Fatal("Find after Banish: want miss")
		}
		if err := c.Insert(key, value); err != ErrBanished {
			t.Fatalf("Insert after Banish: want ErrBanished, got %v", err)
		}
	})
}
