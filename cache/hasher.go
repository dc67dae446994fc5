package cache

// Hasher is the capability a caller supplies when creating a cache. The
// cache core is polymorphic over any Hasher — concrete providers (bytewise,
// structured/vpack-aware) live in package hash.
type Hasher interface {
	// HashKey returns a 32-bit hash of key.
	HashKey(key []byte) uint32
	// SameKey reports whether a and b denote the same logical key. Two keys
	// with different byte representations may still be the same key (e.g.
	// a structured hasher that canonicalizes numeric encodings).
	SameKey(a, b []byte) bool
}
