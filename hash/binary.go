// Package hash provides the two canonical cache.Hasher implementations
// named in spec.md §4.2: a bytewise Binary hasher and a structured
// Structured hasher that canonicalizes tag-prefixed numeric encodings
// before comparing or hashing, mirroring a vpack-aware key space where the
// same logical value may be encoded at more than one width.
package hash

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// Binary hashes and compares keys as opaque byte strings. This is the
// right choice whenever keys are already a stable, canonical encoding
// (UUIDs, pre-hashed document keys, etc).
type Binary struct{}

// NewBinary returns a Binary hasher. It has no state; the constructor
// exists only for symmetry with NewStructured.
func NewBinary() Binary { return Binary{} }

// HashKey returns the lower 32 bits of an xxhash64 digest of key.
func (Binary) HashKey(key []byte) uint32 {
	return uint32(xxhash.Sum64(key))
}

// SameKey compares key bytes exactly.
func (Binary) SameKey(a, b []byte) bool {
	return bytes.Equal(a, b)
}
