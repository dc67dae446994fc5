package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Tag values a Structured key's first byte may carry. A key with any other
// leading byte is treated as an opaque string and compared bytewise.
const (
	TagString byte = 0x00
	TagUint8  byte = 0x01
	TagUint16 byte = 0x02
	TagUint32 byte = 0x03
	TagUint64 byte = 0x04
)

// Structured hashes and compares tag-prefixed keys the way a vpack-aware
// document store does: a numeric value encoded at two different widths
// (e.g. uint16(7) vs uint64(7)) is canonicalized to the same 8-byte
// big-endian form before hashing or comparison, so it is treated as the
// same logical key regardless of which width produced it.
type Structured struct{}

// NewStructured returns a Structured hasher.
func NewStructured() Structured { return Structured{} }

// HashKey canonicalizes key (if it carries a recognized numeric tag) and
// hashes the result with xxhash.
func (Structured) HashKey(key []byte) uint32 {
	return uint32(xxhash.Sum64(canonicalize(key)))
}

// SameKey canonicalizes both sides before comparing.
func (Structured) SameKey(a, b []byte) bool {
	ca, cb := canonicalize(a), canonicalize(b)
	if len(ca) != len(cb) {
		return false
	}
	for i := range ca {
		if ca[i] != cb[i] {
			return false
		}
	}
	return true
}

// canonicalize rewrites a tag-prefixed numeric key to a fixed 9-byte form
// (TagUint64 + 8 big-endian bytes). Untagged or unrecognized keys pass
// through unchanged.
func canonicalize(key []byte) []byte {
	if len(key) == 0 {
		return key
	}
	var v uint64
	switch key[0] {
	case TagUint8:
		if len(key) < 2 {
			return key
		}
		v = uint64(key[1])
	case TagUint16:
		if len(key) < 3 {
			return key
		}
		v = uint64(binary.BigEndian.Uint16(key[1:3]))
	case TagUint32:
		if len(key) < 5 {
			return key
		}
		v = uint64(binary.BigEndian.Uint32(key[1:5]))
	case TagUint64:
		if len(key) < 9 {
			return key
		}
		return key[:9]
	default:
		return key
	}
	out := make([]byte, 9)
	out[0] = TagUint64
	binary.BigEndian.PutUint64(out[1:], v)
	return out
}
