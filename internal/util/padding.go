package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs. The runtime
// package's own constant is unexported, so this is our copy.
const CacheLineSize = 64

// CacheLinePad separates groups of hot fields onto distinct cache lines to
// reduce false sharing. Place between groups of fields updated by different
// goroutines.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedAtomicInt64 is an atomic int64 padded to exactly one cache line.
// Used for the Manager's global allocation counter, which every cache's
// create/destroy path updates.
type PaddedAtomicInt64 struct {
	atomic.Int64
	_ [CacheLineSize - 8]byte
}

// PaddedAtomicUint64 is the uint64 counterpart of PaddedAtomicInt64. Used
// for per-cache hit/miss/insert/eviction counters that many goroutines
// update concurrently.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

var (
	_ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicInt64{}))]byte
	_ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
)
