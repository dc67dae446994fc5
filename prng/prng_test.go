package prng

import "testing"

func TestDefault_ProducesVaryingValues(t *testing.T) {
	var d Default
	seen := make(map[uint64]struct{})
	for i := 0; i < 64; i++ {
		seen[d.Uint64()] = struct{}{}
	}
	if len(seen) < 32 {
		t.Fatalf("expected mostly-distinct values, got %d distinct out of 64", len(seen))
	}
}
