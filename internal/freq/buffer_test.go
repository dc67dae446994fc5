package freq

import (
	"testing"

	"github.com/ljluestc/arangodb/prng"
)

func TestBuffer_FrequenciesTracksInsertedEvents(t *testing.T) {
	b := New[uint8](64, prng.Default{})
	for i := 0; i < 2000; i++ {
		b.Insert(1)
	}
	freqs := b.Frequencies()
	if len(freqs) != 1 {
		t.Fatalf("expected a single distinct event, got %d", len(freqs))
	}
	if freqs[0].Event != 1 || freqs[0].Count != 64 {
		t.Fatalf("expected event 1 to fill all 64 slots, got %+v", freqs[0])
	}
}

func TestBuffer_MixedEventsSumToCapacity(t *testing.T) {
	b := New[uint8](128, prng.Default{})
	for i := 0; i < 10000; i++ {
		if i%3 == 0 {
			b.Insert(1)
		} else {
			b.Insert(0)
		}
	}
	total := 0
	for _, s := range b.Frequencies() {
		total += s.Count
	}
	if total != 128 {
		t.Fatalf("expected counts to sum to capacity 128, got %d", total)
	}
}

func TestBuffer_CapacityClampedToOne(t *testing.T) {
	b := New[int](0, prng.Default{})
	if b.Capacity() != 1 {
		t.Fatalf("expected capacity clamped to 1, got %d", b.Capacity())
	}
}
