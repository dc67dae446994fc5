package util

import "testing"

func TestLogSize(t *testing.T) {
	cases := map[uint64]uint32{
		0:     0,
		1:     0,
		2:     1,
		3:     2,
		16384: 14,
		16385: 15,
	}
	for in, want := range cases {
		if got := LogSize(in); got != want {
			t.Errorf("LogSize(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, x := range []uint64{1, 2, 4, 16384} {
		if !IsPowerOfTwo(x) {
			t.Errorf("IsPowerOfTwo(%d) = false, want true", x)
		}
	}
	for _, x := range []uint64{0, 3, 5, 16383} {
		if IsPowerOfTwo(x) {
			t.Errorf("IsPowerOfTwo(%d) = true, want false", x)
		}
	}
}
