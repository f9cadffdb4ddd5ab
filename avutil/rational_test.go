//go:build !ios && !android && (amd64 || arm64)

package avutil

import (
	"testing"
)

func TestRationalFloat64(t *testing.T) {
	if got := NewRational(1, 30).Float64(); got < 0.0333 || got > 0.0334 {
		t.Fatalf("1/30 = %f", got)
	}
	if got := NewRational(5, 0).Float64(); got != 0 {
		t.Fatalf("division by zero should yield 0, got %f", got)
	}
}

func TestRationalReduce(t *testing.T) {
	r := NewRational(30000, 1001).Reduce()
	if r.Num != 30000 || r.Den != 1001 {
		t.Fatalf("already reduced: got %d/%d", r.Num, r.Den)
	}
	r = NewRational(10, 30).Reduce()
	if r.Num != 1 || r.Den != 3 {
		t.Fatalf("10/30: got %d/%d", r.Num, r.Den)
	}
}

func TestRescaleQ(t *testing.T) {
	cases := []struct {
		a        int64
		from, to Rational
		want     int64
	}{
		// Frame counter at 30 fps into an mp4-style 1/15360 tick.
		{0, NewRational(1, 30), NewRational(1, 15360), 0},
		{1, NewRational(1, 30), NewRational(1, 15360), 512},
		{89, NewRational(1, 30), NewRational(1, 15360), 45568},
		// Microseconds to 1/48000 audio ticks, rounding to nearest.
		{1000000, NewRational(1, 1000000), NewRational(1, 48000), 48000},
		{10, NewRational(1, 1000000), NewRational(1, 48000), 0},
		// Negative timestamps round symmetrically.
		{-1000000, NewRational(1, 1000000), NewRational(1, 48000), -48000},
		// Identity.
		{1234, NewRational(1, 90000), NewRational(1, 90000), 1234},
	}
	for _, tc := range cases {
		if got := RescaleQ(tc.a, tc.from, tc.to); got != tc.want {
			t.Errorf("RescaleQ(%d, %d/%d -> %d/%d) = %d, want %d",
				tc.a, tc.from.Num, tc.from.Den, tc.to.Num, tc.to.Den, got, tc.want)
		}
	}
}

func TestRescaleQDegenerate(t *testing.T) {
	if got := RescaleQ(100, Rational{}, NewRational(1, 30)); got != 0 {
		t.Fatalf("zero source base: got %d", got)
	}
	if got := RescaleQ(100, NewRational(1, 30), Rational{}); got != 0 {
		t.Fatalf("zero target base: got %d", got)
	}
}
