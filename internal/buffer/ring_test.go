package buffer

import (
	"reflect"
	"testing"
)

func TestRingKeepsNewestEntries(t *testing.T) {
	ring := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		ring.Add(i)
	}
	if got := ring.List(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Fatalf("expected [3 4 5], got %v", got)
	}
	if ring.Len() != 3 || ring.Cap() != 3 {
		t.Fatalf("expected len 3 cap 3, got %d/%d", ring.Len(), ring.Cap())
	}
}

func TestRingLast(t *testing.T) {
	ring := NewRing[string](4)
	for _, value := range []string{"a", "b", "c", "d", "e", "f"} {
		ring.Add(value)
	}
	cases := []struct {
		n    int
		want []string
	}{
		{n: 0, want: nil},
		{n: 1, want: []string{"f"}},
		{n: 3, want: []string{"d", "e", "f"}},
		{n: 10, want: []string{"c", "d", "e", "f"}},
	}
	for _, tc := range cases {
		if got := ring.Last(tc.n); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Last(%d): expected %v, got %v", tc.n, tc.want, got)
		}
	}
}

func TestRingPartiallyFilled(t *testing.T) {
	ring := NewRing[int](5)
	ring.Add(1)
	ring.Add(2)
	if got := ring.Last(5); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("expected [1 2], got %v", got)
	}
}

func TestRingNilIsEmpty(t *testing.T) {
	var ring *Ring[string]
	ring.Add("ignored")
	if ring.Len() != 0 || ring.List() != nil || ring.Cap() != 0 {
		t.Fatalf("expected nil ring to stay empty")
	}
}
