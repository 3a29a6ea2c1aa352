// Package buffer holds small generic containers shared by the logger and the
// event bus.
package buffer

// Ring keeps the newest entries up to a fixed capacity. It is not safe for
// concurrent use; callers guard it.
type Ring[T any] struct {
	slots []T
	next  int
	full  bool
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{slots: make([]T, capacity)}
}

// Add stores entry, overwriting the oldest one once the ring is full.
func (r *Ring[T]) Add(entry T) {
	if r == nil || len(r.slots) == 0 {
		return
	}
	r.slots[r.next] = entry
	r.next++
	if r.next == len(r.slots) {
		r.next = 0
		r.full = true
	}
}

func (r *Ring[T]) Len() int {
	if r == nil {
		return 0
	}
	if r.full {
		return len(r.slots)
	}
	return r.next
}

func (r *Ring[T]) Cap() int {
	if r == nil {
		return 0
	}
	return len(r.slots)
}

// List returns every retained entry, oldest first.
func (r *Ring[T]) List() []T {
	return r.Last(r.Len())
}

// Last returns up to n of the newest entries, oldest first.
func (r *Ring[T]) Last(n int) []T {
	size := r.Len()
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	start := r.next - n
	if start < 0 {
		start += len(r.slots)
	}
	for i := range out {
		out[i] = r.slots[(start+i)%len(r.slots)]
	}
	return out
}
