package strict

import (
	"fmt"
	"slices"
)

// WriteSet16 writes items as a u16-counted set: sorted by cmp with
// duplicates removed. items is not modified.
func WriteSet16[T any](w *Writer, items []T, cmp func(a, b T) int, enc func(*Writer, T)) {
	set := SortedSet(items, cmp)
	w.Len16(len(set))
	for _, it := range set {
		enc(w, it)
	}
}

// ReadSet16 reads a u16-counted set and rejects elements that are not in
// strictly ascending order.
func ReadSet16[T any](r *Reader, minElemSize int, cmp func(a, b T) int, dec func(*Reader) T) []T {
	n := r.Count16(minElemSize)
	if n == 0 {
		return nil
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v := dec(r)
		if r.Err() != nil {
			return nil
		}
		if i > 0 && cmp(out[i-1], v) >= 0 {
			r.Fail(fmt.Errorf("%w: element %d", ErrUnsortedSet, i))
			return nil
		}
		out = append(out, v)
	}
	return out
}

// SortedSet returns a sorted copy of items without duplicates.
func SortedSet[T any](items []T, cmp func(a, b T) int) []T {
	if len(items) == 0 {
		return nil
	}
	set := slices.Clone(items)
	slices.SortFunc(set, cmp)
	return slices.CompactFunc(set, func(a, b T) bool { return cmp(a, b) == 0 })
}
