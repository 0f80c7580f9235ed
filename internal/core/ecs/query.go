package ecs

import (
	"iter"
	"slices"
)

// Query yields the live entities holding every component of mask in
// ascending EntityID order. An empty mask matches every live entity. The
// result is collected before the first yield, so the callback may add or
// remove components.
func (w *World) Query(mask Mask) iter.Seq[EntityID] {
	ids := w.collect(mask, nil)
	return func(yield func(EntityID) bool) {
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// AppendQuery appends the Query result to buf.
func (w *World) AppendQuery(mask Mask, buf []EntityID) []EntityID {
	return w.collect(mask, buf)
}

func (w *World) collect(mask Mask, buf []EntityID) []EntityID {
	start := len(buf)
	if mask == 0 {
		for i := 0; i < w.pool.Capacity(); i++ {
			if id, ok := w.pool.At(uint32(i)); ok && !w.dying[i] {
				buf = append(buf, id)
			}
		}
		return buf
	}

	// Drive from the smallest column.
	cols := make([]Column, 0, mask.Count())
	for _, cid := range mask.IDs() {
		c, ok := w.registry.Lookup(cid)
		if !ok {
			return buf
		}
		cols = append(cols, c)
	}
	slices.SortFunc(cols, func(a, b Column) int { return a.Len() - b.Len() })

next:
	for _, id := range cols[0].Entities() {
		if w.dying[id.Index()] {
			continue
		}
		for _, c := range cols[1:] {
			if !c.Has(id) {
				continue next
			}
		}
		buf = append(buf, id)
	}
	slices.Sort(buf[start:])
	return buf
}

// Each2 iterates over entities that have both component A and B, in
// ascending id order.
func Each2[A, B any](w *World, sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	for id := range w.Query(sa.Mask() | sb.Mask()) {
		a, okA := sa.Get(id)
		b, okB := sb.Get(id)
		if okA && okB {
			fn(id, a, b)
		}
	}
}

// Each3 iterates over entities that have components A, B, and C.
func Each3[A, B, C any](w *World, sa *Store[A], sb *Store[B], sc *Store[C], fn func(EntityID, *A, *B, *C)) {
	for id := range w.Query(sa.Mask() | sb.Mask() | sc.Mask()) {
		a, okA := sa.Get(id)
		b, okB := sb.Get(id)
		c, okC := sc.Get(id)
		if okA && okB && okC {
			fn(id, a, b, c)
		}
	}
}
