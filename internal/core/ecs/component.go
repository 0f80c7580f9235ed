package ecs

import "math/bits"

// ComponentID is assigned by the registry when a store is registered.
type ComponentID uint8

// MaxComponents bounds the number of registered stores; a Mask holds one bit
// per component.
const MaxComponents = 64

// Mask is a set of component ids.
type Mask uint64

func MaskOf(ids ...ComponentID) Mask {
	var m Mask
	for _, id := range ids {
		m |= 1 << id
	}
	return m
}

func (m Mask) Has(id ComponentID) bool { return m&(1<<id) != 0 }

// Contains reports whether every component of o is in m.
func (m Mask) Contains(o Mask) bool { return m&o == o }

func (m Mask) Count() int { return bits.OnesCount64(uint64(m)) }

// IDs lists the components of m in ascending order.
func (m Mask) IDs() []ComponentID {
	out := make([]ComponentID, 0, m.Count())
	for v := uint64(m); v != 0; v &= v - 1 {
		out = append(out, ComponentID(bits.TrailingZeros64(v)))
	}
	return out
}

// Column is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy and queries can
// test membership without knowing the component type.
type Column interface {
	ID() ComponentID
	Name() string
	Has(id EntityID) bool
	Remove(id EntityID)
	Len() int
	Entities() []EntityID
	bind(id ComponentID)
}

// Store is a sparse-set column: a dense array of values parallel to a dense
// array of owners, plus a sparse index by entity index. Pointers returned by
// Get are valid until the next Set or Remove on the same store.
type Store[T any] struct {
	id     ComponentID
	name   string
	sparse []int32 // entity index -> dense position + 1
	dense  []EntityID
	data   []T
}

func NewStore[T any](name string) *Store[T] {
	return &Store[T]{
		name:  name,
		dense: make([]EntityID, 0, 256),
		data:  make([]T, 0, 256),
	}
}

func (s *Store[T]) ID() ComponentID      { return s.id }
func (s *Store[T]) Name() string         { return s.name }
func (s *Store[T]) Mask() Mask           { return 1 << s.id }
func (s *Store[T]) bind(id ComponentID)  { s.id = id }
func (s *Store[T]) Len() int             { return len(s.dense) }
func (s *Store[T]) Entities() []EntityID { return s.dense }

func (s *Store[T]) pos(id EntityID) int {
	idx := int(id.Index())
	if idx >= len(s.sparse) {
		return -1
	}
	p := int(s.sparse[idx]) - 1
	if p < 0 || s.dense[p] != id {
		return -1
	}
	return p
}

func (s *Store[T]) Set(id EntityID, c T) {
	if p := s.pos(id); p >= 0 {
		s.data[p] = c
		return
	}
	idx := int(id.Index())
	for idx >= len(s.sparse) {
		s.sparse = append(s.sparse, 0)
	}
	s.dense = append(s.dense, id)
	s.data = append(s.data, c)
	s.sparse[idx] = int32(len(s.dense))
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	p := s.pos(id)
	if p < 0 {
		return nil, false
	}
	return &s.data[p], true
}

func (s *Store[T]) Has(id EntityID) bool {
	return s.pos(id) >= 0
}

func (s *Store[T]) Remove(id EntityID) {
	p := s.pos(id)
	if p < 0 {
		return
	}
	last := len(s.dense) - 1
	if p != last {
		s.dense[p] = s.dense[last]
		s.data[p] = s.data[last]
		s.sparse[s.dense[p].Index()] = int32(p + 1)
	}
	var zero T
	s.data[last] = zero
	s.dense = s.dense[:last]
	s.data = s.data[:last]
	s.sparse[id.Index()] = 0
}

// Clear removes every entry.
func (s *Store[T]) Clear() {
	for _, id := range s.dense {
		s.sparse[id.Index()] = 0
	}
	clear(s.data)
	s.dense = s.dense[:0]
	s.data = s.data[:0]
}
