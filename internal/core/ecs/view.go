package ecs

import (
	"fmt"
	"iter"
)

// Access declares the components a system reads and writes. Writes imply
// reads.
type Access struct {
	Reads  Mask
	Writes Mask
}

func (a Access) All() Mask { return a.Reads | a.Writes }

// View is a World handle restricted to an Access. Using a component outside
// the declaration panics; the schedule validates declarations up front, so a
// panic here means the system's Access is out of date with its code.
type View struct {
	w      *World
	access Access
	owner  string
}

// View binds an access declaration for the system named owner.
func (w *World) View(owner string, a Access) View {
	return View{w: w, access: a, owner: owner}
}

func (v View) World() *World  { return v.w }
func (v View) Access() Access { return v.access }

func (v View) Alive(id EntityID) bool { return v.w.Alive(id) }

func (v View) check(m Mask, write bool) {
	allowed := v.access.All()
	verb := "read"
	if write {
		allowed = v.access.Writes
		verb = "write"
	}
	if !allowed.Contains(m) {
		panic(fmt.Sprintf("ecs: system %q may not %s %v", v.owner, verb, v.w.registry.Names(m&^allowed)))
	}
}

// Query is World.Query limited to declared components.
func (v View) Query(mask Mask) iter.Seq[EntityID] {
	v.check(mask, false)
	return v.w.Query(mask)
}

// Read returns a copy of the component of id.
func Read[T any](v View, s *Store[T], id EntityID) (T, bool) {
	v.check(s.Mask(), false)
	p, ok := s.Get(id)
	if !ok {
		var zero T
		return zero, false
	}
	return *p, true
}

// Write returns a pointer to the component of id. The pointer must not
// outlive the current system update.
func Write[T any](v View, s *Store[T], id EntityID) (*T, bool) {
	v.check(s.Mask(), true)
	return s.Get(id)
}

// Insert adds or replaces the component of id.
func Insert[T any](v View, s *Store[T], id EntityID, c T) {
	v.check(s.Mask(), true)
	s.Set(id, c)
}

// Delete removes the component of id.
func Delete[T any](v View, s *Store[T], id EntityID) {
	v.check(s.Mask(), true)
	s.Remove(id)
}

// Destroy queues id for destruction at the end of the tick.
func (v View) Destroy(id EntityID) { v.w.MarkForDestruction(id) }
