package ecs

import "fmt"

// Registry tracks all component stores and supports bulk cleanup on entity destroy.
type Registry struct {
	stores []Column
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]Column, 0, 16),
	}
}

// Register adds a component store to the registry and assigns its id.
func (r *Registry) Register(store Column) ComponentID {
	if len(r.stores) >= MaxComponents {
		panic(fmt.Sprintf("ecs: too many components registering %q", store.Name()))
	}
	id := ComponentID(len(r.stores))
	store.bind(id)
	r.stores = append(r.stores, store)
	return id
}

// Lookup returns the store registered under id.
func (r *Registry) Lookup(id ComponentID) (Column, bool) {
	if int(id) >= len(r.stores) {
		return nil, false
	}
	return r.stores[id], true
}

// Known is the mask of every registered component.
func (r *Registry) Known() Mask {
	if len(r.stores) == MaxComponents {
		return ^Mask(0)
	}
	return Mask(1)<<len(r.stores) - 1
}

// Names renders the components of m for diagnostics.
func (r *Registry) Names(m Mask) []string {
	var out []string
	for _, id := range m.IDs() {
		if s, ok := r.Lookup(id); ok {
			out = append(out, s.Name())
		} else {
			out = append(out, fmt.Sprintf("#%d", id))
		}
	}
	return out
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}
