// Package behavior holds the units that turn input and world state into a
// per-tick Intent for an entity.
package behavior

import (
	"fmt"
	"slices"

	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/input"
)

// Intent is produced by a Behavior and consumed by physics in the same tick.
type Intent = component.Intent

// Behavior decides what an entity wants to do this tick. It reads the world
// through v only; ok false means the entity does nothing.
type Behavior interface {
	Think(v ecs.View, id ecs.EntityID, in input.Snapshot) (Intent, bool)
}

// Func adapts a function to Behavior.
type Func func(v ecs.View, id ecs.EntityID, in input.Snapshot) (Intent, bool)

func (f Func) Think(v ecs.View, id ecs.EntityID, in input.Snapshot) (Intent, bool) {
	return f(v, id, in)
}

// Registry maps behavior tags to units.
type Registry struct {
	units map[string]Behavior
}

func NewRegistry() *Registry {
	return &Registry{units: make(map[string]Behavior)}
}

// Register binds name to b. Registering a name twice is an error.
func (r *Registry) Register(name string, b Behavior) error {
	if _, dup := r.units[name]; dup {
		return fmt.Errorf("behavior %q already registered", name)
	}
	r.units[name] = b
	return nil
}

func (r *Registry) Lookup(name string) (Behavior, bool) {
	b, ok := r.units[name]
	return b, ok
}

// Names returns the registered tags in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.units))
	for n := range r.units {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Idle never moves.
var Idle = Func(func(ecs.View, ecs.EntityID, input.Snapshot) (Intent, bool) {
	return Intent{}, false
})
