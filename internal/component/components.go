// Package component defines the data attached to entities.
// Pure data, zero methods; all mutations happen in systems.
package component

import (
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
)

// Transform places an entity; Pos is at its feet.
type Transform struct {
	Pos   geom.Vec3
	Angle float64 // radians, 0 = east
	Pitch float64
}

type Velocity struct {
	V geom.Vec3 // units per tick
}

// Collider is the vertical cylinder used by the collision solver.
type Collider struct {
	Radius    float64
	Height    float64
	Solid     bool
	NoDropOff bool // refuses to step down more than the step height
	Monster   bool // blocked by monster-only lines
}

// Sprite is what the draw list shows for an entity.
type Sprite struct {
	Texture    string
	Frame      int
	FullBright bool
	Width      float64
	Height     float64
}

type Health struct {
	Current int
	Max     int
}

// BehaviorTag selects the behavior unit that thinks for the entity.
type BehaviorTag struct {
	Name string
}

// Location is maintained by the physics stage.
type Location struct {
	Subsector level.SubsectorID
	Sector    level.SectorID
}

// Player marks the entity owning the camera.
type Player struct {
	Number int
}

// Pickup marks an item collected on touch.
type Pickup struct {
	Kind   string
	Amount int
}

// Intent is the movement and action request of one tick. It is written by
// the behavior stage and consumed by the physics stage of the same tick.
type Intent struct {
	Move geom.Vec2 // world-space displacement
	Turn float64
	Jump float64
	Use  bool
	Fire bool
}
