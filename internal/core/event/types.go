package event

import (
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
)

// Pos on each event is the world position listeners such as audio use.

type EntityDamaged struct {
	Entity ecs.EntityID
	Source ecs.EntityID
	Amount int
	Pos    geom.Vec3
}

// SectorTriggered is raised when an entity enters a sector with a special.
type SectorTriggered struct {
	Entity  ecs.EntityID
	Sector  level.SectorID
	Special uint16
	Tag     uint16
	Pos     geom.Vec3
}

// LineCrossed is raised when an entity crosses a linedef with a special.
type LineCrossed struct {
	Entity  ecs.EntityID
	Line    level.LinedefID
	Special uint16
	Tag     uint16
	Pos     geom.Vec3
}

// LineActivated is raised when an entity uses a linedef with a special.
type LineActivated struct {
	Entity  ecs.EntityID
	Line    level.LinedefID
	Special uint16
	Tag     uint16
	Pos     geom.Vec3
}

type Impact struct {
	Entity ecs.EntityID
	Line   level.LinedefID
	Pos    geom.Vec3
	Speed  float64
}

type ItemPickedUp struct {
	Entity ecs.EntityID
	Item   ecs.EntityID
	Pos    geom.Vec3
}

// DoorActivated asks every sector tagged Tag to open (or close).
type DoorActivated struct {
	Tag  uint16
	Open bool
	Pos  geom.Vec3
}

type SectorMoveFinished struct {
	Sector level.SectorID
	Pos    geom.Vec3
}

type EntityDestroyed struct {
	Entity ecs.EntityID
}

type LevelChanged struct {
	Name string
}
