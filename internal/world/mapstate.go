// Package world holds the mutable state layered over a loaded level: sector
// heights and light that movers change, dynamically blocking lines, and the
// index of entities by subsector. Accessed only from the simulation
// goroutine, so nothing here takes locks.
package world

import (
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
)

// MapState is the dynamic overlay of one level.Map.
type MapState struct {
	m        *level.Map
	floors   []float64
	ceilings []float64
	light    []float64
	blocking []bool
	movers   []*Mover // by sector, nil when idle
}

func NewMapState(m *level.Map) *MapState {
	s := &MapState{
		m:        m,
		floors:   make([]float64, len(m.Sectors)),
		ceilings: make([]float64, len(m.Sectors)),
		light:    make([]float64, len(m.Sectors)),
		blocking: make([]bool, len(m.Linedefs)),
		movers:   make([]*Mover, len(m.Sectors)),
	}
	for i := range m.Sectors {
		s.floors[i] = m.Sectors[i].Floor
		s.ceilings[i] = m.Sectors[i].Ceiling
		s.light[i] = m.Sectors[i].Light
	}
	return s
}

func (s *MapState) Map() *level.Map { return s.m }

func (s *MapState) FloorHeight(id level.SectorID) float64 { return s.floors[id] }

func (s *MapState) CeilingHeight(id level.SectorID) float64 { return s.ceilings[id] }

func (s *MapState) Light(id level.SectorID) float64 { return s.light[id] }

func (s *MapState) SetFloor(id level.SectorID, z float64) { s.floors[id] = z }

func (s *MapState) SetCeiling(id level.SectorID, z float64) { s.ceilings[id] = z }

func (s *MapState) SetLight(id level.SectorID, l float64) {
	s.light[id] = min(1, max(0, l))
}

// Gap returns the floor-to-ceiling interval of a sector.
func (s *MapState) Gap(id level.SectorID) geom.Interval {
	return geom.Interval{Min: s.floors[id], Max: s.ceilings[id]}
}

// LineBlocking reports a dynamic block placed on a linedef, independent of
// its static flags.
func (s *MapState) LineBlocking(id level.LinedefID) bool { return s.blocking[id] }

func (s *MapState) SetLineBlocking(id level.LinedefID, on bool) { s.blocking[id] = on }

// Opening returns the current vertical opening of a linedef.
func (s *MapState) Opening(id level.LinedefID) geom.Interval {
	return s.m.Opening(s, id)
}

// Closed reports a two-sided line whose opening has shut.
func (s *MapState) Closed(id level.LinedefID) bool {
	if !s.m.Linedefs[id].TwoSided() {
		return false
	}
	return s.Opening(id).Size() <= 0
}
