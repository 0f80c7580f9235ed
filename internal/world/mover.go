package world

import (
	"math"

	"github.com/sectorgo/engine/internal/level"
)

// Plane selects which surface of a sector a mover drives.
type Plane uint8

const (
	PlaneFloor Plane = iota
	PlaneCeiling
)

func (p Plane) String() string {
	if p == PlaneFloor {
		return "floor"
	}
	return "ceiling"
}

// Mover moves one plane of a sector towards Target by Speed units per tick.
// A sector has at most one mover; starting another replaces it.
type Mover struct {
	Sector level.SectorID
	Plane  Plane
	Target float64
	Speed  float64

	// Hold is the number of ticks to wait at Target before moving to Return.
	// Zero finishes at Target.
	Hold   int
	Return float64

	Hanging bool // set while the move is blocked by an occupant
	holding int
	back    bool
}

// Fits reports whether the sector's occupants fit between floor and ceiling.
type Fits func(sector level.SectorID, floor, ceiling float64) bool

// StartMover installs mv on its sector.
func (s *MapState) StartMover(mv Mover) {
	m := mv
	s.movers[mv.Sector] = &m
}

// MoverOf returns the active mover of a sector, or nil.
func (s *MapState) MoverOf(id level.SectorID) *Mover { return s.movers[id] }

// StepMovers advances every mover by one tick in sector order and returns
// the sectors whose movers finished. A move that narrows the gap is held
// (the mover hangs) while fits rejects the new heights.
func (s *MapState) StepMovers(fits Fits, finished []level.SectorID) []level.SectorID {
	for i, mv := range s.movers {
		if mv == nil {
			continue
		}
		id := level.SectorID(i)
		if mv.holding > 0 {
			mv.holding--
			if mv.holding == 0 {
				mv.Target, mv.back = mv.Return, true
			}
			continue
		}

		cur := s.floors[id]
		if mv.Plane == PlaneCeiling {
			cur = s.ceilings[id]
		}
		next := approach(cur, mv.Target, mv.Speed)
		floor, ceil := s.floors[id], s.ceilings[id]
		if mv.Plane == PlaneFloor {
			floor = next
		} else {
			ceil = next
		}
		narrowing := (mv.Plane == PlaneFloor && next > cur) || (mv.Plane == PlaneCeiling && next < cur)
		if narrowing && fits != nil && !fits(id, floor, ceil) {
			mv.Hanging = true
			continue
		}
		mv.Hanging = false
		s.SetFloor(id, floor)
		s.SetCeiling(id, ceil)

		if next != mv.Target {
			continue
		}
		if mv.Hold > 0 && !mv.back {
			mv.holding = mv.Hold
			continue
		}
		s.movers[i] = nil
		finished = append(finished, id)
	}
	return finished
}

func approach(cur, target, speed float64) float64 {
	d := target - cur
	if math.Abs(d) <= speed {
		return target
	}
	if d > 0 {
		return cur + speed
	}
	return cur - speed
}
