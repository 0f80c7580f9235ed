package system

import (
	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/core/event"
	coresys "github.com/sectorgo/engine/internal/core/system"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/world"
)

// SectorConfig tunes door and lift movement. Speeds are units per tick,
// waits are ticks.
type SectorConfig struct {
	DoorSpeed float64 `toml:"door_speed"`
	DoorWait  int     `toml:"door_wait"`
	LiftSpeed float64 `toml:"lift_speed"`
	LiftWait  int     `toml:"lift_wait"`
	// DoorGap is left between an open door and the lowest neighbouring
	// ceiling.
	DoorGap float64 `toml:"door_gap"`
}

func DefaultSectorConfig() SectorConfig {
	return SectorConfig{DoorSpeed: 2, DoorWait: 150, LiftSpeed: 4, LiftWait: 105, DoorGap: 4}
}

type lineAction uint8

const (
	actDoor lineAction = iota + 1 // open, wait, close
	actDoorOpen
	actDoorClose
	actLift
	actFloorRaiseNext
	actFloorRaiseCeiling
	actFloorLowerHighest
)

type lineSpecial struct {
	use bool // triggered by use rather than by crossing
	act lineAction
}

// lineSpecials are the classic linedef specials the engine understands.
var lineSpecials = map[uint16]lineSpecial{
	1:   {use: true, act: actDoor},
	2:   {act: actDoorOpen},
	3:   {act: actDoorClose},
	5:   {act: actFloorRaiseCeiling},
	18:  {use: true, act: actFloorRaiseNext},
	19:  {act: actFloorLowerHighest},
	62:  {use: true, act: actLift},
	88:  {act: actLift},
	102: {use: true, act: actFloorLowerHighest},
}

// SpecialSystem turns used and crossed special lines into sector actions.
// Doors go through DoorActivated; lifts and floors start movers directly.
// Events are collected during a flush and acted on in the next physics
// phase. Phase 2 (Physics).
type SpecialSystem struct {
	cfg     SectorConfig
	pending []trigger
}

type trigger struct {
	use     bool
	line    level.LinedefID
	special uint16
	tag     uint16
	pos     geom.Vec3
}

func NewSpecialSystem(bus *event.Bus, cfg SectorConfig) *SpecialSystem {
	s := &SpecialSystem{cfg: cfg}
	event.Subscribe(bus, func(e event.LineActivated) {
		s.pending = append(s.pending, trigger{use: true, line: e.Line, special: e.Special, tag: e.Tag, pos: e.Pos})
	})
	event.Subscribe(bus, func(e event.LineCrossed) {
		s.pending = append(s.pending, trigger{line: e.Line, special: e.Special, tag: e.Tag, pos: e.Pos})
	})
	return s
}

func (s *SpecialSystem) Name() string         { return "specials" }
func (s *SpecialSystem) Phase() coresys.Phase { return coresys.PhasePhysics }
func (s *SpecialSystem) Access() ecs.Access   { return ecs.Access{} }

func (s *SpecialSystem) Update(ctx *coresys.Context, _ ecs.View) {
	for _, tr := range s.pending {
		sp, ok := lineSpecials[tr.special]
		if !ok || sp.use != tr.use {
			continue
		}
		switch sp.act {
		case actDoor, actDoorOpen, actDoorClose:
			if tr.tag == 0 {
				// Manual door: the sector behind the line.
				if _, back := ctx.Map.LineSectors(tr.line); back != level.NoSector && sp.act != actDoorClose {
					openDoor(ctx.Map, ctx.MapState, back, s.cfg, sp.act != actDoorOpen)
				}
				continue
			}
			event.Emit(ctx.Bus, event.DoorActivated{Tag: tr.tag, Open: sp.act != actDoorClose, Pos: tr.pos})
		default:
			for _, sec := range ctx.Map.SectorsWithTag(tr.tag) {
				s.floor(ctx, sec, sp.act)
			}
		}
	}
	s.pending = s.pending[:0]
}

func (s *SpecialSystem) floor(ctx *coresys.Context, sec level.SectorID, act lineAction) {
	m, st := ctx.Map, ctx.MapState
	if st.MoverOf(sec) != nil {
		return
	}
	cur := st.FloorHeight(sec)
	switch act {
	case actLift:
		low, ok := m.LowestNeighbourFloor(st, sec)
		if !ok || low >= cur {
			return
		}
		st.StartMover(world.Mover{Sector: sec, Plane: world.PlaneFloor, Target: low, Speed: s.cfg.LiftSpeed, Hold: s.cfg.LiftWait, Return: cur})
	case actFloorRaiseNext:
		next, ok := m.LowestNeighbourFloorAbove(st, sec, cur)
		if !ok {
			return
		}
		st.StartMover(world.Mover{Sector: sec, Plane: world.PlaneFloor, Target: next, Speed: s.cfg.LiftSpeed})
	case actFloorLowerHighest:
		high, ok := m.HighestNeighbourFloor(st, sec)
		if !ok || high >= cur {
			return
		}
		st.StartMover(world.Mover{Sector: sec, Plane: world.PlaneFloor, Target: high, Speed: s.cfg.LiftSpeed})
	case actFloorRaiseCeiling:
		top, ok := m.LowestNeighbourCeiling(st, sec)
		if !ok {
			return
		}
		top = min(top, st.CeilingHeight(sec))
		if top <= cur {
			return
		}
		st.StartMover(world.Mover{Sector: sec, Plane: world.PlaneFloor, Target: top, Speed: s.cfg.LiftSpeed})
	}
}

// DoorSystem applies DoorActivated: the tagged sectors' ceilings start
// moving and dynamic blocking of the lines bounding those sectors follows
// the request. Trigger lines elsewhere keep their state. Phase 2 (Physics).
type DoorSystem struct {
	cfg     SectorConfig
	pending []event.DoorActivated
}

func NewDoorSystem(bus *event.Bus, cfg SectorConfig) *DoorSystem {
	s := &DoorSystem{cfg: cfg}
	event.Subscribe(bus, func(e event.DoorActivated) { s.pending = append(s.pending, e) })
	return s
}

func (s *DoorSystem) Name() string         { return "doors" }
func (s *DoorSystem) Phase() coresys.Phase { return coresys.PhasePhysics }
func (s *DoorSystem) Access() ecs.Access   { return ecs.Access{} }

func (s *DoorSystem) Update(ctx *coresys.Context, _ ecs.View) {
	for _, e := range s.pending {
		for _, sec := range ctx.Map.SectorsWithTag(e.Tag) {
			for _, id := range ctx.Map.LinesOfSector(sec) {
				if ctx.Map.Linedefs[id].TwoSided() {
					ctx.MapState.SetLineBlocking(id, !e.Open)
				}
			}
			if e.Open {
				openDoor(ctx.Map, ctx.MapState, sec, s.cfg, true)
				continue
			}
			ctx.MapState.StartMover(world.Mover{
				Sector: sec, Plane: world.PlaneCeiling,
				Target: ctx.MapState.FloorHeight(sec), Speed: s.cfg.DoorSpeed,
			})
		}
		ctx.Log.Debug("door activated", zap.Uint16("tag", e.Tag), zap.Bool("open", e.Open))
	}
	s.pending = s.pending[:0]
}

// openDoor raises a sector's ceiling to just below its lowest neighbouring
// ceiling; with wait set it closes again after DoorWait ticks. A door that
// is already moving up is left alone.
func openDoor(m *level.Map, st *world.MapState, sec level.SectorID, cfg SectorConfig, wait bool) {
	top, ok := m.LowestNeighbourCeiling(st, sec)
	if !ok {
		return
	}
	top -= cfg.DoorGap
	if top <= st.CeilingHeight(sec) && st.MoverOf(sec) == nil {
		return
	}
	if mv := st.MoverOf(sec); mv != nil && mv.Plane == world.PlaneCeiling && mv.Target == top {
		return
	}
	mv := world.Mover{Sector: sec, Plane: world.PlaneCeiling, Target: top, Speed: cfg.DoorSpeed}
	if wait {
		mv.Hold = cfg.DoorWait
		mv.Return = st.FloorHeight(sec)
	}
	st.StartMover(mv)
}

// SectorMoveSystem advances the sector movers. A plane that would crush a
// collider hangs until the collider leaves. Phase 2 (Physics), after
// PhysicsSystem.
type SectorMoveSystem struct {
	stores   *component.Stores
	finished []level.SectorID
	buf      []ecs.EntityID
}

func NewSectorMoveSystem(s *component.Stores) *SectorMoveSystem {
	return &SectorMoveSystem{stores: s}
}

func (s *SectorMoveSystem) Name() string         { return "sector_move" }
func (s *SectorMoveSystem) Phase() coresys.Phase { return coresys.PhasePhysics }

func (s *SectorMoveSystem) Access() ecs.Access {
	return ecs.Access{Reads: s.stores.Collider.Mask()}
}

func (s *SectorMoveSystem) Update(ctx *coresys.Context, v ecs.View) {
	fits := func(sec level.SectorID, floor, ceiling float64) bool {
		s.buf = ctx.Occupancy.InSector(ctx.Map, sec, s.buf[:0])
		for _, id := range s.buf {
			col, ok := ecs.Read(v, s.stores.Collider, id)
			if ok && col.Height > ceiling-floor {
				return false
			}
		}
		return true
	}
	s.finished = ctx.MapState.StepMovers(fits, s.finished[:0])
	for _, sec := range s.finished {
		event.Emit(ctx.Bus, event.SectorMoveFinished{Sector: sec, Pos: sectorCenter(ctx.Map, sec).Vec3(ctx.MapState.FloorHeight(sec))})
	}
}

func sectorCenter(m *level.Map, sec level.SectorID) geom.Vec2 {
	box := geom.EmptyBox()
	for _, ss := range m.Sectors[sec].Subsectors {
		box = box.Union(m.Subsectors[ss].BBox)
	}
	return box.Min.Add(box.Max).Scale(0.5)
}
