package system

import (
	"slices"

	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/core/event"
	coresys "github.com/sectorgo/engine/internal/core/system"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/physics"
)

const (
	friction  = 0.90625 // scales pushed velocity every tick
	stopSpeed = 1.0 / 16

	// UseRange is how far a use trace reaches.
	UseRange = 64
)

// PhysicsSystem consumes intents, resolves every collider's move and keeps
// Location and the occupancy index current. A Use intent traces ahead for a
// line with a special and raises LineActivated for it.
// Phase 2 (Physics).
type PhysicsSystem struct {
	stores *component.Stores
	solver *physics.Solver
	lines  []level.LinedefID
	hits   []useHit
}

type useHit struct {
	t    float64
	line level.LinedefID
}

func NewPhysicsSystem(s *component.Stores, solver *physics.Solver) *PhysicsSystem {
	return &PhysicsSystem{stores: s, solver: solver}
}

func (s *PhysicsSystem) Name() string         { return "physics" }
func (s *PhysicsSystem) Phase() coresys.Phase { return coresys.PhasePhysics }

func (s *PhysicsSystem) Access() ecs.Access {
	st := s.stores
	return ecs.Access{
		Reads:  st.Collider.Mask(),
		Writes: st.Transform.Mask() | st.Velocity.Mask() | st.Location.Mask() | st.Intent.Mask(),
	}
}

func (s *PhysicsSystem) Update(ctx *coresys.Context, v ecs.View) {
	st := s.stores
	for id := range v.Query(st.Transform.Mask() | st.Collider.Mask()) {
		tr, _ := ecs.Write(v, st.Transform, id)
		col, _ := ecs.Read(v, st.Collider, id)
		it, _ := ecs.Read(v, st.Intent, id)
		vel, hasVel := ecs.Write(v, st.Velocity, id)

		from := level.NoSubsector
		if loc, ok := ecs.Read(v, st.Location, id); ok {
			from = loc.Subsector
		}

		tr.Angle = geom.NormalizeAngle(tr.Angle + it.Turn)
		move := it.Move
		var vz float64
		if hasVel {
			move = move.Add(vel.V.XY())
			vz = vel.V.Z
		}
		if it.Jump > 0 && from != level.NoSubsector && tr.Pos.Z <= ctx.MapState.FloorHeight(ctx.Map.SectorOf(from)) {
			vz = it.Jump
		}

		res := s.solver.Resolve(physics.Request{
			Entity:    id,
			Pos:       tr.Pos,
			VZ:        vz,
			Radius:    col.Radius,
			Height:    col.Height,
			Move:      move,
			NoDropOff: col.NoDropOff,
			Monster:   col.Monster,
			From:      from,
		})
		tr.Pos = res.Pos
		if hasVel {
			vel.V = damp(vel.V.XY()).Vec3(res.VZ)
		}
		if res.Subsector != level.NoSubsector {
			ecs.Insert(v, st.Location, id, component.Location{Subsector: res.Subsector, Sector: res.Sector})
			ctx.Occupancy.Move(id, res.Subsector)
		}

		if it.Use {
			s.use(ctx, id, tr.Pos, tr.Angle)
		}
		ecs.Delete(v, st.Intent, id)
	}
}

func damp(v geom.Vec2) geom.Vec2 {
	v = v.Scale(friction)
	if v.Len() < stopSpeed {
		return geom.Vec2{}
	}
	return v
}

// use traces UseRange ahead of pos. Two-sided lines without a special are
// passed through; the first one-sided line ends the trace.
func (s *PhysicsSystem) use(ctx *coresys.Context, id ecs.EntityID, pos geom.Vec3, angle float64) {
	o := pos.XY()
	ray := geom.Line2{Point: o, Dir: geom.FromAngle(angle).Scale(UseRange)}
	box := geom.BoxAround(o, UseRange)
	s.lines = ctx.Map.LinesInBox(box, s.lines)

	s.hits = s.hits[:0]
	for _, ld := range s.lines {
		l := &ctx.Map.Linedefs[ld]
		t, ok := ray.Intersect(l.Line)
		if !ok || t <= 0 || t > 1 {
			continue
		}
		if u, ok := l.Line.Intersect(ray); !ok || u < 0 || u > 1 {
			continue
		}
		s.hits = append(s.hits, useHit{t: t, line: ld})
	}
	slices.SortFunc(s.hits, func(a, b useHit) int {
		if a.t != b.t {
			if a.t < b.t {
				return -1
			}
			return 1
		}
		return int(a.line - b.line)
	})

	for _, h := range s.hits {
		l := &ctx.Map.Linedefs[h.line]
		if l.Special != 0 {
			event.Emit(ctx.Bus, event.LineActivated{
				Entity:  id,
				Line:    h.line,
				Special: l.Special,
				Tag:     l.Tag,
				Pos:     ray.Point.Add(ray.Dir.Scale(h.t)).Vec3(pos.Z),
			})
			return
		}
		if !l.TwoSided() {
			return
		}
	}
}
