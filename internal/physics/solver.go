// Package physics moves entity cylinders through the map: swept circle
// against the blocking linedefs near the path, wall sliding, step and gap
// rules, and floor/ceiling clamping.
package physics

import (
	"math"

	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/core/event"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/world"
)

const (
	approachEpsilon = 1e-9
	contactSlop     = 1e-6
)

// Config holds the movement tuning values.
type Config struct {
	MaxStepHeight      float64 `toml:"max_step_height"`
	MaxSlideIterations int     `toml:"max_slide_iterations"`
	Gravity            float64 `toml:"gravity"`      // units per tick²
	ImpactSpeed        float64 `toml:"impact_speed"` // minimum approach speed reported as Impact
}

func DefaultConfig() Config {
	return Config{
		MaxStepHeight:      24,
		MaxSlideIterations: 4,
		Gravity:            1,
		ImpactSpeed:        8,
	}
}

// Request describes one entity move.
type Request struct {
	Entity    ecs.EntityID
	Pos       geom.Vec3 // feet
	VZ        float64   // vertical velocity
	Radius    float64
	Height    float64
	Move      geom.Vec2
	NoDropOff bool
	Monster   bool
	From      level.SubsectorID // NoSubsector when unknown
}

// Result is the committed move.
type Result struct {
	Delta     geom.Vec3
	Pos       geom.Vec3
	VZ        float64
	Subsector level.SubsectorID
	Sector    level.SectorID
	Blocked   bool
	Hits      int
	FloorZ    float64
	CeilingZ  float64
}

// Solver resolves moves against one level. It keeps scratch buffers, so a
// Solver is used by one goroutine at a time.
type Solver struct {
	m     *level.Map
	st    *world.MapState
	cfg   Config
	bus   *event.Bus
	log   *zap.Logger
	lines []level.LinedefID
	block []level.LinedefID
}

// NewSolver creates a solver. bus may be nil, in which case no events are
// raised.
func NewSolver(m *level.Map, st *world.MapState, cfg Config, bus *event.Bus, log *zap.Logger) *Solver {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxSlideIterations <= 0 {
		cfg.MaxSlideIterations = 1
	}
	return &Solver{m: m, st: st, cfg: cfg, bus: bus, log: log}
}

func (s *Solver) Config() Config { return s.cfg }

type hit struct {
	t      float64
	normal geom.Vec2
	line   level.LinedefID
	speed  float64
}

// Resolve moves the cylinder of req as far along req.Move as the map allows
// and returns the committed state. It never panics on degenerate input; a
// move that cannot end in a valid sector leaves the position unchanged.
func (s *Solver) Resolve(req Request) Result {
	start := req.Pos.XY()
	from := req.From
	if from == level.NoSubsector || int(from) >= len(s.m.Subsectors) {
		from = s.m.FindSubsector(start)
	}
	fromSector := s.m.SectorOf(from)

	pos := start
	var res Result
	var first *hit
	if !req.Move.IsZero() && !math.IsNaN(req.Move.X) && !math.IsNaN(req.Move.Y) {
		box := geom.BoxAround(start, req.Move.Len()+req.Radius+1)
		s.lines = s.m.LinesInBox(box, s.lines)
		s.block = s.block[:0]
		for _, id := range s.lines {
			if s.blocks(id, req) {
				s.block = append(s.block, id)
			}
		}

		rem := req.Move
		for iter := 0; iter < s.cfg.MaxSlideIterations && rem.LenSq() > approachEpsilon; iter++ {
			h, ok := s.earliest(pos, rem, req.Radius)
			if !ok {
				pos = pos.Add(rem)
				rem = geom.Vec2{}
				break
			}
			pos = pos.Add(rem.Scale(h.t))
			res.Hits++
			if first == nil {
				hc := h
				first = &hc
			}
			rem = rem.Scale(1 - h.t)
			rem = rem.Sub(h.normal.Scale(rem.Dot(h.normal)))
		}
		res.Blocked = res.Hits > 0
	}

	ss, floorZ, ceilZ, ok := s.settle(pos, req)
	if !ok {
		s.log.Debug("move rejected",
			zap.Uint64("entity", uint64(req.Entity)),
			zap.Float64("x", pos.X), zap.Float64("y", pos.Y))
		// Nothing moves, vertically either.
		gap := s.st.Gap(fromSector)
		res.Pos = req.Pos
		res.VZ = 0
		res.Blocked = true
		res.Subsector = from
		res.Sector = fromSector
		res.FloorZ, res.CeilingZ = gap.Min, gap.Max
		return res
	}

	// Vertical: step up onto higher floors, fall under gravity, stay under
	// the ceiling.
	z, vz := req.Pos.Z, req.VZ
	if z < floorZ {
		z = floorZ
	}
	if z > floorZ || vz > 0 {
		z += vz
		vz -= s.cfg.Gravity
		if z <= floorZ {
			z, vz = floorZ, 0
		}
	} else {
		vz = 0
	}
	if top := ceilZ - req.Height; z > top {
		z = math.Max(floorZ, top)
		if vz > 0 {
			vz = 0
		}
	}

	res.Pos = pos.Vec3(z)
	res.VZ = vz
	res.Delta = res.Pos.Sub(req.Pos)
	res.Subsector = ss
	res.Sector = s.m.SectorOf(ss)
	res.FloorZ = floorZ
	res.CeilingZ = ceilZ

	s.raise(req, start, pos, fromSector, res, first)
	return res
}

// blocks reports whether a linedef stops this cylinder at its current height.
func (s *Solver) blocks(id level.LinedefID, req Request) bool {
	l := &s.m.Linedefs[id]
	if l.Line.Dir.LenSq() < approachEpsilon {
		return false
	}
	if !l.TwoSided() || l.Flags.Has(level.LineBlocking) || s.st.LineBlocking(id) {
		return true
	}
	if req.Monster && l.Flags.Has(level.LineBlockMonsters) {
		return true
	}
	open := s.st.Opening(id)
	z := req.Pos.Z
	switch {
	case open.Size() < req.Height:
		return true
	case open.Max-z < req.Height:
		return true
	case open.Min-z > s.cfg.MaxStepHeight:
		return true
	}
	if req.NoDropOff {
		front, back := s.m.LineSectors(id)
		low := math.Min(s.st.FloorHeight(front), s.st.FloorHeight(back))
		if z-low > s.cfg.MaxStepHeight {
			return true
		}
	}
	return false
}

// earliest finds the first blocking contact of a circle at p with radius r
// moving by d.
func (s *Solver) earliest(p, d geom.Vec2, r float64) (hit, bool) {
	best := hit{t: math.Inf(1)}
	found := false
	for _, id := range s.block {
		h, ok := sweep(s.m.Linedefs[id].Line, p, d, r)
		if ok && h.t < best.t {
			h.line = id
			best, found = h, true
		}
	}
	return best, found
}

// sweep computes the time of impact in [0, 1] of a circle moving from p by d
// against the capsule of segment seg. Only approaching motion counts; an
// already overlapping circle moving closer hits at t = 0.
func sweep(seg geom.Line2, p, d geom.Vec2, r float64) (hit, bool) {
	best := hit{t: math.Inf(1)}
	found := false

	length := seg.Dir.Len()
	if length < approachEpsilon {
		return best, false
	}
	n := seg.Dir.Perp().Scale(1 / length)
	dist := p.Sub(seg.Point).Dot(n)
	if dist < 0 {
		n, dist = n.Neg(), -dist
	}
	if dn := d.Dot(n); dn < -approachEpsilon {
		t := 0.0
		if dist > r {
			t = (dist - r) / -dn
		}
		if t <= 1 {
			c := p.Add(d.Scale(t))
			u := c.Sub(seg.Point).Dot(seg.Dir) / (length * length)
			if u >= 0 && u <= 1 {
				best, found = hit{t: t, normal: n, speed: -dn}, true
			}
		}
	}

	for _, e := range [2]geom.Vec2{seg.Point, seg.End()} {
		f := p.Sub(e)
		a := d.Dot(d)
		b := f.Dot(d)
		c := f.Dot(f) - r*r
		var t float64
		if c <= 0 {
			if b >= -approachEpsilon {
				continue
			}
			t = 0
		} else {
			disc := b*b - a*c
			if disc < 0 || a < approachEpsilon {
				continue
			}
			t = (-b - math.Sqrt(disc)) / a
			if t < 0 || t > 1 {
				continue
			}
		}
		if t >= best.t {
			continue
		}
		nn := p.Add(d.Scale(t)).Sub(e).Normalize()
		if nn.IsZero() {
			continue
		}
		if dn := d.Dot(nn); dn < -approachEpsilon {
			best, found = hit{t: t, normal: nn, speed: -dn}, true
		}
	}
	return best, found
}

// settle locates p and computes the floor and ceiling under the footprint.
// It fails when p lies outside every region or the gap is too small.
func (s *Solver) settle(p geom.Vec2, req Request) (level.SubsectorID, float64, float64, bool) {
	ss := s.m.FindSubsector(p)
	if !s.m.Contains(ss, p) {
		return ss, 0, 0, false
	}
	sec := s.m.SectorOf(ss)
	gap := s.st.Gap(sec)
	floorZ, ceilZ := gap.Min, gap.Max

	s.lines = s.m.LinesInBox(geom.BoxAround(p, req.Radius), s.lines)
	for _, id := range s.lines {
		l := &s.m.Linedefs[id]
		if !l.TwoSided() {
			continue
		}
		if q, _ := l.Line.ClosestPoint(p); q.Dist(p) >= req.Radius-contactSlop {
			continue
		}
		open := s.st.Opening(id)
		floorZ = math.Max(floorZ, open.Min)
		ceilZ = math.Min(ceilZ, open.Max)
	}
	if ceilZ-floorZ < req.Height {
		return ss, floorZ, ceilZ, false
	}
	return ss, floorZ, ceilZ, true
}

func (s *Solver) raise(req Request, start, end geom.Vec2, fromSector level.SectorID, res Result, first *hit) {
	if s.bus == nil {
		return
	}
	if first != nil && first.speed >= s.cfg.ImpactSpeed {
		at := start.Add(req.Move.Scale(first.t))
		event.Emit(s.bus, event.Impact{Entity: req.Entity, Line: first.line, Pos: at.Vec3(req.Pos.Z), Speed: first.speed})
	}
	if !start.ApproxEqual(end, approachEpsilon) {
		path := geom.LineBetween(start, end)
		s.lines = s.m.LinesInBox(geom.BoxAround(start, start.Dist(end)+1), s.lines)
		for _, id := range s.lines {
			l := &s.m.Linedefs[id]
			if l.Special == 0 || !crosses(l.Line, path) {
				continue
			}
			event.Emit(s.bus, event.LineCrossed{Entity: req.Entity, Line: id, Special: l.Special, Tag: l.Tag, Pos: res.Pos})
		}
	}
	if res.Sector != fromSector {
		if sec := s.m.Sector(res.Sector); sec.Special != 0 {
			event.Emit(s.bus, event.SectorTriggered{Entity: req.Entity, Sector: res.Sector, Special: sec.Special, Tag: sec.Tag, Pos: res.Pos})
		}
	}
}

// crosses reports whether path moves from one side of line to the other
// within the segment's extent.
func crosses(line, path geom.Line2) bool {
	d0 := line.Distance(path.Point)
	d1 := line.Distance(path.End())
	if (d0 >= 0) == (d1 >= 0) {
		return false
	}
	e0 := path.Distance(line.Point)
	e1 := path.Distance(line.End())
	return (e0 >= 0) != (e1 >= 0)
}
