// Package visibility computes the potentially visible set of one frame: a
// front-to-back walk of the BSP that accumulates occluded screen columns and
// stops once the view is covered.
package visibility

import (
	"math"

	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/world"
)

// Camera is the eye the set is computed for.
type Camera struct {
	Pos   geom.Vec3 // eye position
	Yaw   float64
	Pitch float64
	FOV   float64 // horizontal, radians
	Near  float64
	Owner ecs.EntityID // not drawn
}

// Forward is the unit view direction on the map plane.
func (c Camera) Forward() geom.Vec2 { return geom.FromAngle(c.Yaw) }

type ItemKind uint8

const (
	ItemSubsector ItemKind = iota
	ItemEntity
)

// Item is one entry of the draw sequence, nearest first.
type Item struct {
	Kind      ItemKind
	Subsector level.SubsectorID
	Entity    ecs.EntityID
	Depth     float64
}

// SegRef names a visible wall by its subsector and index in SegmentsOf.
type SegRef struct {
	Subsector level.SubsectorID
	Index     int
	Depth     float64
}

type Stats struct {
	Nodes      int
	Subsectors int
	Segs       int
	Entities   int
	Culled     int
}

// VisibleSet is rebuilt every frame.
type VisibleSet struct {
	Items []Item
	Segs  []SegRef
	Stats Stats
}

func (s *VisibleSet) Reset() {
	s.Items = s.Items[:0]
	s.Segs = s.Segs[:0]
	s.Stats = Stats{}
}

// Contains reports whether a subsector is in the set.
func (s *VisibleSet) Contains(id level.SubsectorID) bool {
	for _, it := range s.Items {
		if it.Kind == ItemSubsector && it.Subsector == id {
			return true
		}
	}
	return false
}

// EntitySource resolves the billboard of an indexed entity: its position and
// half width. ok is false for entities with nothing to draw.
type EntitySource func(id ecs.EntityID) (pos geom.Vec3, halfWidth float64, ok bool)

// Solver computes visible sets for one level.
type Solver struct {
	m        *level.Map
	st       *world.MapState
	occ      *world.Occupancy
	entities EntitySource

	clip    clipRegion
	eye     eye
	scratch []geom.Vec2
	out     *VisibleSet
}

func NewSolver(m *level.Map, st *world.MapState, occ *world.Occupancy) *Solver {
	return &Solver{m: m, st: st, occ: occ}
}

// SetEntities installs the billboard lookup; without one no entities are
// emitted.
func (s *Solver) SetEntities(src EntitySource) { s.entities = src }

// Compute fills out with the visible set for cam. The result depends only on
// the map, its dynamic state and the camera.
func (s *Solver) Compute(cam Camera, out *VisibleSet) {
	out.Reset()
	s.out = out
	s.clip.reset()
	s.eye = newEye(cam)
	s.walk(s.m.Root)
	s.out = nil
}

func (s *Solver) walk(ref level.NodeRef) {
	if s.clip.full() {
		return
	}
	if ref.IsLeaf() {
		s.subsector(ref.Subsector())
		return
	}
	s.out.Stats.Nodes++
	n := &s.m.Nodes[ref.Node()]
	near := n.PointSide(s.eye.pos)
	for _, side := range [2]geom.Side{near, near.Opposite()} {
		if !s.boxVisible(n.BBox[side]) {
			s.out.Stats.Culled++
			continue
		}
		s.walk(n.Children[side])
	}
}

func (s *Solver) boxVisible(b geom.AABB2) bool {
	if b.IsEmpty() {
		return false
	}
	if b.Contains(s.eye.pos) {
		return !s.clip.full()
	}
	c := b.Corners()
	lo, hi, _, ok := s.eye.project(c[:], &s.scratch)
	return ok && !s.clip.covered(lo, hi)
}

func (s *Solver) subsector(id level.SubsectorID) {
	sub := &s.m.Subsectors[id]
	var lo, hi, depth float64
	if geom.PolygonContains(sub.Polygon, s.eye.pos, 1e-9) {
		lo, hi, depth = -1, 1, 0
	} else {
		var ok bool
		lo, hi, depth, ok = s.eye.project(sub.Polygon, &s.scratch)
		if !ok {
			return
		}
	}
	if s.clip.covered(lo, hi) {
		return
	}
	s.out.Stats.Subsectors++
	s.out.Items = append(s.out.Items, Item{Kind: ItemSubsector, Subsector: id, Depth: depth})

	for i := range sub.Segs {
		seg := &sub.Segs[i]
		if seg.Miniseg() || seg.Line.Distance(s.eye.pos) <= 0 {
			continue
		}
		pts := [2]geom.Vec2{seg.Line.Point, seg.Line.End()}
		slo, shi, sd, ok := s.eye.project(pts[:], &s.scratch)
		if !ok || s.clip.covered(slo, shi) {
			continue
		}
		s.out.Stats.Segs++
		s.out.Segs = append(s.out.Segs, SegRef{Subsector: id, Index: i, Depth: sd})
	}

	if s.occ != nil && s.entities != nil {
		for _, e := range s.occ.In(id) {
			if e == s.eye.owner {
				continue
			}
			pos, half, ok := s.entities(e)
			if !ok {
				continue
			}
			c := pos.XY()
			pts := [2]geom.Vec2{c.Sub(s.eye.right.Scale(half)), c.Add(s.eye.right.Scale(half))}
			elo, ehi, _, ok := s.eye.project(pts[:], &s.scratch)
			if !ok || s.clip.covered(elo, ehi) {
				continue
			}
			s.out.Stats.Entities++
			d := c.Sub(s.eye.pos).Dot(s.eye.fwd)
			s.out.Items = append(s.out.Items, Item{Kind: ItemEntity, Subsector: id, Entity: e, Depth: d})
		}
	}

	// Occluders go in after the subsector so its own walls stay visible.
	for i := range sub.Segs {
		seg := &sub.Segs[i]
		if seg.Miniseg() || seg.Line.Distance(s.eye.pos) <= 0 {
			continue
		}
		if !seg.Solid() && !s.st.Closed(seg.Linedef) {
			continue
		}
		pts := [2]geom.Vec2{seg.Line.Point, seg.Line.End()}
		if olo, ohi, _, ok := s.eye.project(pts[:], &s.scratch); ok {
			s.clip.add(olo, ohi)
		}
	}
}

// eye maps map-plane points to normalized screen x.
type eye struct {
	pos    geom.Vec2
	fwd    geom.Vec2
	right  geom.Vec2
	near   float64
	invTan float64
	owner  ecs.EntityID
}

// nearLine keeps camera-space points with depth >= near on its front.
func (e *eye) nearLine() geom.Line2 {
	return geom.Line2{Point: geom.V2(0, e.near), Dir: geom.V2(-1, 0)}
}

func newEye(cam Camera) eye {
	fov := cam.FOV
	if fov <= 0 || fov >= math.Pi {
		fov = math.Pi / 2
	}
	near := cam.Near
	if near <= 0 {
		near = 1
	}
	fwd := cam.Forward()
	return eye{
		pos:    cam.Pos.XY(),
		fwd:    fwd,
		right:  fwd.Perp(),
		near:   near,
		invTan: 1 / math.Tan(fov/2),
		owner:  cam.Owner,
	}
}

// project returns the screen-x range of a convex polygon (or segment), its
// nearest depth, and false when nothing of it is in front of the near plane
// or inside the horizontal frustum.
func (e *eye) project(pts []geom.Vec2, scratch *[]geom.Vec2) (lo, hi, depth float64, ok bool) {
	cs := (*scratch)[:0]
	for _, p := range pts {
		rel := p.Sub(e.pos)
		cs = append(cs, geom.V2(rel.Dot(e.right), rel.Dot(e.fwd)))
	}
	*scratch = cs
	clipped := geom.ClipPolygon(cs, e.nearLine())
	if len(clipped) == 0 {
		return 0, 0, 0, false
	}
	lo, hi, depth = math.Inf(1), math.Inf(-1), math.Inf(1)
	for _, p := range clipped {
		x := p.X / p.Y * e.invTan
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
		depth = math.Min(depth, p.Y)
	}
	if hi < -1 || lo > 1 {
		return 0, 0, 0, false
	}
	return math.Max(lo, -1), math.Min(hi, 1), depth, true
}
