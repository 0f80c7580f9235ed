package visibility

import (
	"math"
	"reflect"
	"testing"

	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/world"
)

func build(t *testing.T, s *level.Sketch) (*level.Map, *world.MapState, *world.Occupancy) {
	t.Helper()
	m, err := s.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return m, world.NewMapState(m), world.NewOccupancy(m)
}

func camera(x, y, yaw float64) Camera {
	return Camera{Pos: geom.V3(x, y, 41), Yaw: yaw, FOV: math.Pi / 2, Near: 1}
}

func twoRooms() *level.Sketch {
	s := level.NewSketch("two")
	s.Sector(0, 128, 160, level.Rect(0, 0, 128, 128)...)
	s.Sector(0, 128, 160, level.Rect(128, 0, 256, 128)...)
	return s
}

func TestOccludedSubsectorExcluded(t *testing.T) {
	s := level.NewSketch("occluded")
	s.Sector(0, 128, 160, level.Rect(-64, -128, 128, 128)...)
	s.Sector(0, 128, 160, level.Rect(192, -128, 320, 128)...)
	m, st, occ := build(t, s)
	vs := NewSolver(m, st, occ)

	var out VisibleSet
	vs.Compute(camera(0, 0, 0), &out)
	front := m.FindSubsector(geom.V2(0, 0))
	behind := m.FindSubsector(geom.V2(250, 0))
	if !out.Contains(front) {
		t.Fatalf("visible subsector %d missing from %+v", front, out.Items)
	}
	if out.Contains(behind) {
		t.Fatalf("subsector %d behind a solid wall was included", behind)
	}
	if out.Stats.Segs == 0 {
		t.Fatalf("no walls emitted")
	}
}

func TestOpeningsAndClosedDoors(t *testing.T) {
	m, st, occ := build(t, twoRooms())
	vs := NewSolver(m, st, occ)
	far := m.FindSubsector(geom.V2(200, 64))

	var out VisibleSet
	vs.Compute(camera(32, 64, 0), &out)
	if !out.Contains(far) {
		t.Fatalf("room seen through an open line is missing")
	}

	vs.Compute(camera(32, 64, math.Pi), &out)
	if out.Contains(far) {
		t.Fatalf("room behind the camera was included")
	}

	st.SetCeiling(m.SectorOf(far), 0)
	vs.Compute(camera(32, 64, 0), &out)
	if out.Contains(far) {
		t.Fatalf("room behind a closed door was included")
	}
}

func TestEntitiesFollowTheirSubsector(t *testing.T) {
	s := level.NewSketch("things")
	s.Sector(0, 128, 160, level.Rect(0, 0, 128, 128)...)
	s.Sector(0, 128, 160, level.Rect(128, 0, 256, 128)...)
	s.Sector(0, 128, 160, level.Rect(300, 0, 400, 128)...)
	m, st, occ := build(t, s)

	positions := map[ecs.EntityID]geom.Vec3{
		ecs.NewEntityID(7, 1): geom.V3(200, 40, 0),
		ecs.NewEntityID(3, 1): geom.V3(200, 90, 0),
		ecs.NewEntityID(5, 1): geom.V3(350, 64, 0), // sealed room
		ecs.NewEntityID(1, 1): geom.V3(32, 64, 0),  // camera owner
	}
	for id, p := range positions {
		occ.Add(id, m.FindSubsector(p.XY()))
	}
	vs := NewSolver(m, st, occ)
	vs.SetEntities(func(id ecs.EntityID) (geom.Vec3, float64, bool) {
		p, ok := positions[id]
		return p, 16, ok
	})

	cam := camera(32, 64, 0)
	cam.Owner = ecs.NewEntityID(1, 1)
	var out VisibleSet
	vs.Compute(cam, &out)

	var got []ecs.EntityID
	for _, it := range out.Items {
		if it.Kind == ItemEntity {
			got = append(got, it.Entity)
		}
	}
	want := []ecs.EntityID{ecs.NewEntityID(3, 1), ecs.NewEntityID(7, 1)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("entities = %v, want %v", got, want)
	}
	if out.Stats.Entities != 2 {
		t.Fatalf("stats = %+v", out.Stats)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	m, st, occ := build(t, gallery())
	vs := NewSolver(m, st, occ)
	var a, b VisibleSet
	for _, cam := range []Camera{camera(40, 40, 0.3), camera(200, 60, 2.1), camera(60, 220, -1)} {
		vs.Compute(cam, &a)
		vs.Compute(cam, &b)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("two computations for %+v differ", cam)
		}
	}
}

// gallery is an L-shaped hall with a side room and a sealed room.
func gallery() *level.Sketch {
	s := level.NewSketch("gallery")
	s.Sector(0, 128, 160,
		geom.V2(0, 0), geom.V2(256, 0), geom.V2(256, 128),
		geom.V2(128, 128), geom.V2(128, 256), geom.V2(0, 256))
	s.Sector(8, 120, 200, level.Rect(256, 0, 384, 128)...)
	s.Sector(0, 128, 160, level.Rect(160, 160, 256, 256)...)
	return s
}

// firstBlock returns the distance along the ray to the nearest wall that
// blocks sight.
func firstBlock(m *level.Map, st *world.MapState, o, d geom.Vec2) float64 {
	best := math.Inf(1)
	ray := geom.Line2{Point: o, Dir: d}
	for i := range m.Linedefs {
		l := &m.Linedefs[i]
		if l.TwoSided() && !st.Closed(level.LinedefID(i)) {
			continue
		}
		t, ok := ray.Intersect(l.Line)
		if !ok || t <= 0 {
			continue
		}
		u, ok := l.Line.Intersect(ray)
		if !ok || u < 0 || u > 1 {
			continue
		}
		best = math.Min(best, t)
	}
	return best
}

func TestNoVisibleSubsectorOmitted(t *testing.T) {
	m, st, occ := build(t, gallery())
	vs := NewSolver(m, st, occ)
	cams := []Camera{
		camera(40, 40, 0),
		camera(40, 40, math.Pi/4),
		camera(64, 200, -math.Pi/2),
		camera(220, 64, math.Pi),
		camera(320, 64, math.Pi*0.9),
	}
	var out VisibleSet
	for _, cam := range cams {
		vs.Compute(cam, &out)
		o := cam.Pos.XY()
		fwd := cam.Forward()
		right := fwd.Perp()
		for x := -0.97; x < 1; x += 0.06 {
			d := fwd.Add(right.Scale(x)) // invTan is 1 at 90 degrees
			limit := firstBlock(m, st, o, d)
			for step := 2.0 / d.Len(); step < limit-0.5/d.Len(); step += 0.5 / d.Len() {
				p := o.Add(d.Scale(step))
				ss := m.FindSubsector(p)
				if !m.Contains(ss, p) {
					continue
				}
				if !out.Contains(ss) {
					t.Fatalf("camera %+v: subsector %d seen at %v is missing", cam, ss, p)
				}
			}
		}
	}
}

func TestClipRegion(t *testing.T) {
	var c clipRegion
	c.add(0.2, 0.4)
	c.add(-0.5, -0.1)
	c.add(0.6, 0.8)
	if !c.covered(0.25, 0.35) || c.covered(0.3, 0.7) {
		t.Fatalf("coverage wrong: %+v", c.spans)
	}
	c.add(0.35, 0.65)
	if len(c.spans) != 2 || !c.covered(0.3, 0.7) {
		t.Fatalf("merge failed: %+v", c.spans)
	}
	c.add(-1, 1)
	if !c.full() || len(c.spans) != 1 {
		t.Fatalf("full coverage not detected: %+v", c.spans)
	}
}
