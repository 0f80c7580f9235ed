package level

import (
	"errors"
	"reflect"
	"testing"

	"github.com/sectorgo/engine/internal/geom"
)

func twoRooms(t *testing.T) *Map {
	t.Helper()
	s := NewSketch("two")
	s.Sector(0, 128, 160, Rect(0, 0, 100, 100)...)
	s.Sector(16, 112, 200, Rect(100, 0, 200, 100)...)
	m, err := s.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return m
}

func lShape() *Sketch {
	s := NewSketch("ell")
	s.Sector(0, 128, 160,
		geom.V2(0, 0), geom.V2(200, 0), geom.V2(200, 100),
		geom.V2(100, 100), geom.V2(100, 200), geom.V2(0, 200))
	return s
}

func TestSingleRoomIsOneLeaf(t *testing.T) {
	s := NewSketch("box")
	s.Sector(0, 128, 255, Rect(0, 0, 64, 64)...)
	m, err := s.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(m.Nodes) != 0 || len(m.Subsectors) != 1 {
		t.Fatalf("nodes=%d subsectors=%d, want 0 and 1", len(m.Nodes), len(m.Subsectors))
	}
	if !m.Root.IsLeaf() {
		t.Fatalf("root should be a leaf")
	}
	if got := m.FindSubsector(geom.V2(32, 32)); got != 0 {
		t.Fatalf("FindSubsector = %d, want 0", got)
	}
	if a := geom.PolygonArea(m.Subsectors[0].Polygon); a < 4095 || a > 4097 {
		t.Fatalf("region area = %v, want 4096", a)
	}
	if m.Sectors[0].Light != 1 {
		t.Fatalf("light = %v, want 1", m.Sectors[0].Light)
	}
}

func TestPointLocationInsideRegion(t *testing.T) {
	tests := []struct {
		name   string
		sketch func() *Sketch
		points func(p geom.Vec2) bool
	}{
		{"two rooms", func() *Sketch {
			s := NewSketch("two")
			s.Sector(0, 128, 160, Rect(0, 0, 100, 100)...)
			s.Sector(16, 112, 200, Rect(100, 0, 200, 100)...)
			return s
		}, func(p geom.Vec2) bool { return p.Y < 100 }},
		{"non-convex", lShape, func(p geom.Vec2) bool { return p.Y < 100 || p.X < 100 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.sketch().Build()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			for x := 5.0; x < 200; x += 10 {
				for y := 5.0; y < 200; y += 10 {
					p := geom.V2(x, y)
					if !tt.points(p) {
						continue
					}
					id := m.FindSubsector(p)
					if !m.Contains(id, p) {
						t.Fatalf("point %v located in subsector %d whose region does not contain it", p, id)
					}
				}
			}
		})
	}
}

func TestTieResolvesToFront(t *testing.T) {
	m := twoRooms(t)
	if len(m.Nodes) != 1 {
		t.Fatalf("nodes = %d, want 1", len(m.Nodes))
	}
	n := &m.Nodes[0]
	on := n.Partition.Point.Add(n.Partition.Dir.Scale(0.5))
	if got, want := m.FindSubsector(on), n.Children[geom.Front].Subsector(); got != want {
		t.Fatalf("point on partition located in %d, want front child %d", got, want)
	}
}

func TestSectorsAndNeighbours(t *testing.T) {
	m := twoRooms(t)
	left := m.SectorAt(geom.V2(50, 50))
	right := m.SectorAt(geom.V2(150, 50))
	if left != 0 || right != 1 {
		t.Fatalf("sectors = %d,%d, want 0,1", left, right)
	}
	if !reflect.DeepEqual(m.Sectors[0].Neighbours, []SectorID{1}) {
		t.Fatalf("neighbours = %v", m.Sectors[0].Neighbours)
	}
	if f, ok := m.LowestNeighbourFloor(m, 0); !ok || f != 16 {
		t.Fatalf("LowestNeighbourFloor = %v,%v", f, ok)
	}
	if c, ok := m.LowestNeighbourCeiling(m, 0); !ok || c != 112 {
		t.Fatalf("LowestNeighbourCeiling = %v,%v", c, ok)
	}
	if _, ok := m.LowestNeighbourFloorAbove(m, 0, 16); ok {
		t.Fatalf("no neighbour floor is above 16")
	}
	shared := LinedefID(-1)
	for i := range m.Linedefs {
		if m.Linedefs[i].TwoSided() {
			shared = LinedefID(i)
		}
	}
	if shared < 0 {
		t.Fatalf("no two-sided linedef")
	}
	if m.Linedefs[shared].Flags.Has(LineBlocking) {
		t.Fatalf("shared line should not block")
	}
	if o := m.Opening(m, shared); o.Min != 16 || o.Max != 112 {
		t.Fatalf("opening = %+v", o)
	}
	for _, ss := range m.Subsectors {
		for _, seg := range ss.Segs {
			if seg.Linedef == shared && seg.Back == NoSector {
				t.Fatalf("two-sided seg without back sector")
			}
		}
	}
}

func TestLinesInBox(t *testing.T) {
	m := twoRooms(t)
	got := m.LinesInBox(geom.BoxAround(geom.V2(100, 50), 10), nil)
	if len(got) != 1 || !m.Linedefs[got[0]].TwoSided() {
		t.Fatalf("lines near shared edge = %v", got)
	}
	all := m.LinesInBox(m.Bounds, nil)
	if len(all) != len(m.Linedefs) {
		t.Fatalf("lines in bounds = %d, want %d", len(all), len(m.Linedefs))
	}
	for i := 1; i < len(all); i++ {
		if all[i] <= all[i-1] {
			t.Fatalf("lines not sorted and unique: %v", all)
		}
	}
	var visited []SubsectorID
	m.BoxSubsectors(geom.BoxAround(geom.V2(20, 50), 5), func(id SubsectorID) bool {
		visited = append(visited, id)
		return true
	})
	if len(visited) != 1 || m.SectorOf(visited[0]) != 0 {
		t.Fatalf("box walk visited %v", visited)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := lShape().Build()
	if err != nil {
		t.Fatal(err)
	}
	b, err := lShape().Build()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two builds of the same level differ")
	}
}

func TestValidation(t *testing.T) {
	built := func() *Data {
		s := NewSketch("two")
		s.Sector(0, 128, 160, Rect(0, 0, 100, 100)...)
		s.Sector(16, 112, 200, Rect(100, 0, 200, 100)...)
		d := s.Data()
		if err := BuildNodes(d); err != nil {
			t.Fatalf("nodes: %v", err)
		}
		return d
	}
	tests := []struct {
		name   string
		mutate func(d *Data)
	}{
		{"sidedef sector out of range", func(d *Data) { d.Sidedefs[0].Sector = 9 }},
		{"linedef vertex out of range", func(d *Data) { d.Linedefs[0].V2 = len(d.Vertices) }},
		{"missing front sidedef", func(d *Data) { d.Linedefs[0].Front = -1 }},
		{"ceiling below floor", func(d *Data) { d.Sectors[1].Ceiling = 0 }},
		{"node child out of range", func(d *Data) { d.Nodes[0].Front = 3 }},
		{"subsector out of range", func(d *Data) { d.Nodes[0].Back = ChildLeaf(7) }},
		{"node cycle", func(d *Data) { d.Nodes[0].Front = 0 }},
		{"subsector referenced twice", func(d *Data) { d.Nodes[0].Back = d.Nodes[0].Front }},
		{"empty subsector", func(d *Data) { d.Subsectors[0].SegCount = 0 }},
		{"seg linedef out of range", func(d *Data) { d.Segs[0].Linedef = 99 }},
		{"mixed sectors", func(d *Data) {
			d.Subsectors[0].SegCount = len(d.Segs)
			d.Subsectors[1].FirstSeg = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := built()
			tt.mutate(d)
			m, err := Build(d)
			if err == nil {
				t.Fatalf("expected error")
			}
			if m != nil {
				t.Fatalf("partial map returned")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Level != "two" {
				t.Fatalf("error %v is not a ValidationError for the level", err)
			}
		})
	}
}

func TestBuildNodesSplitsNonConvex(t *testing.T) {
	d := lShape().Data()
	if err := BuildNodes(d); err != nil {
		t.Fatal(err)
	}
	if len(d.Subsectors) < 2 {
		t.Fatalf("non-convex sector produced %d subsectors", len(d.Subsectors))
	}
	m, err := Build(d)
	if err != nil {
		t.Fatal(err)
	}
	var area float64
	for _, ss := range m.Subsectors {
		area += geom.PolygonArea(ss.Polygon)
	}
	if area < 29999 || area > 30001 {
		t.Fatalf("subsector regions cover %v, want 30000", area)
	}
}
