package level

import (
	"slices"

	"github.com/sectorgo/engine/internal/geom"
)

// Sketch assembles level Data from sector outlines. Each sector is a simple
// counter-clockwise polygon; an edge given by two sectors with the same two
// vertices becomes one two-sided linedef. Partially shared edges (T-junctions)
// are not joined.
type Sketch struct {
	d     Data
	verts map[geom.Vec2]int
	edges map[[2]int]int
}

func NewSketch(name string) *Sketch {
	return &Sketch{
		d:     Data{Name: name},
		verts: make(map[geom.Vec2]int),
		edges: make(map[[2]int]int),
	}
}

func (s *Sketch) vertex(p geom.Vec2) int {
	if i, ok := s.verts[p]; ok {
		return i
	}
	s.d.Vertices = append(s.d.Vertices, VertexData{X: p.X, Y: p.Y})
	i := len(s.d.Vertices) - 1
	s.verts[p] = i
	return i
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// Sector adds a sector bounded by poly and returns its id.
func (s *Sketch) Sector(floor, ceiling float64, light int, poly ...geom.Vec2) SectorID {
	sec := len(s.d.Sectors)
	s.d.Sectors = append(s.d.Sectors, SectorData{
		Floor:          floor,
		Ceiling:        ceiling,
		Light:          light,
		FloorTexture:   "FLOOR4_8",
		CeilingTexture: "CEIL3_5",
	})
	for i := range poly {
		a := s.vertex(poly[i])
		b := s.vertex(poly[(i+1)%len(poly)])
		side := len(s.d.Sidedefs)
		s.d.Sidedefs = append(s.d.Sidedefs, SidedefData{Sector: sec})
		if li, ok := s.edges[edgeKey(a, b)]; ok {
			l := &s.d.Linedefs[li]
			l.Back = side
			l.Flags = (l.Flags | LineTwoSided) &^ LineBlocking
			s.d.Sidedefs[l.Front].Middle = ""
			s.d.Sidedefs[l.Front].Upper = "STARTAN2"
			s.d.Sidedefs[l.Front].Lower = "STARTAN2"
			s.d.Sidedefs[side].Upper = "STARTAN2"
			s.d.Sidedefs[side].Lower = "STARTAN2"
			continue
		}
		// The sector lies to the left of a->b; the linedef runs b->a so the
		// sector is on its front.
		s.d.Sidedefs[side].Middle = "STARTAN2"
		s.d.Linedefs = append(s.d.Linedefs, LinedefData{V1: b, V2: a, Flags: LineBlocking, Front: side, Back: -1})
		s.edges[edgeKey(a, b)] = len(s.d.Linedefs) - 1
	}
	return SectorID(sec)
}

// Line returns the linedef joining a and b, or NoLine.
func (s *Sketch) Line(a, b geom.Vec2) LinedefID {
	va, ok := s.verts[a]
	if !ok {
		return NoLine
	}
	vb, ok := s.verts[b]
	if !ok {
		return NoLine
	}
	if li, ok := s.edges[edgeKey(va, vb)]; ok {
		return LinedefID(li)
	}
	return NoLine
}

// SetLine sets flags, special and tag on the linedef joining a and b.
func (s *Sketch) SetLine(a, b geom.Vec2, flags LineFlags, special, tag uint16) LinedefID {
	id := s.Line(a, b)
	if id == NoLine {
		return id
	}
	l := &s.d.Linedefs[id]
	l.Flags |= flags
	l.Special = special
	l.Tag = tag
	return id
}

func (s *Sketch) SetSector(id SectorID, special, tag uint16) {
	s.d.Sectors[id].Special = special
	s.d.Sectors[id].Tag = tag
}

func (s *Sketch) Thing(x, y, angle float64, typ uint16) {
	s.d.Things = append(s.d.Things, ThingData{X: x, Y: y, Angle: angle, Type: typ, Flags: ThingEasy | ThingNormal | ThingHard})
}

// Data returns a copy of the sketched level without BSP data.
func (s *Sketch) Data() *Data {
	return &Data{
		Name:     s.d.Name,
		Vertices: slices.Clone(s.d.Vertices),
		Linedefs: slices.Clone(s.d.Linedefs),
		Sidedefs: slices.Clone(s.d.Sidedefs),
		Sectors:  slices.Clone(s.d.Sectors),
		Things:   slices.Clone(s.d.Things),
	}
}

// Build runs the node builder and Build over a copy of the sketch.
func (s *Sketch) Build() (*Map, error) {
	return Build(s.Data())
}

// Rect returns the counter-clockwise corners of an axis-aligned rectangle.
func Rect(x0, y0, x1, y1 float64) []geom.Vec2 {
	return []geom.Vec2{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}
