package level

import (
	"math"
	"sort"

	"github.com/sectorgo/engine/internal/geom"
)

// FindSubsector returns the subsector whose region contains p. Points on a
// partition line resolve to the front child.
func (m *Map) FindSubsector(p geom.Vec2) SubsectorID {
	ref := m.Root
	for !ref.IsLeaf() {
		n := &m.Nodes[ref.Node()]
		ref = n.Children[n.PointSide(p)]
	}
	return ref.Subsector()
}

// Contains reports whether p lies inside the region of subsector id.
func (m *Map) Contains(id SubsectorID, p geom.Vec2) bool {
	return geom.PolygonContains(m.Subsectors[id].Polygon, p, 1e-6)
}

// SegmentsOf returns the segs of a subsector. The slice is shared.
func (m *Map) SegmentsOf(id SubsectorID) []Seg {
	return m.Subsectors[id].Segs
}

func (m *Map) SectorOf(id SubsectorID) SectorID {
	return m.Subsectors[id].Sector
}

func (m *Map) Sector(id SectorID) *Sector {
	return &m.Sectors[id]
}

// SectorAt is FindSubsector followed by SectorOf.
func (m *Map) SectorAt(p geom.Vec2) SectorID {
	return m.SectorOf(m.FindSubsector(p))
}

// BoxSubsectors calls fn for every subsector whose bounds intersect box,
// only descending into children whose half-space the box touches. Traversal
// stops when fn returns false.
func (m *Map) BoxSubsectors(box geom.AABB2, fn func(SubsectorID) bool) {
	m.boxWalk(m.Root, box, fn)
}

func (m *Map) boxWalk(ref NodeRef, box geom.AABB2, fn func(SubsectorID) bool) bool {
	if ref.IsLeaf() {
		id := ref.Subsector()
		if m.Subsectors[id].BBox.Intersects(box) {
			return fn(id)
		}
		return true
	}
	n := &m.Nodes[ref.Node()]
	front, back := box.LineSide(n.Partition)
	if front && n.BBox[0].Intersects(box) {
		if !m.boxWalk(n.Children[0], box, fn) {
			return false
		}
	}
	if back && n.BBox[1].Intersects(box) {
		if !m.boxWalk(n.Children[1], box, fn) {
			return false
		}
	}
	return true
}

// LinesInBox appends to buf the linedefs of segs near box, sorted and
// without duplicates. Minisegs are skipped.
func (m *Map) LinesInBox(box geom.AABB2, buf []LinedefID) []LinedefID {
	buf = buf[:0]
	m.BoxSubsectors(box, func(id SubsectorID) bool {
		for i := range m.Subsectors[id].Segs {
			s := &m.Subsectors[id].Segs[i]
			if s.Miniseg() {
				continue
			}
			if m.Linedefs[s.Linedef].BBox.Intersects(box) {
				buf = append(buf, s.Linedef)
			}
		}
		return true
	})
	sort.Slice(buf, func(i, j int) bool { return buf[i] < buf[j] })
	out := buf[:0]
	for i, l := range buf {
		if i == 0 || l != buf[i-1] {
			out = append(out, l)
		}
	}
	return out
}

// LineSectors returns the sectors on the front and back of a linedef.
func (m *Map) LineSectors(id LinedefID) (front, back SectorID) {
	l := &m.Linedefs[id]
	front, back = m.Sidedefs[l.Sides[0]].Sector, NoSector
	if l.Sides[1] != NoSide {
		back = m.Sidedefs[l.Sides[1]].Sector
	}
	return front, back
}

// LinesWithTag returns the linedefs carrying tag, ascending.
func (m *Map) LinesWithTag(tag uint16) []LinedefID {
	var out []LinedefID
	for i := range m.Linedefs {
		if m.Linedefs[i].Tag == tag {
			out = append(out, LinedefID(i))
		}
	}
	return out
}

// SectorsWithTag returns the sectors carrying tag, ascending.
func (m *Map) SectorsWithTag(tag uint16) []SectorID {
	var out []SectorID
	for i := range m.Sectors {
		if m.Sectors[i].Tag == tag {
			out = append(out, SectorID(i))
		}
	}
	return out
}

// LinesOfSector returns the linedefs with a sidedef in sector id, ascending.
func (m *Map) LinesOfSector(id SectorID) []LinedefID {
	var out []LinedefID
	for i := range m.Linedefs {
		front, back := m.LineSectors(LinedefID(i))
		if front == id || back == id {
			out = append(out, LinedefID(i))
		}
	}
	return out
}

// Heights supplies current sector heights; the map itself reports the
// heights it was loaded with.
type Heights interface {
	FloorHeight(SectorID) float64
	CeilingHeight(SectorID) float64
}

func (m *Map) FloorHeight(id SectorID) float64   { return m.Sectors[id].Floor }
func (m *Map) CeilingHeight(id SectorID) float64 { return m.Sectors[id].Ceiling }

func (m *Map) neighbourHeight(id SectorID, get func(SectorID) float64, better func(a, b float64) bool, keep func(float64) bool) (float64, bool) {
	var (
		best  float64
		found bool
	)
	for _, n := range m.Sectors[id].Neighbours {
		v := get(n)
		if keep != nil && !keep(v) {
			continue
		}
		if !found || better(v, best) {
			best, found = v, true
		}
	}
	return best, found
}

func lower(a, b float64) bool  { return a < b }
func higher(a, b float64) bool { return a > b }

func (m *Map) LowestNeighbourFloor(h Heights, id SectorID) (float64, bool) {
	return m.neighbourHeight(id, h.FloorHeight, lower, nil)
}

func (m *Map) HighestNeighbourFloor(h Heights, id SectorID) (float64, bool) {
	return m.neighbourHeight(id, h.FloorHeight, higher, nil)
}

func (m *Map) LowestNeighbourCeiling(h Heights, id SectorID) (float64, bool) {
	return m.neighbourHeight(id, h.CeilingHeight, lower, nil)
}

// LowestNeighbourFloorAbove returns the lowest neighbouring floor strictly
// above z.
func (m *Map) LowestNeighbourFloorAbove(h Heights, id SectorID, z float64) (float64, bool) {
	return m.neighbourHeight(id, h.FloorHeight, lower, func(v float64) bool { return v > z })
}

// Opening returns the vertical gap shared by the two sides of a linedef.
// One-sided lines have an empty opening.
func (m *Map) Opening(h Heights, id LinedefID) geom.Interval {
	front, back := m.LineSectors(id)
	if back == NoSector {
		return geom.Interval{Min: math.Inf(1), Max: math.Inf(-1)}
	}
	return geom.Interval{
		Min: math.Max(h.FloorHeight(front), h.FloorHeight(back)),
		Max: math.Min(h.CeilingHeight(front), h.CeilingHeight(back)),
	}
}
