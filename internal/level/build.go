package level

import (
	"fmt"
	"math"
	"sort"

	"github.com/sectorgo/engine/internal/geom"
)

// boundsMargin pads the map bounds used to close open subsector regions.
const boundsMargin = 64

// ValidationError reports why a level was rejected. No partially built map
// is ever returned alongside it.
type ValidationError struct {
	Level  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("level %q: %s", e.Level, e.Reason)
}

func invalid(d *Data, format string, args ...any) error {
	return &ValidationError{Level: d.Name, Reason: fmt.Sprintf(format, args...)}
}

// Build validates d and constructs the immutable map graph. When d carries no
// BSP (no nodes and no subsectors) the node builder runs first and fills the
// Segs, Subsectors and Nodes of d.
func Build(d *Data) (*Map, error) {
	if err := validateBase(d); err != nil {
		return nil, err
	}
	if len(d.Nodes) == 0 && len(d.Subsectors) == 0 {
		if err := BuildNodes(d); err != nil {
			return nil, err
		}
	}
	if err := validateTree(d); err != nil {
		return nil, err
	}

	m := &Map{
		Name:     d.Name,
		Vertices: make([]geom.Vec2, len(d.Vertices)),
		Sidedefs: make([]Sidedef, len(d.Sidedefs)),
		Sectors:  make([]Sector, len(d.Sectors)),
		Linedefs: make([]Linedef, len(d.Linedefs)),
		Bounds:   geom.EmptyBox(),
	}
	for i, v := range d.Vertices {
		m.Vertices[i] = geom.V2(v.X, v.Y)
		m.Bounds.AddPoint(m.Vertices[i])
	}
	for i, s := range d.Sectors {
		m.Sectors[i] = Sector{
			Floor:          s.Floor,
			Ceiling:        s.Ceiling,
			Light:          float64(s.Light) / 255,
			Special:        s.Special,
			Tag:            s.Tag,
			FloorTexture:   s.FloorTexture,
			CeilingTexture: s.CeilingTexture,
		}
	}
	for i, s := range d.Sidedefs {
		m.Sidedefs[i] = Sidedef{
			Sector: SectorID(s.Sector),
			Upper:  s.Upper,
			Middle: s.Middle,
			Lower:  s.Lower,
			Offset: geom.V2(s.OffsetX, s.OffsetY),
		}
	}
	for i, l := range d.Linedefs {
		a, b := m.Vertices[l.V1], m.Vertices[l.V2]
		line := geom.LineBetween(a, b)
		bbox := geom.EmptyBox()
		bbox.AddPoint(a)
		bbox.AddPoint(b)
		ld := Linedef{
			Line:    line,
			Normal:  line.Normal(),
			BBox:    bbox,
			Flags:   l.Flags,
			Special: l.Special,
			Tag:     l.Tag,
			Sides:   [2]SidedefID{SidedefID(l.Front), NoSide},
		}
		if l.Back >= 0 {
			ld.Sides[1] = SidedefID(l.Back)
			ld.Flags |= LineTwoSided
			fs, bs := SectorID(d.Sidedefs[l.Front].Sector), SectorID(d.Sidedefs[l.Back].Sector)
			if fs != bs {
				addNeighbour(&m.Sectors[fs], bs)
				addNeighbour(&m.Sectors[bs], fs)
			}
		}
		m.Linedefs[i] = ld
	}

	m.Subsectors = make([]Subsector, len(d.Subsectors))
	for i, ss := range d.Subsectors {
		sub, err := buildSubsector(d, m, i, ss)
		if err != nil {
			return nil, err
		}
		m.Subsectors[i] = sub
		m.Sectors[sub.Sector].Subsectors = append(m.Sectors[sub.Sector].Subsectors, SubsectorID(i))
	}

	m.Nodes = make([]Node, len(d.Nodes))
	for i, n := range d.Nodes {
		line := geom.Line2{Point: geom.V2(n.X, n.Y), Dir: geom.V2(n.DX, n.DY)}
		m.Nodes[i] = Node{
			Partition: line,
			Normal:    line.Normal(),
			Children:  [2]NodeRef{childRef(n.Front), childRef(n.Back)},
		}
	}
	if len(m.Nodes) > 0 {
		m.Root = NodeIndex(len(m.Nodes) - 1)
	} else {
		m.Root = LeafRef(0)
	}

	world := m.Bounds.Expand(boundsMargin).Corners()
	if err := m.buildRegions(d, m.Root, world[:]); err != nil {
		return nil, err
	}
	m.buildNodeBounds(m.Root)

	for i := range m.Sectors {
		if len(m.Sectors[i].Subsectors) == 0 {
			return nil, invalid(d, "sector %d has no subsectors", i)
		}
	}

	m.Things = make([]Thing, len(d.Things))
	for i, t := range d.Things {
		m.Things[i] = Thing{
			Pos:   geom.V2(t.X, t.Y),
			Angle: t.Angle * math.Pi / 180,
			Type:  t.Type,
			Flags: t.Flags,
		}
	}
	return m, nil
}

func addNeighbour(s *Sector, n SectorID) {
	i := sort.Search(len(s.Neighbours), func(i int) bool { return s.Neighbours[i] >= n })
	if i < len(s.Neighbours) && s.Neighbours[i] == n {
		return
	}
	s.Neighbours = append(s.Neighbours, 0)
	copy(s.Neighbours[i+1:], s.Neighbours[i:])
	s.Neighbours[i] = n
}

func validateBase(d *Data) error {
	if len(d.Sectors) == 0 {
		return invalid(d, "no sectors")
	}
	if len(d.Linedefs) == 0 {
		return invalid(d, "no linedefs")
	}
	for i, s := range d.Sidedefs {
		if s.Sector < 0 || s.Sector >= len(d.Sectors) {
			return invalid(d, "sidedef %d has invalid sector index %d", i, s.Sector)
		}
	}
	for i, l := range d.Linedefs {
		if l.V1 < 0 || l.V1 >= len(d.Vertices) || l.V2 < 0 || l.V2 >= len(d.Vertices) {
			return invalid(d, "linedef %d has invalid vertex index", i)
		}
		if l.Front < 0 || l.Front >= len(d.Sidedefs) {
			return invalid(d, "linedef %d has invalid front sidedef %d", i, l.Front)
		}
		if l.Back >= len(d.Sidedefs) || l.Back < -1 {
			return invalid(d, "linedef %d has invalid back sidedef %d", i, l.Back)
		}
	}
	for i, s := range d.Sectors {
		if s.Ceiling < s.Floor {
			return invalid(d, "sector %d has ceiling below floor", i)
		}
	}
	return nil
}

func validateTree(d *Data) error {
	for i, s := range d.Segs {
		if s.V1 < 0 || s.V1 >= len(d.Vertices) || s.V2 < 0 || s.V2 >= len(d.Vertices) {
			return invalid(d, "seg %d has invalid vertex index", i)
		}
		if s.Linedef >= len(d.Linedefs) || s.Linedef < -1 {
			return invalid(d, "seg %d has invalid linedef index %d", i, s.Linedef)
		}
		if s.Side != 0 && s.Side != 1 {
			return invalid(d, "seg %d has invalid side %d", i, s.Side)
		}
		if s.Linedef >= 0 && s.Side == 1 && d.Linedefs[s.Linedef].Back < 0 {
			return invalid(d, "seg %d references missing back side of linedef %d", i, s.Linedef)
		}
	}
	if len(d.Subsectors) == 0 {
		return invalid(d, "no subsectors")
	}
	for i, ss := range d.Subsectors {
		if ss.SegCount <= 0 {
			return invalid(d, "subsector %d has no segs", i)
		}
		if ss.FirstSeg < 0 || ss.FirstSeg >= len(d.Segs) {
			return invalid(d, "subsector %d has invalid first seg index %d", i, ss.FirstSeg)
		}
		if ss.FirstSeg+ss.SegCount > len(d.Segs) {
			return invalid(d, "subsector %d has overflowing seg count %d", i, ss.SegCount)
		}
	}
	for i, n := range d.Nodes {
		if n.DX == 0 && n.DY == 0 {
			return invalid(d, "node %d has a zero-length partition", i)
		}
		for _, c := range [2]int{n.Front, n.Back} {
			if c >= 0 && c >= len(d.Nodes) {
				return invalid(d, "node %d has invalid child node index %d", i, c)
			}
			if c < 0 && -(c+1) >= len(d.Subsectors) {
				return invalid(d, "node %d has invalid subsector index %d", i, -(c + 1))
			}
		}
	}
	if len(d.Nodes) == 0 {
		if len(d.Subsectors) != 1 {
			return invalid(d, "%d subsectors but no nodes", len(d.Subsectors))
		}
		return nil
	}

	// The node graph must be a tree rooted at the last node that reaches every
	// node and subsector exactly once.
	seenNode := make([]bool, len(d.Nodes))
	seenLeaf := make([]bool, len(d.Subsectors))
	stack := []int{len(d.Nodes) - 1}
	seenNode[len(d.Nodes)-1] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range [2]int{d.Nodes[i].Front, d.Nodes[i].Back} {
			if c < 0 {
				leaf := -(c + 1)
				if seenLeaf[leaf] {
					return invalid(d, "subsector %d referenced twice", leaf)
				}
				seenLeaf[leaf] = true
				continue
			}
			if seenNode[c] {
				return invalid(d, "node %d referenced twice or part of a cycle", c)
			}
			seenNode[c] = true
			stack = append(stack, c)
		}
	}
	for i, ok := range seenNode {
		if !ok {
			return invalid(d, "node %d unreachable from root", i)
		}
	}
	for i, ok := range seenLeaf {
		if !ok {
			return invalid(d, "subsector %d unreachable from root", i)
		}
	}
	return nil
}

func buildSubsector(d *Data, m *Map, index int, ss SubsectorData) (Subsector, error) {
	sub := Subsector{Sector: NoSector, Segs: make([]Seg, 0, ss.SegCount)}
	for _, sd := range d.Segs[ss.FirstSeg : ss.FirstSeg+ss.SegCount] {
		a, b := m.Vertices[sd.V1], m.Vertices[sd.V2]
		line := geom.LineBetween(a, b)
		seg := Seg{
			Line:    line,
			Normal:  line.Normal(),
			Linedef: LinedefID(sd.Linedef),
			Side:    geom.Side(sd.Side),
			Front:   NoSector,
			Back:    NoSector,
		}
		if sd.Linedef >= 0 {
			ld := &m.Linedefs[sd.Linedef]
			seg.Front = m.Sidedefs[ld.Sides[sd.Side]].Sector
			if other := ld.Sides[1-sd.Side]; other != NoSide {
				seg.Back = m.Sidedefs[other].Sector
			}
			switch {
			case sub.Sector == NoSector:
				sub.Sector = seg.Front
			case sub.Sector != seg.Front:
				return sub, invalid(d, "subsector %d spans sectors %d and %d", index, sub.Sector, seg.Front)
			}
		}
		sub.Segs = append(sub.Segs, seg)
	}
	if sub.Sector == NoSector {
		return sub, invalid(d, "no sector could be found for subsector %d", index)
	}
	for i := range sub.Segs {
		if sub.Segs[i].Miniseg() {
			sub.Segs[i].Front = sub.Sector
		}
	}
	return sub, nil
}

// buildRegions computes each subsector's convex region: the map bounds
// clipped by every ancestor half-space and by the front of its own segs.
func (m *Map) buildRegions(d *Data, ref NodeRef, region []geom.Vec2) error {
	if ref.IsLeaf() {
		id := ref.Subsector()
		sub := &m.Subsectors[id]
		poly := region
		for i := range sub.Segs {
			s := &sub.Segs[i]
			if s.Line.Dir.LenSq() < geom.Epsilon {
				continue
			}
			poly = geom.ClipPolygon(poly, s.Line)
		}
		if len(poly) < 3 || geom.PolygonArea(poly) <= 1e-6 {
			return invalid(d, "subsector %d has an empty region", id)
		}
		sub.Polygon = poly
		sub.BBox = geom.PolygonBox(poly)
		return nil
	}
	n := &m.Nodes[ref.Node()]
	front := geom.ClipPolygon(region, n.Partition)
	back := geom.ClipPolygon(region, geom.Line2{Point: n.Partition.Point, Dir: n.Partition.Dir.Neg()})
	if err := m.buildRegions(d, n.Children[0], front); err != nil {
		return err
	}
	return m.buildRegions(d, n.Children[1], back)
}

func (m *Map) buildNodeBounds(ref NodeRef) geom.AABB2 {
	if ref.IsLeaf() {
		return m.Subsectors[ref.Subsector()].BBox
	}
	n := &m.Nodes[ref.Node()]
	n.BBox[0] = m.buildNodeBounds(n.Children[0])
	n.BBox[1] = m.buildNodeBounds(n.Children[1])
	return n.BBox[0].Union(n.BBox[1])
}
