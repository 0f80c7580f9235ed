// Package level holds the immutable BSP map graph: sectors, linedefs, segs,
// convex subsectors and the partition tree over them. A Map is only ever
// produced by Build, which validates every cross reference, and is never
// mutated afterwards, so any number of goroutines may read it.
package level

import (
	"github.com/sectorgo/engine/internal/geom"
)

type (
	SectorID    int32
	SubsectorID int32
	LinedefID   int32
	SidedefID   int32
)

const (
	NoSector    SectorID    = -1
	NoSubsector SubsectorID = -1
	NoLine      LinedefID   = -1
	NoSide      SidedefID   = -1
)

// LineFlags uses the classic linedef flag bits.
type LineFlags uint16

const (
	LineBlocking      LineFlags = 1 << iota // blocks everything
	LineBlockMonsters                       // blocks monsters only
	LineTwoSided
	LineUpperUnpegged
	LineLowerUnpegged
	LineSecret
	LineBlockSound
	LineNoAutomap
)

func (f LineFlags) Has(o LineFlags) bool { return f&o != 0 }

// ThingFlags selects the skill levels and modes a thing spawns in.
type ThingFlags uint16

const (
	ThingEasy ThingFlags = 1 << iota
	ThingNormal
	ThingHard
	ThingMultiOnly
)

// Sky is the flat name that marks a sky ceiling.
const Sky = "F_SKY1"

type Sector struct {
	Floor          float64
	Ceiling        float64
	Light          float64 // 0..1
	Special        uint16
	Tag            uint16
	FloorTexture   string
	CeilingTexture string
	Subsectors     []SubsectorID
	Neighbours     []SectorID // sorted
}

type Sidedef struct {
	Sector SectorID
	Upper  string
	Middle string
	Lower  string
	Offset geom.Vec2
}

type Linedef struct {
	Line    geom.Line2
	Normal  geom.Vec2
	BBox    geom.AABB2
	Flags   LineFlags
	Special uint16
	Tag     uint16
	Sides   [2]SidedefID
}

func (l *Linedef) TwoSided() bool { return l.Sides[1] != NoSide }

// Seg is one wall segment of a subsector. Its sector lies on the front
// (right-hand) side of Line.
type Seg struct {
	Line    geom.Line2
	Normal  geom.Vec2
	Linedef LinedefID
	Side    geom.Side
	Front   SectorID
	Back    SectorID
}

// Miniseg reports a seg along a partition line with no linedef behind it.
func (s *Seg) Miniseg() bool { return s.Linedef == NoLine }

// Solid reports a one-sided wall.
func (s *Seg) Solid() bool { return !s.Miniseg() && s.Back == NoSector }

type Subsector struct {
	Segs    []Seg
	Sector  SectorID
	Polygon []geom.Vec2 // convex, counter-clockwise
	BBox    geom.AABB2
}

// NodeRef addresses a node, or a subsector when LeafFlag is set.
type NodeRef uint32

const LeafFlag NodeRef = 0x80000000

func LeafRef(id SubsectorID) NodeRef { return NodeRef(id) | LeafFlag }
func NodeIndex(i int) NodeRef        { return NodeRef(i) }

func (r NodeRef) IsLeaf() bool           { return r&LeafFlag != 0 }
func (r NodeRef) Subsector() SubsectorID { return SubsectorID(r &^ LeafFlag) }
func (r NodeRef) Node() int              { return int(r) }

type Node struct {
	Partition geom.Line2
	Normal    geom.Vec2
	BBox      [2]geom.AABB2 // front, back
	Children  [2]NodeRef    // front, back
}

// PointSide classifies p against the partition; on-line points are Front.
func (n *Node) PointSide(p geom.Vec2) geom.Side {
	return n.Partition.PointSide(p)
}

type Thing struct {
	Pos   geom.Vec2
	Angle float64 // radians
	Type  uint16
	Flags ThingFlags
}

// Map is the loaded, validated level.
type Map struct {
	Name       string
	Digest     string
	Vertices   []geom.Vec2
	Linedefs   []Linedef
	Sidedefs   []Sidedef
	Sectors    []Sector
	Subsectors []Subsector
	Nodes      []Node
	Root       NodeRef
	Bounds     geom.AABB2
	Things     []Thing
}
