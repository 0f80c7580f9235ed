package level

// Data is the raw, unvalidated level description handed over by the asset
// loader. Index fields refer into the sibling slices; -1 means "none".
// Segs, Subsectors and Nodes may be left empty, in which case Build runs the
// node builder over the linedefs first.
type Data struct {
	Name       string          `yaml:"name"`
	Vertices   []VertexData    `yaml:"vertices"`
	Linedefs   []LinedefData   `yaml:"linedefs"`
	Sidedefs   []SidedefData   `yaml:"sidedefs"`
	Sectors    []SectorData    `yaml:"sectors"`
	Things     []ThingData     `yaml:"things,omitempty"`
	Segs       []SegData       `yaml:"segs,omitempty"`
	Subsectors []SubsectorData `yaml:"subsectors,omitempty"`
	Nodes      []NodeData      `yaml:"nodes,omitempty"`
}

type VertexData struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type LinedefData struct {
	V1      int       `yaml:"v1"`
	V2      int       `yaml:"v2"`
	Flags   LineFlags `yaml:"flags,omitempty"`
	Special uint16    `yaml:"special,omitempty"`
	Tag     uint16    `yaml:"tag,omitempty"`
	Front   int       `yaml:"front"`
	Back    int       `yaml:"back"`
}

type SidedefData struct {
	Sector  int     `yaml:"sector"`
	Upper   string  `yaml:"upper,omitempty"`
	Middle  string  `yaml:"middle,omitempty"`
	Lower   string  `yaml:"lower,omitempty"`
	OffsetX float64 `yaml:"offset_x,omitempty"`
	OffsetY float64 `yaml:"offset_y,omitempty"`
}

type SectorData struct {
	Floor          float64 `yaml:"floor"`
	Ceiling        float64 `yaml:"ceiling"`
	FloorTexture   string  `yaml:"floor_texture,omitempty"`
	CeilingTexture string  `yaml:"ceiling_texture,omitempty"`
	Light          int     `yaml:"light"` // 0..255
	Special        uint16  `yaml:"special,omitempty"`
	Tag            uint16  `yaml:"tag,omitempty"`
}

type ThingData struct {
	X     float64    `yaml:"x"`
	Y     float64    `yaml:"y"`
	Angle float64    `yaml:"angle"` // degrees
	Type  uint16     `yaml:"type"`
	Flags ThingFlags `yaml:"flags,omitempty"`
}

type SegData struct {
	V1      int `yaml:"v1"`
	V2      int `yaml:"v2"`
	Linedef int `yaml:"linedef"`
	Side    int `yaml:"side"`
}

type SubsectorData struct {
	FirstSeg int `yaml:"first_seg"`
	SegCount int `yaml:"seg_count"`
}

// NodeData children: a value >= 0 is a node index, a negative value v is
// subsector -(v+1).
type NodeData struct {
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	DX    float64 `yaml:"dx"`
	DY    float64 `yaml:"dy"`
	Front int     `yaml:"front"`
	Back  int     `yaml:"back"`
}

// ChildLeaf encodes subsector i as a NodeData child.
func ChildLeaf(i int) int { return -(i + 1) }

func childRef(v int) NodeRef {
	if v < 0 {
		return LeafRef(SubsectorID(-(v + 1)))
	}
	return NodeIndex(v)
}
