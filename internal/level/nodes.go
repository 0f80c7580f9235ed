package level

import (
	"math"

	"github.com/sectorgo/engine/internal/geom"
)

const (
	splitEpsilon = 1e-6
	splitCost    = 8
)

type buildSeg struct {
	v1, v2  int
	linedef int
	side    int
	sector  int
	line    geom.Line2
}

type segClass uint8

const (
	classFront segClass = iota
	classBack
	classSplit
)

// BuildNodes partitions the linedefs of d into convex subsectors and fills
// d.Segs, d.Subsectors and d.Nodes. Nodes are appended in post-order so the
// last one is the root. The output depends only on the input order.
func BuildNodes(d *Data) error {
	d.Segs = d.Segs[:0]
	d.Subsectors = d.Subsectors[:0]
	d.Nodes = d.Nodes[:0]

	var segs []buildSeg
	for i, l := range d.Linedefs {
		a := geom.V2(d.Vertices[l.V1].X, d.Vertices[l.V1].Y)
		b := geom.V2(d.Vertices[l.V2].X, d.Vertices[l.V2].Y)
		if a.ApproxEqual(b, splitEpsilon) {
			continue
		}
		segs = append(segs, buildSeg{
			v1:      l.V1,
			v2:      l.V2,
			linedef: i,
			side:    0,
			sector:  d.Sidedefs[l.Front].Sector,
			line:    geom.LineBetween(a, b),
		})
		if l.Back >= 0 {
			segs = append(segs, buildSeg{
				v1:      l.V2,
				v2:      l.V1,
				linedef: i,
				side:    1,
				sector:  d.Sidedefs[l.Back].Sector,
				line:    geom.LineBetween(b, a),
			})
		}
	}
	if len(segs) == 0 {
		return invalid(d, "no usable linedefs")
	}
	b := &nodeBuilder{d: d}
	if _, err := b.build(segs); err != nil {
		return err
	}
	return nil
}

type nodeBuilder struct {
	d *Data
}

func classify(splitter geom.Line2, s buildSeg) (segClass, float64, float64) {
	l := splitter.Dir.Len()
	da := splitter.Distance(s.line.Point) / l
	db := splitter.Distance(s.line.End()) / l
	switch {
	case math.Abs(da) < splitEpsilon && math.Abs(db) < splitEpsilon:
		if s.line.Dir.Dot(splitter.Dir) > 0 {
			return classFront, da, db
		}
		return classBack, da, db
	case da >= -splitEpsilon && db >= -splitEpsilon:
		return classFront, da, db
	case da <= splitEpsilon && db <= splitEpsilon:
		return classBack, da, db
	}
	return classSplit, da, db
}

// convex reports whether every seg lies in front of every other seg and all
// segs face the same sector.
func convex(segs []buildSeg) bool {
	for i := range segs {
		if segs[i].sector != segs[0].sector {
			return false
		}
		for j := range segs {
			if i == j {
				continue
			}
			if c, _, _ := classify(segs[i].line, segs[j]); c != classFront {
				return false
			}
		}
	}
	return true
}

func (b *nodeBuilder) build(segs []buildSeg) (int, error) {
	if convex(segs) {
		return b.leaf(segs), nil
	}
	best := -1
	bestScore := math.MaxInt
	for i := range segs {
		front, back, splits := 0, 0, 0
		for j := range segs {
			switch c, _, _ := classify(segs[i].line, segs[j]); c {
			case classFront:
				front++
			case classBack:
				back++
			default:
				splits++
			}
		}
		if front+splits == 0 || back+splits == 0 {
			continue
		}
		diff := front - back
		if diff < 0 {
			diff = -diff
		}
		if score := splits*splitCost + diff; score < bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return 0, invalid(b.d, "cannot partition %d segs starting at linedef %d", len(segs), segs[0].linedef)
	}

	splitter := segs[best].line
	var front, back []buildSeg
	for _, s := range segs {
		c, da, db := classify(splitter, s)
		switch c {
		case classFront:
			front = append(front, s)
		case classBack:
			back = append(back, s)
		default:
			p := s.line.Point.Lerp(s.line.End(), da/(da-db))
			vi := len(b.d.Vertices)
			b.d.Vertices = append(b.d.Vertices, VertexData{X: p.X, Y: p.Y})
			first := buildSeg{v1: s.v1, v2: vi, linedef: s.linedef, side: s.side, sector: s.sector, line: geom.LineBetween(s.line.Point, p)}
			second := buildSeg{v1: vi, v2: s.v2, linedef: s.linedef, side: s.side, sector: s.sector, line: geom.LineBetween(p, s.line.End())}
			if da > 0 {
				front, back = append(front, first), append(back, second)
			} else {
				back, front = append(back, first), append(front, second)
			}
		}
	}

	fc, err := b.build(front)
	if err != nil {
		return 0, err
	}
	bc, err := b.build(back)
	if err != nil {
		return 0, err
	}
	b.d.Nodes = append(b.d.Nodes, NodeData{
		X:     splitter.Point.X,
		Y:     splitter.Point.Y,
		DX:    splitter.Dir.X,
		DY:    splitter.Dir.Y,
		Front: fc,
		Back:  bc,
	})
	return len(b.d.Nodes) - 1, nil
}

func (b *nodeBuilder) leaf(segs []buildSeg) int {
	first := len(b.d.Segs)
	for _, s := range segs {
		b.d.Segs = append(b.d.Segs, SegData{V1: s.v1, V2: s.v2, Linedef: s.linedef, Side: s.side})
	}
	b.d.Subsectors = append(b.d.Subsectors, SubsectorData{FirstSeg: first, SegCount: len(segs)})
	return ChildLeaf(len(b.d.Subsectors) - 1)
}
