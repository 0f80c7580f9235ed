package geom

import "math"

// Side is the half-space classification against a directed line.
type Side uint8

const (
	Front Side = iota
	Back
)

func (s Side) Opposite() Side { return s ^ 1 }

func (s Side) String() string {
	if s == Front {
		return "front"
	}
	return "back"
}

// Line2 is a directed line through Point along Dir. Dir is not normalized;
// for segments Point+Dir is the end point.
type Line2 struct {
	Point Vec2
	Dir   Vec2
}

func LineBetween(a, b Vec2) Line2 { return Line2{Point: a, Dir: b.Sub(a)} }

func (l Line2) End() Vec2 { return l.Point.Add(l.Dir) }

// Normal is the unit front normal.
func (l Line2) Normal() Vec2 { return l.Dir.Perp().Normalize() }

// Distance returns the signed distance scaled by |Dir|; positive is front.
func (l Line2) Distance(p Vec2) float64 {
	return p.Sub(l.Point).Dot(l.Dir.Perp())
}

// PointSide classifies p. Points exactly on the line are Front.
func (l Line2) PointSide(p Vec2) Side {
	if l.Distance(p) >= 0 {
		return Front
	}
	return Back
}

// Intersect returns the parameter along l where it crosses m.
func (l Line2) Intersect(m Line2) (float64, bool) {
	den := l.Dir.Cross(m.Dir)
	if math.Abs(den) < Epsilon {
		return 0, false
	}
	return m.Point.Sub(l.Point).Cross(m.Dir) / den, true
}

// ClosestPoint returns the point on the segment nearest to p and its
// parameter clamped to [0, 1].
func (l Line2) ClosestPoint(p Vec2) (Vec2, float64) {
	ll := l.Dir.LenSq()
	if ll == 0 {
		return l.Point, 0
	}
	t := p.Sub(l.Point).Dot(l.Dir) / ll
	t = math.Max(0, math.Min(1, t))
	return l.Point.Add(l.Dir.Scale(t)), t
}

// AABB2 is an axis-aligned box. The zero value is not empty; use EmptyBox.
type AABB2 struct {
	Min, Max Vec2
}

func EmptyBox() AABB2 {
	inf := math.Inf(1)
	return AABB2{Min: Vec2{inf, inf}, Max: Vec2{-inf, -inf}}
}

func BoxAround(c Vec2, r float64) AABB2 {
	return AABB2{Min: Vec2{c.X - r, c.Y - r}, Max: Vec2{c.X + r, c.Y + r}}
}

func (b AABB2) IsEmpty() bool { return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y }

func (b *AABB2) AddPoint(p Vec2) {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
}

func (b AABB2) Union(o AABB2) AABB2 {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	b.AddPoint(o.Min)
	b.AddPoint(o.Max)
	return b
}

func (b AABB2) Expand(r float64) AABB2 {
	return AABB2{Min: Vec2{b.Min.X - r, b.Min.Y - r}, Max: Vec2{b.Max.X + r, b.Max.Y + r}}
}

func (b AABB2) Intersects(o AABB2) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y
}

func (b AABB2) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Corners returns the box corners counter-clockwise from Min.
func (b AABB2) Corners() [4]Vec2 {
	return [4]Vec2{b.Min, {b.Max.X, b.Min.Y}, b.Max, {b.Min.X, b.Max.Y}}
}

// LineSide reports which half-spaces of l the box touches.
func (b AABB2) LineSide(l Line2) (front, back bool) {
	for _, c := range b.Corners() {
		if l.Distance(c) >= 0 {
			front = true
		} else {
			back = true
		}
	}
	return front, back
}

// ClipPolygon keeps the part of the convex polygon on the front of l.
func ClipPolygon(poly []Vec2, l Line2) []Vec2 {
	if len(poly) == 0 {
		return nil
	}
	out := make([]Vec2, 0, len(poly)+1)
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		da := l.Distance(a)
		db := l.Distance(b)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			out = append(out, a.Lerp(b, t))
		}
	}
	return dedupe(out)
}

func dedupe(poly []Vec2) []Vec2 {
	if len(poly) < 2 {
		return poly
	}
	out := poly[:1]
	for _, p := range poly[1:] {
		if !p.ApproxEqual(out[len(out)-1], 1e-7) {
			out = append(out, p)
		}
	}
	if len(out) > 1 && out[0].ApproxEqual(out[len(out)-1], 1e-7) {
		out = out[:len(out)-1]
	}
	return out
}

// PolygonArea returns the signed area; positive for counter-clockwise.
func PolygonArea(poly []Vec2) float64 {
	var a float64
	for i := range poly {
		j := (i + 1) % len(poly)
		a += poly[i].Cross(poly[j])
	}
	return a / 2
}

// PolygonContains tests a point against a convex counter-clockwise polygon
// with tolerance tol.
func PolygonContains(poly []Vec2, p Vec2, tol float64) bool {
	if len(poly) < 3 {
		return false
	}
	for i := range poly {
		e := LineBetween(poly[i], poly[(i+1)%len(poly)])
		l := e.Dir.Len()
		if l == 0 {
			continue
		}
		// CCW polygon: interior is on the left, i.e. negative Distance.
		if e.Distance(p)/l > tol {
			return false
		}
	}
	return true
}

func PolygonBox(poly []Vec2) AABB2 {
	b := EmptyBox()
	for _, p := range poly {
		b.AddPoint(p)
	}
	return b
}

// Interval is a closed height range.
type Interval struct {
	Min, Max float64
}

func (i Interval) Size() float64 { return i.Max - i.Min }

func (i Interval) Intersect(o Interval) Interval {
	return Interval{Min: math.Max(i.Min, o.Min), Max: math.Min(i.Max, o.Max)}
}
