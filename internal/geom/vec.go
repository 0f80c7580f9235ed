// Package geom holds the float64 vector, line and box primitives shared by the
// map graph, the collision solver and the visibility solver.
package geom

import "math"

// Epsilon is the tolerance used for side and overlap tests.
const Epsilon = 1e-9

// Vec2 is a point or direction on the map plane.
type Vec2 struct {
	X, Y float64
}

func V2(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (a Vec2) Add(b Vec2) Vec2      { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2      { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Scale(s float64) Vec2 { return Vec2{a.X * s, a.Y * s} }
func (a Vec2) Dot(b Vec2) float64   { return a.X*b.X + a.Y*b.Y }
func (a Vec2) Cross(b Vec2) float64 { return a.X*b.Y - a.Y*b.X }
func (a Vec2) LenSq() float64       { return a.X*a.X + a.Y*a.Y }
func (a Vec2) Len() float64         { return math.Sqrt(a.LenSq()) }
func (a Vec2) Neg() Vec2            { return Vec2{-a.X, -a.Y} }
func (a Vec2) IsZero() bool         { return a.X == 0 && a.Y == 0 }
func (a Vec2) Dist(b Vec2) float64  { return a.Sub(b).Len() }
func (a Vec2) Vec3(z float64) Vec3  { return Vec3{a.X, a.Y, z} }
func (a Vec2) Lerp(b Vec2, t float64) Vec2 {
	return Vec2{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
}

// Normalize returns the unit vector, or zero for a zero-length input.
func (a Vec2) Normalize() Vec2 {
	l := a.Len()
	if l == 0 {
		return Vec2{}
	}
	inv := 1 / l
	return Vec2{a.X * inv, a.Y * inv}
}

// Perp returns the right-hand perpendicular (dir.Y, -dir.X). With y pointing
// north this is the normal on the front side of a line running along a.
func (a Vec2) Perp() Vec2 { return Vec2{a.Y, -a.X} }

// Rotate rotates a counter-clockwise by angle radians.
func (a Vec2) Rotate(angle float64) Vec2 {
	s, c := math.Sincos(angle)
	return Vec2{a.X*c - a.Y*s, a.X*s + a.Y*c}
}

// ApproxEqual compares component-wise within tol.
func (a Vec2) ApproxEqual(b Vec2, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}

// FromAngle returns the unit direction for a map angle (0 = east, CCW).
func FromAngle(angle float64) Vec2 {
	s, c := math.Sincos(angle)
	return Vec2{c, s}
}

// Vec3 is a world-space position; Z is height.
type Vec3 struct {
	X, Y, Z float64
}

func V3(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) XY() Vec2             { return Vec2{a.X, a.Y} }
func (a Vec3) Len() float64         { return math.Sqrt(a.Dot(a)) }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l == 0 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// NormalizeAngle wraps an angle into [-pi, pi).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
