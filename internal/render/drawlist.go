// Package render turns a visible set into a backend-neutral draw list and
// hands finished lists to a Backend on a separate goroutine.
package render

import (
	"context"

	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
)

type SurfaceKind uint8

const (
	SurfaceWall SurfaceKind = iota
	SurfaceFloor
	SurfaceCeiling
	SurfaceSky
)

func (k SurfaceKind) String() string {
	switch k {
	case SurfaceWall:
		return "wall"
	case SurfaceFloor:
		return "floor"
	case SurfaceCeiling:
		return "ceiling"
	}
	return "sky"
}

// Surface is an opaque polygon in world space. Seg is the index in the
// subsector's segs for walls and -1 for planes.
type Surface struct {
	Kind      SurfaceKind
	Subsector level.SubsectorID
	Seg       int
	Points    []geom.Vec3
	Texture   string
	Light     float64
}

// Billboard is a camera-facing sprite standing at Pos.
type Billboard struct {
	Entity  ecs.EntityID
	Pos     geom.Vec3
	Texture string
	Frame   int
	Width   float64
	Height  float64
	Light   float64
	Depth   float64
}

// Camera carries the matrices and the billboard basis for one frame.
type Camera struct {
	Pos        geom.Vec3
	Projection geom.Mat4
	View       geom.Mat4
	Right      geom.Vec3
	Up         geom.Vec3
}

// DrawList is one frame: surfaces front to back, then billboards back to
// front.
type DrawList struct {
	Tick       uint64
	Generation uint64
	Level      string
	Camera     Camera
	Surfaces   []Surface
	Billboards []Billboard

	points []geom.Vec3
}

func (d *DrawList) Reset() {
	d.Surfaces = d.Surfaces[:0]
	d.Billboards = d.Billboards[:0]
	d.points = d.points[:0]
}

// alloc returns n points backed by the list's arena.
func (d *DrawList) alloc(n int) []geom.Vec3 {
	start := len(d.points)
	for i := 0; i < n; i++ {
		d.points = append(d.points, geom.Vec3{})
	}
	return d.points[start : start+n : start+n]
}

// Backend consumes finished draw lists. Submit may be slow; it is always
// called off the simulation goroutine and must honour ctx.
type Backend interface {
	Submit(ctx context.Context, dl *DrawList) error
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, dl *DrawList) error

func (f BackendFunc) Submit(ctx context.Context, dl *DrawList) error { return f(ctx, dl) }

// Multi fans a draw list out to several backends in order; the first error
// is returned after all have run.
type Multi []Backend

func (m Multi) Submit(ctx context.Context, dl *DrawList) error {
	var first error
	for _, b := range m {
		if err := b.Submit(ctx, dl); err != nil && first == nil {
			first = err
		}
	}
	return first
}
