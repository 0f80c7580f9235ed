package render

import (
	"math"
	"slices"

	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/visibility"
	"github.com/sectorgo/engine/internal/world"
)

const (
	defaultAspect = 4.0 / 3.0
	defaultFar    = 8192
)

// SpriteSource resolves what to draw for an entity of the visible set.
type SpriteSource func(id ecs.EntityID) (pos geom.Vec3, sp component.Sprite, ok bool)

// Builder converts visible sets into draw lists for one level.
type Builder struct {
	m       *level.Map
	st      *world.MapState
	sprites SpriteSource
	Aspect  float64
	Far     float64
}

func NewBuilder(st *world.MapState, sprites SpriteSource) *Builder {
	return &Builder{m: st.Map(), st: st, sprites: sprites, Aspect: defaultAspect, Far: defaultFar}
}

// SetSprites replaces the sprite lookup.
func (b *Builder) SetSprites(src SpriteSource) { b.sprites = src }

// Build resets dl and fills it from vs. Surfaces keep the front-to-back order
// of vs; billboards are sorted back to front, ties by entity id.
func (b *Builder) Build(dl *DrawList, vs *visibility.VisibleSet, cam visibility.Camera) {
	dl.Reset()
	dl.Level = b.m.Name
	dl.Camera = b.camera(cam)

	segs := vs.Segs
	for _, it := range vs.Items {
		switch it.Kind {
		case visibility.ItemSubsector:
			n := 0
			for n < len(segs) && segs[n].Subsector == it.Subsector {
				n++
			}
			b.subsector(dl, it.Subsector, segs[:n], cam.Pos.Z)
			segs = segs[n:]
		case visibility.ItemEntity:
			b.billboard(dl, it)
		}
	}
	slices.SortStableFunc(dl.Billboards, func(a, c Billboard) int {
		switch {
		case a.Depth > c.Depth:
			return -1
		case a.Depth < c.Depth:
			return 1
		case a.Entity < c.Entity:
			return -1
		case a.Entity > c.Entity:
			return 1
		}
		return 0
	})
}

func (b *Builder) subsector(dl *DrawList, id level.SubsectorID, refs []visibility.SegRef, eyeZ float64) {
	sub := &b.m.Subsectors[id]
	sec := sub.Sector
	light := b.st.Light(sec)
	for _, ref := range refs {
		b.walls(dl, id, ref.Index, &sub.Segs[ref.Index], light)
	}

	floor, ceil := b.st.FloorHeight(sec), b.st.CeilingHeight(sec)
	if eyeZ > floor {
		pts := dl.alloc(len(sub.Polygon))
		for i, p := range sub.Polygon {
			pts[i] = p.Vec3(floor)
		}
		dl.Surfaces = append(dl.Surfaces, Surface{
			Kind:      SurfaceFloor,
			Subsector: id,
			Seg:       -1,
			Points:    pts,
			Texture:   b.m.Sectors[sec].FloorTexture,
			Light:     light,
		})
	}
	if eyeZ < ceil {
		// Reversed so the plane faces down.
		n := len(sub.Polygon)
		pts := dl.alloc(n)
		for i, p := range sub.Polygon {
			pts[n-1-i] = p.Vec3(ceil)
		}
		kind := SurfaceCeiling
		tex := b.m.Sectors[sec].CeilingTexture
		if tex == level.Sky {
			kind = SurfaceSky
		}
		dl.Surfaces = append(dl.Surfaces, Surface{
			Kind: kind, Subsector: id, Seg: -1, Points: pts, Texture: tex, Light: light,
		})
	}
}

// walls emits the middle wall of a one-sided seg, or the upper and lower
// steps of a two-sided one.
func (b *Builder) walls(dl *DrawList, id level.SubsectorID, index int, seg *level.Seg, light float64) {
	side := &b.m.Sidedefs[b.m.Linedefs[seg.Linedef].Sides[seg.Side]]
	ff, fc := b.st.FloorHeight(seg.Front), b.st.CeilingHeight(seg.Front)
	if seg.Back == level.NoSector {
		b.quad(dl, id, index, seg, ff, fc, side.Middle, light)
		return
	}
	bf, bc := b.st.FloorHeight(seg.Back), b.st.CeilingHeight(seg.Back)
	bothSky := b.m.Sectors[seg.Front].CeilingTexture == level.Sky && b.m.Sectors[seg.Back].CeilingTexture == level.Sky
	if bc < fc && !bothSky {
		b.quad(dl, id, index, seg, max(bc, ff), fc, side.Upper, light)
	}
	if bf > ff {
		b.quad(dl, id, index, seg, ff, min(bf, fc), side.Lower, light)
	}
	if side.Middle != "" && side.Middle != "-" {
		b.quad(dl, id, index, seg, max(ff, bf), min(fc, bc), side.Middle, light)
	}
}

func (b *Builder) quad(dl *DrawList, id level.SubsectorID, index int, seg *level.Seg, bottom, top float64, tex string, light float64) {
	if top <= bottom {
		return
	}
	a, e := seg.Line.Point, seg.Line.End()
	pts := dl.alloc(4)
	pts[0] = a.Vec3(bottom)
	pts[1] = e.Vec3(bottom)
	pts[2] = e.Vec3(top)
	pts[3] = a.Vec3(top)
	dl.Surfaces = append(dl.Surfaces, Surface{
		Kind: SurfaceWall, Subsector: id, Seg: index, Points: pts, Texture: tex, Light: light,
	})
}

func (b *Builder) billboard(dl *DrawList, it visibility.Item) {
	if b.sprites == nil {
		return
	}
	pos, sp, ok := b.sprites(it.Entity)
	if !ok {
		return
	}
	light := b.st.Light(b.m.Subsectors[it.Subsector].Sector)
	if sp.FullBright {
		light = 1
	}
	dl.Billboards = append(dl.Billboards, Billboard{
		Entity:  it.Entity,
		Pos:     pos,
		Texture: sp.Texture,
		Frame:   sp.Frame,
		Width:   sp.Width,
		Height:  sp.Height,
		Light:   light,
		Depth:   it.Depth,
	})
}

func (b *Builder) camera(cam visibility.Camera) Camera {
	fov := cam.FOV
	if fov <= 0 || fov >= math.Pi {
		fov = math.Pi / 2
	}
	near := cam.Near
	if near <= 0 {
		near = 1
	}
	aspect := b.Aspect
	if aspect <= 0 {
		aspect = defaultAspect
	}
	far := b.Far
	if far <= near {
		far = defaultFar
	}
	fovY := 2 * math.Atan(math.Tan(fov/2)/aspect)

	flat := cam.Forward()
	cp := math.Cos(cam.Pitch)
	fwd := geom.V3(flat.X*cp, flat.Y*cp, math.Sin(cam.Pitch))
	up := geom.V3(0, 0, 1)
	return Camera{
		Pos:        cam.Pos,
		Projection: geom.Perspective(fovY, aspect, near, far),
		View:       geom.LookAt(cam.Pos, cam.Pos.Add(fwd), up),
		Right:      flat.Perp().Vec3(0),
		Up:         up,
	}
}
