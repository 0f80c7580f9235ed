package term

import (
	"math"

	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/render"
)

// Cell is one rasterized character cell.
type Cell struct {
	Rune   rune
	Kind   render.SurfaceKind
	Light  float64
	Sprite bool
	Empty  bool
}

// shades run from dark to bright.
var shades = []rune(" .:-=+*#%@")

// Raster is a character-cell framebuffer with a depth buffer.
type Raster struct {
	W, H  int
	Cells []Cell
	depth []float64
}

func NewRaster(w, h int) *Raster {
	r := &Raster{}
	r.Resize(w, h)
	return r
}

func (r *Raster) Resize(w, h int) {
	r.W, r.H = max(w, 1), max(h, 1)
	r.Cells = make([]Cell, r.W*r.H)
	r.depth = make([]float64, r.W*r.H)
	r.Clear()
}

func (r *Raster) Clear() {
	for i := range r.Cells {
		r.Cells[i] = Cell{Rune: ' ', Empty: true}
		r.depth[i] = math.Inf(1)
	}
}

func (r *Raster) At(x, y int) Cell { return r.Cells[y*r.W+x] }

// clip is a point in homogeneous clip space.
type clip struct{ x, y, z, w float64 }

func project(m geom.Mat4, p geom.Vec3) clip {
	v := [4]float64{p.X, p.Y, p.Z, 1}
	var c [4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			c[i] += m.At(i, j) * v[j]
		}
	}
	return clip{c[0], c[1], c[2], c[3]}
}

// clipNear keeps the part of poly in front of the near plane (z >= -w).
func clipNear(poly []clip) []clip {
	var out []clip
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		da, db := a.z+a.w, b.z+b.w
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			out = append(out, clip{
				a.x + (b.x-a.x)*t,
				a.y + (b.y-a.y)*t,
				a.z + (b.z-a.z)*t,
				a.w + (b.w-a.w)*t,
			})
		}
	}
	return out
}

type screenPt struct{ x, y, z float64 }

func (r *Raster) toScreen(c clip) screenPt {
	return screenPt{
		x: (c.x/c.w + 1) / 2 * float64(r.W),
		y: (1 - c.y/c.w) / 2 * float64(r.H),
		z: c.z / c.w,
	}
}

// Polygon fills a convex world-space polygon.
func (r *Raster) Polygon(mvp geom.Mat4, pts []geom.Vec3, cell Cell) {
	if len(pts) < 3 {
		return
	}
	cl := make([]clip, len(pts))
	for i, p := range pts {
		cl[i] = project(mvp, p)
	}
	cl = clipNear(cl)
	if len(cl) < 3 {
		return
	}
	sp := make([]screenPt, len(cl))
	for i, c := range cl {
		sp[i] = r.toScreen(c)
	}
	for i := 1; i+1 < len(sp); i++ {
		r.triangle(sp[0], sp[i], sp[i+1], cell)
	}
}

func edge(a, b screenPt, x, y float64) float64 {
	return (b.x-a.x)*(y-a.y) - (b.y-a.y)*(x-a.x)
}

func (r *Raster) triangle(a, b, c screenPt, cell Cell) {
	area := edge(a, b, c.x, c.y)
	if area == 0 {
		return
	}
	x0 := max(0, int(math.Floor(min(a.x, b.x, c.x))))
	x1 := min(r.W-1, int(math.Ceil(max(a.x, b.x, c.x))))
	y0 := max(0, int(math.Floor(min(a.y, b.y, c.y))))
	y1 := min(r.H-1, int(math.Ceil(max(a.y, b.y, c.y))))
	for y := y0; y <= y1; y++ {
		py := float64(y) + 0.5
		for x := x0; x <= x1; x++ {
			px := float64(x) + 0.5
			w0 := edge(b, c, px, py) / area
			w1 := edge(c, a, px, py) / area
			w2 := edge(a, b, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*a.z + w1*b.z + w2*c.z
			i := y*r.W + x
			if z >= r.depth[i] {
				continue
			}
			r.depth[i] = z
			r.Cells[i] = cell
		}
	}
}

func shade(light float64) rune {
	i := int(light * float64(len(shades)-1))
	return shades[min(max(i, 1), len(shades)-1)]
}

// Draw rasterizes a whole draw list.
func (r *Raster) Draw(dl *render.DrawList) {
	r.Clear()
	mvp := dl.Camera.Projection.Mul(dl.Camera.View)
	for _, s := range dl.Surfaces {
		r.Polygon(mvp, s.Points, Cell{Rune: shade(s.Light), Kind: s.Kind, Light: s.Light})
	}
	right, up := dl.Camera.Right, dl.Camera.Up
	if up == (geom.Vec3{}) {
		up = geom.V3(0, 0, 1)
	}
	for _, b := range dl.Billboards {
		half := right.Scale(b.Width / 2)
		top := up.Scale(b.Height)
		quad := []geom.Vec3{
			b.Pos.Sub(half),
			b.Pos.Add(half),
			b.Pos.Add(half).Add(top),
			b.Pos.Sub(half).Add(top),
		}
		ch := '?'
		if b.Texture != "" {
			ch = []rune(b.Texture)[0]
		}
		r.Polygon(mvp, quad, Cell{Rune: ch, Light: b.Light, Sprite: true})
	}
}
