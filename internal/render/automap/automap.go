// Package automap draws a top-down map of the lines the camera has seen and
// writes it out as PNG snapshots. It is a render.Backend and learns what is
// visible from the wall surfaces of each draw list.
package automap

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/render"
)

var (
	colBackground = color.RGBA{0, 0, 0, 255}
	colSolid      = color.RGBA{252, 0, 0, 255}
	colFloorStep  = color.RGBA{188, 120, 72, 255}
	colCeilStep   = color.RGBA{252, 252, 0, 255}
	colPortal     = color.RGBA{108, 108, 108, 255}
	colPlayer     = color.RGBA{0, 252, 0, 255}
	colVisible    = color.RGBA{120, 200, 255, 255}
)

type Config struct {
	Dir    string
	Every  uint64 // ticks between snapshots, 0 = never write
	Size   int    // pixels along the longer map axis
	Margin float64
}

// Writer accumulates seen linedefs for the current map.
type Writer struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	m       *level.Map
	seen    []bool
	visible []bool
	written int
}

func New(cfg Config, log *zap.Logger) *Writer {
	if cfg.Size <= 0 {
		cfg.Size = 512
	}
	if cfg.Margin <= 0 {
		cfg.Margin = 16
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{cfg: cfg, log: log}
}

// SetMap switches to m and forgets everything seen on the previous map.
func (w *Writer) SetMap(m *level.Map) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.m = m
	w.seen = make([]bool, len(m.Linedefs))
	w.visible = make([]bool, len(m.Linedefs))
}

// Seen counts linedefs seen so far.
func (w *Writer) Seen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, s := range w.seen {
		if s {
			n++
		}
	}
	return n
}

// Written counts PNG files written.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *Writer) Submit(ctx context.Context, dl *render.DrawList) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.m == nil || dl.Level != w.m.Name {
		return nil
	}
	clear(w.visible)
	for _, s := range dl.Surfaces {
		if s.Kind != render.SurfaceWall || s.Seg < 0 {
			continue
		}
		seg := &w.m.Subsectors[s.Subsector].Segs[s.Seg]
		if seg.Miniseg() {
			continue
		}
		w.seen[seg.Linedef] = true
		w.visible[seg.Linedef] = true
	}
	if w.cfg.Every == 0 || w.cfg.Dir == "" || dl.Tick%w.cfg.Every != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dc := w.draw(dl.Camera)
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("automap: %w", err)
	}
	path := filepath.Join(w.cfg.Dir, fmt.Sprintf("%s-%06d.png", w.m.Name, dl.Tick))
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("automap: %w", err)
	}
	w.written++
	w.log.Debug("automap written", zap.String("path", path))
	return nil
}

// Image renders the current map as seen from cam.
func (w *Writer) Image(cam render.Camera) image.Image {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.m == nil {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	return w.draw(cam).Image()
}

func (w *Writer) draw(cam render.Camera) *gg.Context {
	b := w.m.Bounds
	span := math.Max(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
	if span <= 0 {
		span = 1
	}
	size := float64(w.cfg.Size)
	scale := (size - 2*w.cfg.Margin) / span
	width := int(math.Ceil((b.Max.X-b.Min.X)*scale + 2*w.cfg.Margin))
	height := int(math.Ceil((b.Max.Y-b.Min.Y)*scale + 2*w.cfg.Margin))

	// Map y grows north; image y grows down.
	toPx := func(p geom.Vec2) (float64, float64) {
		return w.cfg.Margin + (p.X-b.Min.X)*scale, float64(height) - w.cfg.Margin - (p.Y-b.Min.Y)*scale
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(colBackground)
	dc.Clear()
	dc.SetLineWidth(1.5)

	for i := range w.m.Linedefs {
		l := &w.m.Linedefs[i]
		if !w.seen[i] || l.Flags.Has(level.LineNoAutomap) {
			continue
		}
		dc.SetColor(w.lineColor(level.LinedefID(i), l))
		x0, y0 := toPx(l.Line.Point)
		x1, y1 := toPx(l.Line.End())
		dc.DrawLine(x0, y0, x1, y1)
		dc.Stroke()
	}

	// Player arrow along the camera's flat forward.
	fwd := geom.V2(-cam.Right.Y, cam.Right.X)
	if fwd.IsZero() {
		fwd = geom.V2(1, 0)
	}
	px, py := toPx(cam.Pos.XY())
	tip := cam.Pos.XY().Add(fwd.Scale(24))
	tx, ty := toPx(tip)
	dc.SetColor(colPlayer)
	dc.DrawCircle(px, py, 3)
	dc.Fill()
	dc.DrawLine(px, py, tx, ty)
	dc.Stroke()
	return dc
}

func (w *Writer) lineColor(id level.LinedefID, l *level.Linedef) color.Color {
	if w.visible[id] {
		return colVisible
	}
	if !l.TwoSided() || l.Flags.Has(level.LineSecret) {
		return colSolid
	}
	front, back := w.m.LineSectors(id)
	switch {
	case w.m.FloorHeight(front) != w.m.FloorHeight(back):
		return colFloorStep
	case w.m.CeilingHeight(front) != w.m.CeilingHeight(back):
		return colCeilStep
	}
	return colPortal
}
