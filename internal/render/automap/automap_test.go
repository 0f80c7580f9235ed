package automap

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/render"
	"github.com/sectorgo/engine/internal/visibility"
	"github.com/sectorgo/engine/internal/world"
)

func frame(t *testing.T, m *level.Map, tick uint64) *render.DrawList {
	t.Helper()
	st, occ := world.NewMapState(m), world.NewOccupancy(m)
	cam := visibility.Camera{Pos: geom.V3(32, 64, 41), FOV: math.Pi / 2, Near: 1}
	var vs visibility.VisibleSet
	visibility.NewSolver(m, st, occ).Compute(cam, &vs)
	var dl render.DrawList
	render.NewBuilder(st, nil).Build(&dl, &vs, cam)
	dl.Tick = tick
	return &dl
}

func twoRooms(t *testing.T) *level.Map {
	t.Helper()
	s := level.NewSketch("rooms")
	s.Sector(0, 128, 160, level.Rect(0, 0, 128, 128)...)
	s.Sector(24, 128, 160, level.Rect(128, 0, 256, 128)...)
	m, err := s.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return m
}

func TestSubmitMarksSeenLines(t *testing.T) {
	m := twoRooms(t)
	dir := t.TempDir()
	w := New(Config{Dir: dir, Every: 35}, nil)

	// No map yet: ignored.
	if err := w.Submit(context.Background(), frame(t, m, 1)); err != nil || w.Seen() != 0 {
		t.Fatalf("submit without map = %v, seen %d", err, w.Seen())
	}

	w.SetMap(m)
	if err := w.Submit(context.Background(), frame(t, m, 1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	seen := w.Seen()
	if seen == 0 || seen > len(m.Linedefs) {
		t.Fatalf("seen = %d of %d", seen, len(m.Linedefs))
	}
	if w.Written() != 0 {
		t.Fatalf("wrote a snapshot off-interval")
	}

	if err := w.Submit(context.Background(), frame(t, m, 35)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if w.Written() != 1 {
		t.Fatalf("written = %d", w.Written())
	}
	if _, err := os.Stat(filepath.Join(dir, "rooms-000035.png")); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	other := frame(t, m, 70)
	other.Level = "elsewhere"
	if err := w.Submit(context.Background(), other); err != nil || w.Written() != 1 {
		t.Fatalf("foreign level list = %v, written %d", err, w.Written())
	}

	w.SetMap(m)
	if w.Seen() != 0 {
		t.Fatalf("SetMap kept %d seen lines", w.Seen())
	}
}

func TestImageDrawsPlayer(t *testing.T) {
	m := twoRooms(t)
	w := New(Config{Size: 512, Margin: 16}, nil)
	w.SetMap(m)
	dl := frame(t, m, 1)
	if err := w.Submit(context.Background(), dl); err != nil {
		t.Fatalf("submit: %v", err)
	}
	img := w.Image(dl.Camera)
	if b := img.Bounds(); b.Dx() != 512 || b.Dy() != 272 {
		t.Fatalf("image bounds = %v", b)
	}
	// (32, 64) maps to pixel (76, 136).
	r, g, _, _ := img.At(76, 136).RGBA()
	if g>>8 < 200 || r>>8 > 50 {
		t.Fatalf("player pixel = r%d g%d", r>>8, g>>8)
	}
	r, g, _, _ = img.At(2, 2).RGBA()
	if r != 0 || g != 0 {
		t.Fatalf("margin not background")
	}
}
