package term

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/input"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/render"
	"github.com/sectorgo/engine/internal/visibility"
	"github.com/sectorgo/engine/internal/world"
)

func roomFrame(t *testing.T) *render.DrawList {
	t.Helper()
	s := level.NewSketch("box")
	s.Sector(0, 128, 200, level.Rect(0, 0, 128, 128)...)
	m, err := s.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	st, occ := world.NewMapState(m), world.NewOccupancy(m)
	cam := visibility.Camera{Pos: geom.V3(32, 64, 41), FOV: math.Pi / 2, Near: 1}
	var vs visibility.VisibleSet
	visibility.NewSolver(m, st, occ).Compute(cam, &vs)
	var dl render.DrawList
	render.NewBuilder(st, nil).Build(&dl, &vs, cam)
	dl.Tick = 9
	return &dl
}

func TestRasterFacingWall(t *testing.T) {
	r := NewRaster(80, 24)
	r.Draw(roomFrame(t))

	mid := r.At(40, 12)
	if mid.Empty || mid.Kind != render.SurfaceWall {
		t.Fatalf("center cell = %+v, want wall", mid)
	}
	if c := r.At(40, 23); c.Empty || c.Kind != render.SurfaceFloor {
		t.Fatalf("bottom cell = %+v, want floor", c)
	}
	if c := r.At(0, 0); c.Empty {
		t.Fatalf("top left cell empty inside a closed room")
	}
}

func TestClipNear(t *testing.T) {
	// A triangle with one vertex behind the near plane becomes a quad.
	tri := []clip{
		{0, 0, 0, 1},
		{1, 0, 0, 1},
		{0, 0, -3, 1},
	}
	out := clipNear(tri)
	if len(out) != 4 {
		t.Fatalf("clipped to %d points", len(out))
	}
	for _, c := range out {
		if c.z+c.w < -1e-9 {
			t.Fatalf("point %+v behind near plane", c)
		}
	}
	if got := clipNear([]clip{{0, 0, -5, 1}, {1, 0, -5, 1}, {0, 1, -5, 1}}); len(got) != 0 {
		t.Fatalf("fully clipped triangle kept %d points", len(got))
	}
}

func TestKeysHoldAndRelease(t *testing.T) {
	k := NewKeys()
	now := time.Unix(100, 0)
	k.now = func() time.Time { return now }

	key := func(r rune) bool { return k.Handle(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)) }

	key('w')
	key('d')
	k.Handle(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone))
	k.Handle(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))

	s := k.Poll()
	if s.Forward != 1 || s.Strafe != 1 || s.Turn != k.TurnRate {
		t.Fatalf("snapshot = %+v", s)
	}
	if !s.Actions.Has(input.ActionUse) {
		t.Fatalf("use not reported")
	}
	if s = k.Poll(); s.Actions.Has(input.ActionUse) {
		t.Fatalf("use reported twice")
	}

	now = now.Add(200 * time.Millisecond)
	if s = k.Poll(); s != (input.Snapshot{}) {
		t.Fatalf("released keys still held: %+v", s)
	}

	key('W')
	if s = k.Poll(); s.Forward != 1 || !s.Actions.Has(input.ActionRun) {
		t.Fatalf("shifted forward = %+v", s)
	}

	if !key('q') || !k.Handle(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Fatalf("quit keys not reported")
	}
}

func TestDisplaySubmit(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	screen.Init()
	defer screen.Fini()
	screen.SetSize(60, 20)

	d := NewDisplay(screen)
	d.SetStatus("ok")
	if err := d.Submit(context.Background(), roomFrame(t)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if r, _, _, _ := screen.GetContent(30, 9); r == ' ' {
		t.Fatalf("center of view is blank")
	}
	var b strings.Builder
	for x := 0; x < 60; x++ {
		r, _, _, _ := screen.GetContent(x, 19)
		b.WriteRune(r)
	}
	if line := b.String(); !strings.Contains(line, "box") || !strings.Contains(line, "tick 9") {
		t.Fatalf("status line = %q", line)
	}
}
