package behavior

import (
	"math"
	"testing"

	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/input"
)

func setup() (*ecs.World, *component.Stores, ecs.View) {
	w := ecs.NewWorld()
	s := component.Register(w)
	v := w.View("behavior", ecs.Access{Reads: s.Transform.Mask() | s.Player.Mask()})
	return w, s, v
}

func TestPlayerMovement(t *testing.T) {
	w, s, v := setup()
	id := w.CreateEntity()
	s.Transform.Set(id, component.Transform{Angle: math.Pi / 2})
	p := NewPlayer(s, DefaultMovement())

	tests := []struct {
		name string
		in   input.Snapshot
		move geom.Vec2
		jump float64
	}{
		{"forward", input.Snapshot{Forward: 1}, geom.V2(0, 8), 0},
		{"run", input.Snapshot{Forward: 1, Actions: input.ActionRun}, geom.V2(0, 16), 0},
		{"strafe right", input.Snapshot{Strafe: 1}, geom.V2(8, 0), 0},
		{"clamped", input.Snapshot{Forward: -5}, geom.V2(0, -8), 0},
		{"jump", input.Snapshot{Actions: input.ActionJump}, geom.Vec2{}, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, ok := p.Think(v, id, tt.in)
			if !ok {
				t.Fatalf("no intent")
			}
			if !it.Move.ApproxEqual(tt.move, 1e-9) || it.Jump != tt.jump {
				t.Fatalf("intent = %+v, want move %v jump %v", it, tt.move, tt.jump)
			}
		})
	}

	it, _ := p.Think(v, id, input.Snapshot{Actions: input.ActionUse | input.ActionFire})
	if !it.Use || !it.Fire {
		t.Fatalf("actions lost: %+v", it)
	}
}

func TestChaseNearestPlayer(t *testing.T) {
	w, s, v := setup()
	far := w.CreateEntity()
	s.Transform.Set(far, component.Transform{Pos: geom.V3(0, 300, 0)})
	s.Player.Set(far, component.Player{Number: 1})
	near := w.CreateEntity()
	s.Transform.Set(near, component.Transform{Pos: geom.V3(100, 0, 0)})
	s.Player.Set(near, component.Player{Number: 2})
	mon := w.CreateEntity()
	s.Transform.Set(mon, component.Transform{Angle: math.Pi})

	c := NewChase(s, 6, 512)
	it, ok := c.Think(v, mon, input.Snapshot{})
	if !ok {
		t.Fatalf("chase idle with players in range")
	}
	if !it.Move.ApproxEqual(geom.V2(6, 0), 1e-9) {
		t.Fatalf("move = %v", it.Move)
	}
	if math.Abs(math.Abs(it.Turn)-math.Pi) > 1e-9 {
		t.Fatalf("turn = %v", it.Turn)
	}

	c.Range = 50
	if _, ok := c.Think(v, mon, input.Snapshot{}); ok {
		t.Fatalf("chase moved toward a player out of range")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("idle", Idle); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("idle", Idle); err == nil {
		t.Fatalf("duplicate registration accepted")
	}
	if err := r.Register("chase", Idle); err != nil {
		t.Fatal(err)
	}
	if got := r.Names(); len(got) != 2 || got[0] != "chase" || got[1] != "idle" {
		t.Fatalf("names = %v", got)
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatalf("lookup of unknown tag succeeded")
	}
}
