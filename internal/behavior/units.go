package behavior

import (
	"math"

	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/input"
)

// Movement tunes the player unit. Speeds are units per tick.
type Movement struct {
	WalkSpeed float64 `toml:"walk_speed"`
	RunSpeed  float64 `toml:"run_speed"`
	JumpSpeed float64 `toml:"jump_speed"`
	MaxPitch  float64 `toml:"max_pitch"`
}

func DefaultMovement() Movement {
	return Movement{WalkSpeed: 8, RunSpeed: 16, JumpSpeed: 8, MaxPitch: math.Pi / 4}
}

// Player steers the entity from the input snapshot.
type Player struct {
	stores *component.Stores
	cfg    Movement
}

func NewPlayer(s *component.Stores, cfg Movement) *Player {
	return &Player{stores: s, cfg: cfg}
}

func (p *Player) Think(v ecs.View, id ecs.EntityID, in input.Snapshot) (Intent, bool) {
	tr, ok := ecs.Read(v, p.stores.Transform, id)
	if !ok {
		return Intent{}, false
	}
	speed := p.cfg.WalkSpeed
	if in.Actions.Has(input.ActionRun) {
		speed = p.cfg.RunSpeed
	}
	// Move along the heading the turn leads to.
	fwd := geom.FromAngle(tr.Angle + in.Turn)
	move := fwd.Scale(clamp(in.Forward) * speed).Add(fwd.Perp().Scale(clamp(in.Strafe) * speed))

	it := Intent{
		Move: move,
		Turn: in.Turn,
		Use:  in.Actions.Has(input.ActionUse),
		Fire: in.Actions.Has(input.ActionFire),
	}
	if in.Actions.Has(input.ActionJump) {
		it.Jump = p.cfg.JumpSpeed
	}
	return it, true
}

func clamp(x float64) float64 { return min(1, max(-1, x)) }

// Chase walks straight at the nearest player within Range and turns to face
// it. Ties go to the lower entity id.
type Chase struct {
	stores *component.Stores
	Speed  float64
	Range  float64
}

func NewChase(s *component.Stores, speed, rng float64) *Chase {
	return &Chase{stores: s, Speed: speed, Range: rng}
}

func (c *Chase) Think(v ecs.View, id ecs.EntityID, _ input.Snapshot) (Intent, bool) {
	self, ok := ecs.Read(v, c.stores.Transform, id)
	if !ok {
		return Intent{}, false
	}
	mask := c.stores.Player.Mask() | c.stores.Transform.Mask()
	best, bestDist := geom.Vec2{}, math.Inf(1)
	for pid := range v.Query(mask) {
		if pid == id {
			continue
		}
		t, _ := ecs.Read(v, c.stores.Transform, pid)
		d := t.Pos.XY().Dist(self.Pos.XY())
		if d < bestDist {
			best, bestDist = t.Pos.XY(), d
		}
	}
	if bestDist > c.Range || bestDist == 0 {
		return Intent{}, false
	}
	dir := best.Sub(self.Pos.XY()).Normalize()
	step := min(c.Speed, bestDist)
	turn := geom.NormalizeAngle(math.Atan2(dir.Y, dir.X) - self.Angle)
	return Intent{Move: dir.Scale(step), Turn: turn}, true
}
