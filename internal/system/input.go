package system

import (
	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	coresys "github.com/sectorgo/engine/internal/core/system"
)

// InputSystem applies the tick's look input to every player camera. The
// movement part of the snapshot is left to the player behavior.
// Phase 0 (Input).
type InputSystem struct {
	stores   *component.Stores
	maxPitch float64
}

func NewInputSystem(s *component.Stores, maxPitch float64) *InputSystem {
	return &InputSystem{stores: s, maxPitch: maxPitch}
}

func (s *InputSystem) Name() string         { return "input" }
func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Access() ecs.Access {
	return ecs.Access{
		Reads:  s.stores.Player.Mask(),
		Writes: s.stores.Transform.Mask(),
	}
}

func (s *InputSystem) Update(ctx *coresys.Context, v ecs.View) {
	if ctx.Input.Pitch == 0 {
		return
	}
	for id := range v.Query(s.stores.Player.Mask() | s.stores.Transform.Mask()) {
		tr, _ := ecs.Write(v, s.stores.Transform, id)
		tr.Pitch = min(s.maxPitch, max(-s.maxPitch, tr.Pitch+ctx.Input.Pitch))
	}
}
