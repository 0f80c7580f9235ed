package system

import (
	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/behavior"
	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	coresys "github.com/sectorgo/engine/internal/core/system"
)

// BehaviorSystem asks each tagged entity's behavior for this tick's intent.
// Phase 1 (Behavior).
type BehaviorSystem struct {
	stores   *component.Stores
	registry *behavior.Registry
	unknown  map[string]bool // tags already reported
}

func NewBehaviorSystem(s *component.Stores, reg *behavior.Registry) *BehaviorSystem {
	return &BehaviorSystem{stores: s, registry: reg, unknown: make(map[string]bool)}
}

func (s *BehaviorSystem) Name() string         { return "behavior" }
func (s *BehaviorSystem) Phase() coresys.Phase { return coresys.PhaseBehavior }

func (s *BehaviorSystem) Access() ecs.Access {
	st := s.stores
	return ecs.Access{
		Reads:  st.Behavior.Mask() | st.Transform.Mask() | st.Player.Mask() | st.Health.Mask(),
		Writes: st.Intent.Mask(),
	}
}

func (s *BehaviorSystem) Update(ctx *coresys.Context, v ecs.View) {
	for id := range v.Query(s.stores.Behavior.Mask()) {
		tag, _ := ecs.Read(v, s.stores.Behavior, id)
		unit, ok := s.registry.Lookup(tag.Name)
		if !ok {
			if !s.unknown[tag.Name] {
				s.unknown[tag.Name] = true
				ctx.Log.Warn("unknown behavior tag", zap.String("tag", tag.Name), zap.Uint32("entity", id.Index()))
			}
			continue
		}
		it, ok := unit.Think(v, id, ctx.Input)
		if !ok {
			ecs.Delete(v, s.stores.Intent, id)
			continue
		}
		ecs.Insert(v, s.stores.Intent, id, it)
	}
}
