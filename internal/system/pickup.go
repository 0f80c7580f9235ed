package system

import (
	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/core/event"
	coresys "github.com/sectorgo/engine/internal/core/system"
)

// PickupSystem lets players collect touching items in their subsector.
// Health pickups heal up to the maximum; every collected item raises
// ItemPickedUp and is destroyed. Phase 2 (Physics), after PhysicsSystem.
type PickupSystem struct {
	stores *component.Stores
}

func NewPickupSystem(s *component.Stores) *PickupSystem {
	return &PickupSystem{stores: s}
}

func (s *PickupSystem) Name() string         { return "pickup" }
func (s *PickupSystem) Phase() coresys.Phase { return coresys.PhasePhysics }

func (s *PickupSystem) Access() ecs.Access {
	st := s.stores
	return ecs.Access{
		Reads:  st.Transform.Mask() | st.Collider.Mask() | st.Pickup.Mask() | st.Player.Mask() | st.Location.Mask(),
		Writes: st.Health.Mask(),
	}
}

func (s *PickupSystem) Update(ctx *coresys.Context, v ecs.View) {
	st := s.stores
	for id := range v.Query(st.Player.Mask() | st.Transform.Mask() | st.Location.Mask()) {
		loc, _ := ecs.Read(v, st.Location, id)
		tr, _ := ecs.Read(v, st.Transform, id)
		col, _ := ecs.Read(v, st.Collider, id)
		for _, item := range ctx.Occupancy.In(loc.Subsector) {
			if item == id || !v.Alive(item) {
				continue
			}
			pk, ok := ecs.Read(v, st.Pickup, item)
			if !ok {
				continue
			}
			it, _ := ecs.Read(v, st.Transform, item)
			ic, _ := ecs.Read(v, st.Collider, item)
			if it.Pos.XY().Dist(tr.Pos.XY()) > col.Radius+ic.Radius {
				continue
			}
			if pk.Kind == "health" {
				hp, ok := ecs.Write(v, st.Health, id)
				if ok && hp.Current >= hp.Max {
					continue // leave it for later
				}
				if ok {
					hp.Current = min(hp.Max, hp.Current+pk.Amount)
				}
			}
			event.Emit(ctx.Bus, event.ItemPickedUp{Entity: id, Item: item, Pos: it.Pos})
			v.Destroy(item)
		}
	}
}
