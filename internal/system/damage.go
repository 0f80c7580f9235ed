package system

import (
	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/core/event"
	coresys "github.com/sectorgo/engine/internal/core/system"
	"github.com/sectorgo/engine/internal/geom"
)

// ImpactDamage converts a wall impact speed into hit points.
type ImpactDamage func(speed float64) int

// DamageSystem applies impacts delivered by this tick's flush to Health,
// raises EntityDamaged and marks entities at zero health for destruction.
// Players are never destroyed. Phase 6 (Cleanup), before CleanupSystem.
type DamageSystem struct {
	stores  *component.Stores
	damage  ImpactDamage
	pending []event.Impact
}

func NewDamageSystem(bus *event.Bus, s *component.Stores, damage ImpactDamage) *DamageSystem {
	ds := &DamageSystem{stores: s, damage: damage}
	event.Subscribe(bus, func(e event.Impact) { ds.pending = append(ds.pending, e) })
	return ds
}

func (s *DamageSystem) Name() string         { return "damage" }
func (s *DamageSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *DamageSystem) Access() ecs.Access {
	return ecs.Access{Reads: s.stores.Player.Mask(), Writes: s.stores.Health.Mask()}
}

func (s *DamageSystem) Update(ctx *coresys.Context, v ecs.View) {
	for _, e := range s.pending {
		if s.damage == nil || !v.Alive(e.Entity) {
			continue
		}
		n := s.damage(e.Speed)
		if n <= 0 {
			continue
		}
		s.apply(ctx, v, e.Entity, ecs.NoEntity, n, e.Pos)
	}
	s.pending = s.pending[:0]
}

func (s *DamageSystem) apply(ctx *coresys.Context, v ecs.View, id, source ecs.EntityID, n int, pos geom.Vec3) {
	hp, ok := ecs.Write(v, s.stores.Health, id)
	if !ok {
		return
	}
	hp.Current -= n
	event.Emit(ctx.Bus, event.EntityDamaged{Entity: id, Source: source, Amount: n, Pos: pos})
	if hp.Current > 0 {
		return
	}
	if _, player := ecs.Read(v, s.stores.Player, id); player {
		hp.Current = 0
		return
	}
	v.Destroy(id)
}
