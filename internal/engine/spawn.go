package engine

import (
	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/data"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
)

// skillFlag maps a 1-based skill to the thing flag that enables spawning.
func skillFlag(skill int) level.ThingFlags {
	switch {
	case skill <= 1:
		return level.ThingEasy
	case skill == 2:
		return level.ThingNormal
	default:
		return level.ThingHard
	}
}

// SpawnThings creates an entity for every thing of the level's spawn list
// that is enabled at skill and known to the table. Multiplayer-only things
// and duplicate player starts are skipped. Returns the number spawned.
func SpawnThings(lv *Level, things *data.ThingTable, skill int, log *zap.Logger) int {
	if things == nil {
		return 0
	}
	flag := skillFlag(skill)
	starts := make(map[int]bool)
	n, unknown := 0, 0
	for _, th := range lv.Map.Things {
		if th.Flags&flag == 0 || th.Flags&level.ThingMultiOnly != 0 {
			continue
		}
		def := things.Get(th.Type)
		if def == nil {
			unknown++
			continue
		}
		if def.Player > 0 {
			if starts[def.Player] {
				continue
			}
			starts[def.Player] = true
		}
		if _, ok := Spawn(lv, def, th.Pos, th.Angle); ok {
			n++
		}
	}
	if unknown > 0 && log != nil {
		log.Debug("unknown thing types skipped", zap.String("level", lv.Map.Name), zap.Int("count", unknown))
	}
	return n
}

// Spawn creates one entity from def standing on the floor at pos. It fails
// when pos is outside the map.
func Spawn(lv *Level, def *data.ThingDef, pos geom.Vec2, angle float64) (ecs.EntityID, bool) {
	ss := lv.Map.FindSubsector(pos)
	if ss == level.NoSubsector || !lv.Map.Contains(ss, pos) {
		return ecs.NoEntity, false
	}
	sec := lv.Map.SectorOf(ss)
	st := lv.Stores
	id := lv.World.CreateEntity()

	st.Transform.Set(id, component.Transform{Pos: pos.Vec3(lv.State.FloorHeight(sec)), Angle: geom.NormalizeAngle(angle)})
	st.Collider.Set(id, component.Collider{
		Radius:    def.Radius,
		Height:    def.Height,
		Solid:     def.Solid,
		NoDropOff: def.NoDropOff,
		Monster:   def.Monster,
	})
	st.Location.Set(id, component.Location{Subsector: ss, Sector: sec})
	if def.Sprite != "" {
		w := def.Radius * 2
		st.Sprite.Set(id, component.Sprite{
			Texture:    def.Sprite,
			Frame:      def.Frame,
			FullBright: def.FullBright,
			Width:      w,
			Height:     def.Height,
		})
	}
	if def.Health > 0 {
		st.Health.Set(id, component.Health{Current: def.Health, Max: def.Health})
	}
	if def.Behavior != "" {
		st.Behavior.Set(id, component.BehaviorTag{Name: def.Behavior})
		st.Velocity.Set(id, component.Velocity{})
	}
	if def.Player > 0 {
		st.Player.Set(id, component.Player{Number: def.Player})
	}
	if def.Pickup != "" {
		st.Pickup.Set(id, component.Pickup{Kind: def.Pickup, Amount: def.Amount})
	}
	lv.Occupancy.Add(id, ss)
	return id, true
}

