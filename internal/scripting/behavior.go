package scripting

import (
	"math"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/behavior"
	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/input"
)

// Behavior runs a Lua think function registered with behavior(name, fn).
// The function receives a ctx table and returns an intent table or nil.
type Behavior struct {
	e      *Engine
	name   string
	fn     *lua.LFunction
	stores *component.Stores
}

// Bind registers every script behavior in reg.
func (e *Engine) Bind(reg *behavior.Registry, s *component.Stores) error {
	for _, name := range e.Behaviors() {
		if err := reg.Register(name, &Behavior{e: e, name: name, fn: e.behaviors[name], stores: s}); err != nil {
			return err
		}
	}
	return nil
}

func (b *Behavior) Think(v ecs.View, id ecs.EntityID, in input.Snapshot) (behavior.Intent, bool) {
	self, ok := ecs.Read(v, b.stores.Transform, id)
	if !ok {
		return behavior.Intent{}, false
	}
	vm := b.e.vm

	// Build context table
	t := vm.NewTable()
	t.RawSetString("id", lua.LNumber(id.Index()))
	t.RawSetString("x", lua.LNumber(self.Pos.X))
	t.RawSetString("y", lua.LNumber(self.Pos.Y))
	t.RawSetString("z", lua.LNumber(self.Pos.Z))
	t.RawSetString("angle", lua.LNumber(self.Angle))
	if hp, ok := ecs.Read(v, b.stores.Health, id); ok {
		t.RawSetString("hp", lua.LNumber(hp.Current))
		t.RawSetString("max_hp", lua.LNumber(hp.Max))
	}

	if target, dist, ok := b.nearestPlayer(v, id, self.Pos.XY()); ok {
		t.RawSetString("target_x", lua.LNumber(target.X))
		t.RawSetString("target_y", lua.LNumber(target.Y))
		t.RawSetString("target_dist", lua.LNumber(dist))
		t.RawSetString("target_angle", lua.LNumber(math.Atan2(target.Y-self.Pos.Y, target.X-self.Pos.X)))
		t.RawSetString("has_target", lua.LTrue)
	} else {
		t.RawSetString("has_target", lua.LFalse)
	}

	inTbl := vm.NewTable()
	inTbl.RawSetString("forward", lua.LNumber(in.Forward))
	inTbl.RawSetString("strafe", lua.LNumber(in.Strafe))
	inTbl.RawSetString("turn", lua.LNumber(in.Turn))
	inTbl.RawSetString("use", lBoolValue(in.Actions.Has(input.ActionUse)))
	inTbl.RawSetString("fire", lBoolValue(in.Actions.Has(input.ActionFire)))
	t.RawSetString("input", inTbl)

	if err := vm.CallByParam(lua.P{
		Fn:      b.fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		b.e.log.Error("lua behavior error", zap.String("behavior", b.name), zap.Uint32("entity", id.Index()), zap.Error(err))
		return behavior.Intent{}, false
	}

	result := vm.Get(-1)
	vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return behavior.Intent{}, false
	}
	return behavior.Intent{
		Move: geom.V2(lNum(rt, "move_x"), lNum(rt, "move_y")),
		Turn: lNum(rt, "turn"),
		Jump: lNum(rt, "jump"),
		Use:  lBool(rt, "use"),
		Fire: lBool(rt, "fire"),
	}, true
}

func (b *Behavior) nearestPlayer(v ecs.View, self ecs.EntityID, from geom.Vec2) (geom.Vec2, float64, bool) {
	best, bestDist := geom.Vec2{}, math.Inf(1)
	for pid := range v.Query(b.stores.Player.Mask() | b.stores.Transform.Mask()) {
		if pid == self {
			continue
		}
		t, _ := ecs.Read(v, b.stores.Transform, pid)
		if d := t.Pos.XY().Dist(from); d < bestDist {
			best, bestDist = t.Pos.XY(), d
		}
	}
	return best, bestDist, !math.IsInf(bestDist, 1)
}
