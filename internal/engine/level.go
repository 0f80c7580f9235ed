// Package engine wires one loaded level into a running simulation and drives
// it at a fixed tick rate.
package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/behavior"
	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/core/event"
	coresys "github.com/sectorgo/engine/internal/core/system"
	"github.com/sectorgo/engine/internal/data"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/input"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/physics"
	"github.com/sectorgo/engine/internal/render"
	"github.com/sectorgo/engine/internal/system"
	"github.com/sectorgo/engine/internal/visibility"
	"github.com/sectorgo/engine/internal/world"
)

// Options configures every level the scheduler builds.
type Options struct {
	TickRate time.Duration
	Physics  physics.Config
	Movement behavior.Movement
	Sectors  system.SectorConfig
	View     system.ViewConfig
	Skill    int
	Things   *data.ThingTable

	// Behaviors builds the behavior registry for a level's component stores.
	// Nil registers only the stock player and chase units.
	Behaviors func(s *component.Stores) (*behavior.Registry, error)

	// ImpactDamage converts wall impacts into damage; nil disables it.
	ImpactDamage system.ImpactDamage

	// Attach is called with each new level before its first tick so
	// listeners can subscribe to its bus.
	Attach func(lv *Level)

	// Observe receives the duration of every system update.
	Observe func(s coresys.System, d time.Duration)

	Log *zap.Logger
}

func (o *Options) fill() {
	if o.TickRate <= 0 {
		o.TickRate = time.Second / 35
	}
	if o.Physics == (physics.Config{}) {
		o.Physics = physics.DefaultConfig()
	}
	if o.Movement == (behavior.Movement{}) {
		o.Movement = behavior.DefaultMovement()
	}
	if o.Sectors == (system.SectorConfig{}) {
		o.Sectors = system.DefaultSectorConfig()
	}
	if o.View == (system.ViewConfig{}) {
		o.View = system.DefaultViewConfig()
	}
	if o.Skill == 0 {
		o.Skill = 2
	}
	if o.Things == nil {
		o.Things = data.DefaultThingTable()
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
}

// Level is everything owned by one loaded map. Nothing in it outlives a
// level change.
type Level struct {
	Map       *level.Map
	State     *world.MapState
	Occupancy *world.Occupancy
	World     *ecs.World
	Stores    *component.Stores
	Bus       *event.Bus
	Runner    *coresys.Runner
	Vis       *system.VisibilitySystem

	ctx coresys.Context
}

// NewLevel builds the world, systems and schedule for m. Frames are handed
// to p.
func NewLevel(m *level.Map, p *render.Pipeline, opts Options) (*Level, error) {
	opts.fill()
	w := ecs.NewWorld()
	lv := &Level{
		Map:       m,
		State:     world.NewMapState(m),
		Occupancy: world.NewOccupancy(m),
		World:     w,
		Stores:    component.Register(w),
		Bus:       event.NewBus(),
		Runner:    coresys.NewRunner(),
	}
	lv.ctx = coresys.Context{
		DT:        opts.TickRate,
		Map:       m,
		MapState:  lv.State,
		Occupancy: lv.Occupancy,
		World:     w,
		Bus:       lv.Bus,
		Log:       opts.Log.With(zap.String("level", m.Name)),
	}

	reg, err := newRegistry(lv.Stores, opts)
	if err != nil {
		return nil, fmt.Errorf("level %s: behaviors: %w", m.Name, err)
	}

	solver := physics.NewSolver(m, lv.State, opts.Physics, lv.Bus, opts.Log)
	lv.Vis = system.NewVisibilitySystem(lv.Stores, visibility.NewSolver(m, lv.State, lv.Occupancy), opts.View)
	builder := render.NewBuilder(lv.State, nil)
	builder.Aspect = opts.View.Aspect()

	r := lv.Runner
	r.Register(system.NewInputSystem(lv.Stores, opts.Movement.MaxPitch))
	r.Register(system.NewBehaviorSystem(lv.Stores, reg))
	r.Register(system.NewSpecialSystem(lv.Bus, opts.Sectors))
	r.Register(system.NewDoorSystem(lv.Bus, opts.Sectors))
	r.Register(system.NewPhysicsSystem(lv.Stores, solver))
	r.Register(system.NewSectorMoveSystem(lv.Stores))
	r.Register(system.NewPickupSystem(lv.Stores))
	r.Register(system.NewLightSystem(m))
	r.Register(lv.Vis)
	if p != nil {
		r.Register(system.NewDrawListSystem(lv.Stores, lv.Vis, builder, p))
	}
	r.Register(system.NewEventFlushSystem())
	r.Register(system.NewDamageSystem(lv.Bus, lv.Stores, opts.ImpactDamage))
	r.Register(system.NewCleanupSystem())
	if opts.Observe != nil {
		r.Observe(opts.Observe)
	}
	if err := r.Build(w.Registry()); err != nil {
		return nil, fmt.Errorf("level %s: %w", m.Name, err)
	}
	if ce := opts.Log.Check(zap.DebugLevel, "schedule built"); ce != nil {
		names := make([]string, 0, len(r.Systems()))
		for _, sys := range r.Systems() {
			names = append(names, sys.Phase().String()+"/"+sys.Name())
		}
		ce.Write(zap.String("level", m.Name), zap.Strings("systems", names))
	}

	SpawnThings(lv, opts.Things, opts.Skill, opts.Log)
	return lv, nil
}

func newRegistry(s *component.Stores, opts Options) (*behavior.Registry, error) {
	if opts.Behaviors != nil {
		return opts.Behaviors(s)
	}
	return StockBehaviors(s, opts.Movement)
}

// StockBehaviors registers the built-in "player" and "chase" units.
func StockBehaviors(s *component.Stores, mv behavior.Movement) (*behavior.Registry, error) {
	reg := behavior.NewRegistry()
	if err := reg.Register("player", behavior.NewPlayer(s, mv)); err != nil {
		return nil, err
	}
	if err := reg.Register("chase", behavior.NewChase(s, mv.WalkSpeed/2, 1024)); err != nil {
		return nil, err
	}
	return reg, nil
}

// Tick returns the number of the last completed tick.
func (lv *Level) Tick() uint64 { return lv.ctx.Tick }

// Name is the map name.
func (lv *Level) Name() string { return lv.Map.Name }

// Player returns the camera owner, the player with the lowest number.
func (lv *Level) Player() (ecs.EntityID, bool) {
	best, num := ecs.NoEntity, 0
	for id := range lv.World.Query(lv.Stores.Player.Mask()) {
		p, _ := lv.Stores.Player.Get(id)
		if best == ecs.NoEntity || p.Number < num {
			best, num = id, p.Number
		}
	}
	return best, best != ecs.NoEntity
}

// Listener is where the player hears from: position and facing.
func (lv *Level) Listener() (geom.Vec3, float64, bool) {
	id, ok := lv.Player()
	if !ok {
		return geom.Vec3{}, 0, false
	}
	tr, ok := lv.Stores.Transform.Get(id)
	if !ok {
		return geom.Vec3{}, 0, false
	}
	return tr.Pos, tr.Angle, true
}

func (lv *Level) step(tick uint64, in input.Snapshot) {
	lv.ctx.Tick = tick
	lv.ctx.Input = in
	lv.Bus.SetTick(tick)
	lv.Runner.Tick(&lv.ctx)
}
