package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/core/event"
	"github.com/sectorgo/engine/internal/input"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/world"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput       Phase = iota // 0: sample platform input
	PhaseBehavior                 // 1: behaviors produce intents
	PhasePhysics                  // 2: collision, movers, sector effects
	PhaseVisibility               // 3: PVS from the camera
	PhaseDrawList                 // 4: build + hand off the draw list
	PhaseFlushEvents              // 5: deliver this tick's events
	PhaseCleanup                  // 6: destroy queued entities
)

var phaseNames = [...]string{"input", "behavior", "physics", "visibility", "drawlist", "flush", "cleanup"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// System is the interface every ECS system implements. Access declares the
// components Update touches through its View.
type System interface {
	Name() string
	Phase() Phase
	Access() ecs.Access
	Update(ctx *Context, v ecs.View)
}

// Context carries everything a system may use during one tick.
type Context struct {
	Tick      uint64
	DT        time.Duration
	Map       *level.Map
	MapState  *world.MapState
	Occupancy *world.Occupancy
	World     *ecs.World
	Bus       *event.Bus
	Input     input.Snapshot
	Log       *zap.Logger
}
