package system

import (
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/core/event"
	coresys "github.com/sectorgo/engine/internal/core/system"
)

// EventFlushSystem delivers the events raised during the tick.
// Phase 5 (FlushEvents).
type EventFlushSystem struct{}

func NewEventFlushSystem() *EventFlushSystem { return &EventFlushSystem{} }

func (s *EventFlushSystem) Name() string         { return "flush" }
func (s *EventFlushSystem) Phase() coresys.Phase { return coresys.PhaseFlushEvents }
func (s *EventFlushSystem) Access() ecs.Access   { return ecs.Access{} }

func (s *EventFlushSystem) Update(ctx *coresys.Context, _ ecs.View) {
	ctx.Bus.Flush()
}

// CleanupSystem flushes the deferred entity destruction queue at tick end,
// drops the destroyed entities from the occupancy index and announces them.
// Phase 6 (Cleanup), registered last.
type CleanupSystem struct{}

func NewCleanupSystem() *CleanupSystem { return &CleanupSystem{} }

func (s *CleanupSystem) Name() string         { return "cleanup" }
func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }
func (s *CleanupSystem) Access() ecs.Access   { return ecs.Access{} }

func (s *CleanupSystem) Update(ctx *coresys.Context, _ ecs.View) {
	for _, id := range ctx.World.FlushDestroyQueue() {
		ctx.Occupancy.Remove(id)
		event.Emit(ctx.Bus, event.EntityDestroyed{Entity: id})
	}
}
