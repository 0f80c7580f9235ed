package system

import (
	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	coresys "github.com/sectorgo/engine/internal/core/system"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/render"
)

// DrawListSystem builds the frame from the visible set into the pipeline's
// free buffer and hands it off. Phase 4 (DrawList).
type DrawListSystem struct {
	stores   *component.Stores
	vis      *VisibilitySystem
	builder  *render.Builder
	pipeline *render.Pipeline
	view     ecs.View
}

func NewDrawListSystem(s *component.Stores, vis *VisibilitySystem, b *render.Builder, p *render.Pipeline) *DrawListSystem {
	ds := &DrawListSystem{stores: s, vis: vis, builder: b, pipeline: p}
	b.SetSprites(ds.sprite)
	return ds
}

func (s *DrawListSystem) Name() string         { return "drawlist" }
func (s *DrawListSystem) Phase() coresys.Phase { return coresys.PhaseDrawList }

func (s *DrawListSystem) Access() ecs.Access {
	return ecs.Access{Reads: s.stores.Transform.Mask() | s.stores.Sprite.Mask()}
}

func (s *DrawListSystem) Update(ctx *coresys.Context, v ecs.View) {
	set, cam, ok := s.vis.Frame()
	if !ok {
		return
	}
	dl := s.pipeline.Begin()
	s.view = v
	s.builder.Build(dl, set, cam)
	s.view = ecs.View{}
	s.pipeline.Submit(ctx.Tick)
}

func (s *DrawListSystem) sprite(id ecs.EntityID) (geom.Vec3, component.Sprite, bool) {
	if !s.view.Alive(id) {
		return geom.Vec3{}, component.Sprite{}, false
	}
	sp, ok := ecs.Read(s.view, s.stores.Sprite, id)
	if !ok {
		return geom.Vec3{}, component.Sprite{}, false
	}
	tr, _ := ecs.Read(s.view, s.stores.Transform, id)
	return tr.Pos, sp, true
}
