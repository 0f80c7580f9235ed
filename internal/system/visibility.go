package system

import (
	"math"

	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	coresys "github.com/sectorgo/engine/internal/core/system"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/visibility"
)

// ViewConfig describes the player camera.
type ViewConfig struct {
	FOV       float64 `toml:"fov"` // horizontal, degrees
	Near      float64 `toml:"near"`
	EyeHeight float64 `toml:"eye_height"`
	Width     int     `toml:"width"`
	Height    int     `toml:"height"`
}

func DefaultViewConfig() ViewConfig {
	return ViewConfig{FOV: 90, Near: 1, EyeHeight: 41, Width: 320, Height: 200}
}

// Aspect is Width over Height, 4:3 when unset.
func (c ViewConfig) Aspect() float64 {
	if c.Width <= 0 || c.Height <= 0 {
		return 4.0 / 3.0
	}
	return float64(c.Width) / float64(c.Height)
}

// VisibilitySystem computes the visible set from the first player's eye.
// Phase 3 (Visibility).
type VisibilitySystem struct {
	stores *component.Stores
	solver *visibility.Solver
	cfg    ViewConfig

	view ecs.View
	set  visibility.VisibleSet
	cam  visibility.Camera
	ok   bool
}

func NewVisibilitySystem(s *component.Stores, solver *visibility.Solver, cfg ViewConfig) *VisibilitySystem {
	vs := &VisibilitySystem{stores: s, solver: solver, cfg: cfg}
	solver.SetEntities(vs.billboard)
	return vs
}

func (s *VisibilitySystem) Name() string         { return "visibility" }
func (s *VisibilitySystem) Phase() coresys.Phase { return coresys.PhaseVisibility }

func (s *VisibilitySystem) Access() ecs.Access {
	st := s.stores
	return ecs.Access{Reads: st.Transform.Mask() | st.Player.Mask() | st.Collider.Mask() | st.Sprite.Mask()}
}

func (s *VisibilitySystem) Update(_ *coresys.Context, v ecs.View) {
	s.ok = false
	owner := ecs.NoEntity
	best := math.MaxInt
	for id := range v.Query(s.stores.Player.Mask() | s.stores.Transform.Mask()) {
		p, _ := ecs.Read(v, s.stores.Player, id)
		if p.Number < best {
			owner, best = id, p.Number
		}
	}
	if owner == ecs.NoEntity {
		s.set.Reset()
		return
	}
	tr, _ := ecs.Read(v, s.stores.Transform, owner)
	eye := s.cfg.EyeHeight
	if col, ok := ecs.Read(v, s.stores.Collider, owner); ok && col.Height > 0 {
		eye = min(eye, col.Height*0.75)
	}
	s.cam = visibility.Camera{
		Pos:   tr.Pos.Add(geom.V3(0, 0, eye)),
		Yaw:   tr.Angle,
		Pitch: tr.Pitch,
		FOV:   s.cfg.FOV * math.Pi / 180,
		Near:  s.cfg.Near,
		Owner: owner,
	}
	s.view = v
	s.solver.Compute(s.cam, &s.set)
	s.view = ecs.View{}
	s.ok = true
}

// billboard feeds sprite entities to the solver. Entities marked for
// destruction this tick are already gone.
func (s *VisibilitySystem) billboard(id ecs.EntityID) (geom.Vec3, float64, bool) {
	if !s.view.Alive(id) {
		return geom.Vec3{}, 0, false
	}
	sp, ok := ecs.Read(s.view, s.stores.Sprite, id)
	if !ok {
		return geom.Vec3{}, 0, false
	}
	tr, _ := ecs.Read(s.view, s.stores.Transform, id)
	return tr.Pos, sp.Width / 2, true
}

// Frame returns the last computed set and its camera; ok is false when no
// player exists.
func (s *VisibilitySystem) Frame() (*visibility.VisibleSet, visibility.Camera, bool) {
	return &s.set, s.cam, s.ok
}
