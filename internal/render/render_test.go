package render

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/visibility"
	"github.com/sectorgo/engine/internal/world"
)

func setup(t *testing.T, s *level.Sketch) (*level.Map, *world.MapState, *world.Occupancy) {
	t.Helper()
	m, err := s.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return m, world.NewMapState(m), world.NewOccupancy(m)
}

func eyeAt(x, y, yaw float64) visibility.Camera {
	return visibility.Camera{Pos: geom.V3(x, y, 41), Yaw: yaw, FOV: math.Pi / 2, Near: 1}
}

func TestBuildSurfaces(t *testing.T) {
	s := level.NewSketch("steps")
	s.Sector(0, 128, 160, level.Rect(0, 0, 128, 128)...)
	high := s.Sector(16, 128, 200, level.Rect(128, 0, 256, 128)...)
	d := s.Data()
	d.Sectors[high].CeilingTexture = level.Sky
	m, err := level.Build(d)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	st, occ := world.NewMapState(m), world.NewOccupancy(m)

	var vs visibility.VisibleSet
	cam := eyeAt(32, 64, 0)
	visibility.NewSolver(m, st, occ).Compute(cam, &vs)

	var dl DrawList
	NewBuilder(st, nil).Build(&dl, &vs, cam)
	if dl.Level != "steps" || len(dl.Surfaces) == 0 {
		t.Fatalf("empty draw list: %+v", dl)
	}

	here := m.FindSubsector(geom.V2(32, 64))
	if dl.Surfaces[0].Subsector != here {
		t.Fatalf("first surface in subsector %d, want camera subsector %d", dl.Surfaces[0].Subsector, here)
	}

	kinds := map[SurfaceKind]int{}
	var lower bool
	for _, sf := range dl.Surfaces {
		kinds[sf.Kind]++
		if sf.Kind == SurfaceWall {
			if len(sf.Points) != 4 {
				t.Fatalf("wall with %d points", len(sf.Points))
			}
			if sf.Points[0].Z == 0 && sf.Points[2].Z == 16 {
				lower = true
			}
		}
	}
	if !lower {
		t.Fatalf("lower step wall missing")
	}
	if kinds[SurfaceFloor] < 2 || kinds[SurfaceCeiling] == 0 || kinds[SurfaceSky] == 0 {
		t.Fatalf("plane kinds = %v", kinds)
	}
}

func TestBillboardsBackToFront(t *testing.T) {
	s := level.NewSketch("hall")
	s.Sector(0, 128, 160, level.Rect(0, 0, 512, 128)...)
	m, st, occ := setup(t, s)

	sprites := map[ecs.EntityID]geom.Vec3{
		ecs.NewEntityID(1, 1): geom.V3(100, 64, 0),
		ecs.NewEntityID(2, 1): geom.V3(400, 64, 0),
		ecs.NewEntityID(3, 1): geom.V3(250, 40, 0),
		ecs.NewEntityID(4, 1): geom.V3(250, 88, 0),
	}
	for id, p := range sprites {
		occ.Add(id, m.FindSubsector(p.XY()))
	}
	solver := visibility.NewSolver(m, st, occ)
	solver.SetEntities(func(id ecs.EntityID) (geom.Vec3, float64, bool) {
		p, ok := sprites[id]
		return p, 16, ok
	})
	src := func(id ecs.EntityID) (geom.Vec3, component.Sprite, bool) {
		p, ok := sprites[id]
		return p, component.Sprite{Texture: "TROOA1", Width: 32, Height: 56, FullBright: id == ecs.NewEntityID(2, 1)}, ok
	}

	var vs visibility.VisibleSet
	cam := eyeAt(16, 64, 0)
	solver.Compute(cam, &vs)
	var dl DrawList
	NewBuilder(st, src).Build(&dl, &vs, cam)

	want := []ecs.EntityID{ecs.NewEntityID(2, 1), ecs.NewEntityID(3, 1), ecs.NewEntityID(4, 1), ecs.NewEntityID(1, 1)}
	if len(dl.Billboards) != len(want) {
		t.Fatalf("billboards = %+v", dl.Billboards)
	}
	for i, b := range dl.Billboards {
		if b.Entity != want[i] {
			t.Fatalf("billboard %d = %v, want %v", i, b.Entity, want[i])
		}
	}
	if dl.Billboards[0].Light != 1 {
		t.Fatalf("full bright sprite lit at %v", dl.Billboards[0].Light)
	}
}

func TestCameraMatrices(t *testing.T) {
	s := level.NewSketch("room")
	s.Sector(0, 128, 160, level.Rect(-256, -256, 256, 256)...)
	_, st, _ := setup(t, s)
	b := NewBuilder(st, nil)
	cam := b.camera(eyeAt(0, 0, 0))
	mvp := cam.Projection.Mul(cam.View)

	ahead := mvp.Transform(geom.V3(100, 0, 41))
	if math.Abs(ahead.X) > 1e-9 || math.Abs(ahead.Y) > 1e-9 {
		t.Fatalf("point ahead projected to %+v", ahead)
	}
	right := mvp.Transform(geom.V3(100, 0, 41).Add(cam.Right.Scale(10)))
	if right.X <= 0 {
		t.Fatalf("point on the right projected to x=%v", right.X)
	}
	above := mvp.Transform(geom.V3(100, 0, 61))
	if above.Y <= 0 {
		t.Fatalf("point above projected to y=%v", above.Y)
	}
	// The horizontal fov edge lands on the screen edge.
	edge := mvp.Transform(geom.V3(100, -100, 41))
	if math.Abs(edge.X-1) > 1e-9 {
		t.Fatalf("fov edge at x=%v", edge.X)
	}
}

type blockingBackend struct {
	release chan struct{}
	got     chan *DrawList
}

func (b *blockingBackend) Submit(ctx context.Context, dl *DrawList) error {
	b.got <- dl
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestPipelineSkipsWhileInFlight(t *testing.T) {
	be := &blockingBackend{release: make(chan struct{}), got: make(chan *DrawList, 4)}
	p := NewPipeline(be, time.Minute, nil)

	first := p.Begin()
	if !p.Submit(1) {
		t.Fatalf("first submit refused")
	}
	<-be.got
	second := p.Begin()
	if second == first {
		t.Fatalf("builder handed the in-flight buffer")
	}
	if p.Submit(2) {
		t.Fatalf("second submit accepted while first in flight")
	}
	if p.Begin() != second {
		t.Fatalf("skipped frame swapped buffers")
	}
	close(be.release)
	p.Wait()

	if !p.Submit(3) {
		t.Fatalf("submit refused after completion")
	}
	if dl := <-be.got; dl.Tick != 3 || dl != second {
		t.Fatalf("submitted %+v", dl)
	}
	p.Wait()
	st := p.Stats()
	if st.Submitted != 2 || st.Skipped != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestPipelineDropsStaleGeneration(t *testing.T) {
	var calls int
	p := NewPipeline(BackendFunc(func(context.Context, *DrawList) error {
		calls++
		return nil
	}), time.Second, nil)
	var observed []error
	p.Observe = func(_ time.Duration, err error) { observed = append(observed, err) }

	p.Begin()
	p.Invalidate()
	p.Submit(1)
	p.Wait()
	if calls != 0 || p.Stats().Stale != 1 {
		t.Fatalf("stale list submitted: calls=%d stats=%+v", calls, p.Stats())
	}
	if len(observed) != 1 || !errors.Is(observed[0], ErrStale) {
		t.Fatalf("observed = %v", observed)
	}

	dl := p.Begin()
	if dl.Generation != 1 {
		t.Fatalf("generation = %d", dl.Generation)
	}
	p.Submit(2)
	p.Wait()
	if calls != 1 {
		t.Fatalf("current list not submitted")
	}
}

func TestPipelineInvalidateCancelsInFlight(t *testing.T) {
	be := &blockingBackend{release: make(chan struct{}), got: make(chan *DrawList, 1)}
	p := NewPipeline(be, time.Minute, nil)
	p.Begin()
	p.Submit(1)
	<-be.got
	p.Invalidate()
	p.Wait()
	if p.Stats().Failed != 1 {
		t.Fatalf("cancelled submit not counted: %+v", p.Stats())
	}
}

func TestPipelineTimeout(t *testing.T) {
	p := NewPipeline(BackendFunc(func(ctx context.Context, _ *DrawList) error {
		<-ctx.Done()
		return ctx.Err()
	}), 10*time.Millisecond, nil)
	var got error
	p.Observe = func(_ time.Duration, err error) { got = err }
	p.Begin()
	p.Submit(1)
	p.Wait()
	if !errors.Is(got, context.DeadlineExceeded) {
		t.Fatalf("err = %v", got)
	}
}
