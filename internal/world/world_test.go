package world

import (
	"slices"
	"testing"

	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/level"
)

func doorMap(t *testing.T) *level.Map {
	t.Helper()
	s := level.NewSketch("door")
	s.Sector(0, 128, 160, level.Rect(0, 0, 128, 128)...)
	s.Sector(0, 0, 160, level.Rect(128, 0, 144, 128)...)
	s.Sector(0, 128, 160, level.Rect(144, 0, 272, 128)...)
	m, err := s.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return m
}

func TestMapStateStartsFromMap(t *testing.T) {
	m := doorMap(t)
	s := NewMapState(m)
	for i := range m.Sectors {
		id := level.SectorID(i)
		if s.FloorHeight(id) != m.Sectors[i].Floor || s.CeilingHeight(id) != m.Sectors[i].Ceiling {
			t.Fatalf("sector %d heights differ from map", i)
		}
	}
	s.SetLight(0, 2)
	if s.Light(0) != 1 {
		t.Fatalf("light not clamped: %v", s.Light(0))
	}
	var closed int
	for i := range m.Linedefs {
		if s.Closed(level.LinedefID(i)) {
			closed++
		}
	}
	if closed != 2 {
		t.Fatalf("closed door lines = %d, want 2", closed)
	}
}

func TestMoverRunsToTargetAndFinishes(t *testing.T) {
	m := doorMap(t)
	s := NewMapState(m)
	target, ok := m.LowestNeighbourCeiling(s, 1)
	if !ok {
		t.Fatalf("door sector has no neighbours")
	}
	s.StartMover(Mover{Sector: 1, Plane: PlaneCeiling, Target: target - 4, Speed: 16})

	var done []level.SectorID
	ticks := 0
	for len(done) == 0 && ticks < 100 {
		done = s.StepMovers(nil, done[:0])
		ticks++
	}
	if ticks != 8 {
		t.Fatalf("door opened in %d ticks, want 8", ticks)
	}
	if !slices.Equal(done, []level.SectorID{1}) || s.CeilingHeight(1) != 124 {
		t.Fatalf("done=%v ceiling=%v", done, s.CeilingHeight(1))
	}
	if s.MoverOf(1) != nil {
		t.Fatalf("finished mover still installed")
	}
}

func TestMoverHangsWhileBlocked(t *testing.T) {
	m := doorMap(t)
	s := NewMapState(m)
	s.SetCeiling(1, 124)
	s.StartMover(Mover{Sector: 1, Plane: PlaneCeiling, Target: 0, Speed: 8})

	blocked := true
	fits := func(_ level.SectorID, floor, ceiling float64) bool {
		return !blocked || ceiling-floor >= 56
	}
	for i := 0; i < 20; i++ {
		s.StepMovers(fits, nil)
	}
	if got := s.CeilingHeight(1); got < 56 {
		t.Fatalf("ceiling crushed occupant: %v", got)
	}
	if mv := s.MoverOf(1); mv == nil || !mv.Hanging {
		t.Fatalf("mover should be hanging")
	}
	blocked = false
	for i := 0; i < 20; i++ {
		s.StepMovers(fits, nil)
	}
	if s.CeilingHeight(1) != 0 || s.MoverOf(1) != nil {
		t.Fatalf("door did not close after occupant left")
	}
}

func TestMoverHoldAndReturn(t *testing.T) {
	m := doorMap(t)
	s := NewMapState(m)
	s.StartMover(Mover{Sector: 1, Plane: PlaneCeiling, Target: 32, Speed: 32, Hold: 3, Return: 0})
	var done []level.SectorID
	for i := 0; i < 10 && len(done) == 0; i++ {
		done = s.StepMovers(nil, nil)
		if i == 2 && s.CeilingHeight(1) != 32 {
			t.Fatalf("door not held open")
		}
	}
	if len(done) != 1 || s.CeilingHeight(1) != 0 {
		t.Fatalf("door did not return: done=%v ceiling=%v", done, s.CeilingHeight(1))
	}
}

func TestOccupancySorted(t *testing.T) {
	m := doorMap(t)
	o := NewOccupancy(m)
	ids := []ecs.EntityID{ecs.NewEntityID(5, 1), ecs.NewEntityID(1, 1), ecs.NewEntityID(3, 2)}
	for _, id := range ids {
		o.Add(id, 0)
	}
	if got := o.In(0); !slices.IsSorted(got) || len(got) != 3 {
		t.Fatalf("cell = %v", got)
	}
	o.Move(ids[0], 1)
	if ss, _ := o.Where(ids[0]); ss != 1 || len(o.In(0)) != 2 {
		t.Fatalf("move failed")
	}
	o.Remove(ids[1])
	if _, ok := o.Where(ids[1]); ok || o.Len() != 2 {
		t.Fatalf("remove failed")
	}
	got := o.InSector(m, m.SectorOf(1), nil)
	if !slices.Equal(got, []ecs.EntityID{ids[0]}) {
		t.Fatalf("InSector = %v", got)
	}
}
