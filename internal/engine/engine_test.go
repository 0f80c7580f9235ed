package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sectorgo/engine/internal/core/event"
	"github.com/sectorgo/engine/internal/data"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/input"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/render"
)

func roomLevel(t *testing.T, name string) *level.Map {
	t.Helper()
	s := level.NewSketch(name)
	s.Sector(0, 128, 160, level.Rect(0, 0, 512, 512)...)
	s.Thing(64, 64, 0, 1)       // player start
	s.Thing(300, 300, 90, 3001) // imp
	s.Thing(100, 64, 0, 2012)   // medikit
	s.Thing(200, 200, 0, 1)     // duplicate start
	m, err := s.Build()
	if err != nil {
		t.Fatalf("build %s: %v", name, err)
	}
	return m
}

func testLoader(t *testing.T, names ...string) Loader {
	maps := make(map[string]*level.Map)
	for _, n := range names {
		maps[n] = roomLevel(t, n)
	}
	return func(name string) (*level.Map, error) {
		if m, ok := maps[name]; ok {
			return m, nil
		}
		return nil, data.ErrUnknownLevel
	}
}

type recorder struct {
	mu     sync.Mutex
	levels []string
}

func (r *recorder) Submit(_ context.Context, dl *render.DrawList) error {
	r.mu.Lock()
	r.levels = append(r.levels, dl.Level)
	r.mu.Unlock()
	return nil
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.levels
	r.levels = nil
	return out
}

func TestSchedulerLevelChange(t *testing.T) {
	rec := &recorder{}
	p := render.NewPipeline(rec, time.Second, nil)

	var changes []string
	s := NewScheduler(testLoader(t, "a", "b"), p, Options{
		Attach: func(lv *Level) {
			event.Subscribe(lv.Bus, func(e event.LevelChanged) { changes = append(changes, e.Name) })
		},
	})
	if err := s.Step(input.Snapshot{}); !errors.Is(err, ErrNoLevel) {
		t.Fatalf("step without level: %v", err)
	}
	if err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Step(input.Snapshot{Forward: 1}); err != nil {
			t.Fatal(err)
		}
		p.Wait()
	}
	for _, name := range rec.take() {
		if name != "a" {
			t.Fatalf("frame from %q before change", name)
		}
	}

	s.RequestLevel("missing")
	if err := s.Step(input.Snapshot{}); !errors.Is(err, data.ErrUnknownLevel) {
		t.Fatalf("bad change: %v", err)
	}
	if s.Level().Name() != "a" {
		t.Fatalf("failed change replaced the level")
	}
	p.Wait()
	rec.take()

	old := s.Level()
	s.RequestLevel("b")
	if err := s.Step(input.Snapshot{}); err != nil {
		t.Fatal(err)
	}
	p.Wait()
	if s.Level() == old || s.Level().Name() != "b" {
		t.Fatalf("level not replaced")
	}
	if old.Bus.Pending() != 0 {
		t.Fatalf("old bus kept %d events", old.Bus.Pending())
	}
	for _, name := range rec.take() {
		if name != "b" {
			t.Fatalf("frame from %q after change", name)
		}
	}
	if len(changes) != 2 || changes[0] != "a" || changes[1] != "b" {
		t.Fatalf("level changes = %v", changes)
	}
	if s.Tick() != 5 {
		t.Fatalf("tick = %d", s.Tick())
	}
	s.Close()
}

func TestSpawnThings(t *testing.T) {
	s := level.NewSketch("spawn")
	s.Sector(0, 128, 160, level.Rect(0, 0, 512, 512)...)
	s.Thing(64, 64, 90, 1)
	s.Thing(300, 300, 0, 3001)
	s.Thing(400, 300, 0, 3004)
	s.Thing(100, 100, 0, 9999)
	d := s.Data()
	d.Things[1].Flags = level.ThingHard
	d.Things[2].Flags |= level.ThingMultiOnly
	m, err := level.Build(d)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		skill int
		want  int
	}{
		{1, 1},
		{2, 1},
		{3, 2},
	}
	for _, tt := range tests {
		lv, err := NewLevel(m, nil, Options{Skill: -1, Things: nil})
		if err != nil {
			t.Fatal(err)
		}
		if got := SpawnThings(lv, data.DefaultThingTable(), tt.skill, nil); got != tt.want {
			t.Errorf("skill %d: spawned %d, want %d", tt.skill, got, tt.want)
		}
	}

	lv, err := NewLevel(m, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	id, ok := lv.Player()
	if !ok {
		t.Fatal("no player spawned")
	}
	tr, _ := lv.Stores.Transform.Get(id)
	if !tr.Pos.XY().ApproxEqual(geom.V2(64, 64), 1e-9) || tr.Pos.Z != 0 {
		t.Fatalf("player at %+v", tr.Pos)
	}
	if ss, ok := lv.Occupancy.Where(id); !ok || ss != lv.Map.FindSubsector(geom.V2(64, 64)) {
		t.Fatalf("player not indexed")
	}
	if _, ok := Spawn(lv, data.DefaultThingTable().Get(1), geom.V2(-50, -50), 0); ok {
		t.Fatal("spawned outside the map")
	}
}

func TestPlayerWalksAndPicksUp(t *testing.T) {
	s := NewScheduler(testLoader(t, "a"), nil, Options{})
	if err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	lv := s.Level()
	var picked int
	event.Subscribe(lv.Bus, func(event.ItemPickedUp) { picked++ })

	id, _ := lv.Player()
	hp, _ := lv.Stores.Health.Get(id)
	hp.Current = 50
	for i := 0; i < 10; i++ {
		if err := s.Step(input.Snapshot{Forward: 1}); err != nil {
			t.Fatal(err)
		}
	}
	tr, _ := lv.Stores.Transform.Get(id)
	if tr.Pos.X <= 64 {
		t.Fatalf("player did not move: %+v", tr.Pos)
	}
	if picked != 1 {
		t.Fatalf("picked %d items", picked)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		name string
		ok   bool
	}{
		{"map e1m2", "map", true},
		{"  MAP   e1m2 ", "map", true},
		{"map", "", false},
		{"map a b", "", false},
		{"quit", "quit", true},
		{"exit", "quit", true},
		{"", "", false},
		{"noclip", "", false},
	}
	for _, tt := range tests {
		c, err := ParseCommand(tt.line)
		if (err == nil) != tt.ok || c.Name != tt.name {
			t.Errorf("ParseCommand(%q) = %+v, %v", tt.line, c, err)
		}
	}
}

func TestLoopAdvance(t *testing.T) {
	s := NewScheduler(testLoader(t, "a"), nil, Options{})
	if err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	ticks := 0
	l := NewLoop(s, nil, 10*time.Millisecond, 3, nil)
	l.OnTick = func(*Scheduler, time.Duration) { ticks++ }

	if left := l.advance(35 * time.Millisecond); left != 5*time.Millisecond || ticks != 3 {
		t.Fatalf("advance(35ms) left %v after %d ticks", left, ticks)
	}
	if left := l.advance(100 * time.Millisecond); left != 0 || ticks != 6 {
		t.Fatalf("advance(100ms) left %v after %d ticks", left, ticks)
	}
}

func TestLoopCommands(t *testing.T) {
	s := NewScheduler(testLoader(t, "a", "b"), nil, Options{})
	if err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	l := NewLoop(s, nil, time.Hour, 1, nil)
	if err := l.Submit("teleport"); err == nil {
		t.Fatal("unknown command queued")
	}
	if err := l.Submit("map b"); err != nil {
		t.Fatal(err)
	}
	if err := l.Submit("quit"); err != nil {
		t.Fatal(err)
	}
	if err := l.Run(context.Background()); !errors.Is(err, ErrQuit) {
		t.Fatalf("run = %v", err)
	}
	if err := s.Step(input.Snapshot{}); err != nil {
		t.Fatal(err)
	}
	if s.Level().Name() != "b" {
		t.Fatalf("map command not applied")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled run = %v", err)
	}
}
