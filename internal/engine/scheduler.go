package engine

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/core/event"
	"github.com/sectorgo/engine/internal/input"
	"github.com/sectorgo/engine/internal/level"
	"github.com/sectorgo/engine/internal/render"
)

// ErrNoLevel is returned by Step before any level was loaded.
var ErrNoLevel = errors.New("engine: no level loaded")

// Loader resolves a level name to a built map.
type Loader func(name string) (*level.Map, error)

// Scheduler owns the active level and the render pipeline. Level changes
// requested from any goroutine are applied between two ticks.
type Scheduler struct {
	load     Loader
	pipeline *render.Pipeline
	opts     Options
	log      *zap.Logger

	level *Level
	tick  uint64

	mu      sync.Mutex
	pending string
}

// NewScheduler creates a scheduler; p may be nil to run without rendering.
func NewScheduler(load Loader, p *render.Pipeline, opts Options) *Scheduler {
	opts.fill()
	return &Scheduler{load: load, pipeline: p, opts: opts, log: opts.Log}
}

// Level returns the active level, or nil.
func (s *Scheduler) Level() *Level { return s.level }

// Tick returns the number of ticks run since the scheduler was created.
func (s *Scheduler) Tick() uint64 { return s.tick }

// Pipeline returns the render pipeline, or nil.
func (s *Scheduler) Pipeline() *render.Pipeline { return s.pipeline }

// RequestLevel asks for name to replace the active level before the next
// tick. A later request overrides an earlier one not yet applied.
func (s *Scheduler) RequestLevel(name string) {
	s.mu.Lock()
	s.pending = name
	s.mu.Unlock()
}

// Load replaces the active level with name immediately. On failure the
// active level is kept.
func (s *Scheduler) Load(name string) error {
	m, err := s.load(name)
	if err != nil {
		return err
	}
	lv, err := NewLevel(m, s.pipeline, s.opts)
	if err != nil {
		return err
	}
	s.swap(lv)
	return nil
}

// swap installs lv. Frames built for the old level are dropped and its bus
// is discarded with its undelivered events.
func (s *Scheduler) swap(lv *Level) {
	if s.pipeline != nil {
		s.pipeline.Invalidate()
	}
	if s.level != nil {
		s.level.Bus.Reset()
	}
	s.level = lv
	if s.opts.Attach != nil {
		s.opts.Attach(lv)
	}
	event.Emit(lv.Bus, event.LevelChanged{Name: lv.Map.Name})
	s.log.Info("level loaded",
		zap.String("level", lv.Map.Name),
		zap.String("digest", lv.Map.Digest),
		zap.Int("sectors", len(lv.Map.Sectors)),
		zap.Int("subsectors", len(lv.Map.Subsectors)),
		zap.Int("entities", lv.World.Len()),
	)
}

func (s *Scheduler) takePending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.pending
	s.pending = ""
	return name
}

// Step applies a pending level change, then runs one tick with in. A failed
// level change is returned after the tick runs on the old level.
func (s *Scheduler) Step(in input.Snapshot) error {
	var changeErr error
	if name := s.takePending(); name != "" {
		if err := s.Load(name); err != nil {
			s.log.Error("level change failed", zap.String("level", name), zap.Error(err))
			changeErr = fmt.Errorf("change to %s: %w", name, err)
		}
	}
	if s.level == nil {
		if changeErr != nil {
			return changeErr
		}
		return ErrNoLevel
	}
	s.tick++
	s.level.step(s.tick, in)
	return changeErr
}

// Close waits for the in-flight frame.
func (s *Scheduler) Close() {
	if s.pipeline != nil {
		s.pipeline.Invalidate()
		s.pipeline.Wait()
	}
}
