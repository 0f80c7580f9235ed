package system

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sectorgo/engine/internal/core/ecs"
)

// Runner executes systems in phase order each tick. Within a phase systems
// run to completion in registration order.
type Runner struct {
	systems  []System
	built    bool
	observer func(System, time.Duration)
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.built = false
}

// Observe installs a callback receiving each system's update duration.
func (r *Runner) Observe(fn func(System, time.Duration)) { r.observer = fn }

func (r *Runner) Systems() []System { return r.systems }

// Build orders the systems and validates their access declarations against
// reg: every declared component must be registered, and no two systems of
// the same phase may write the same component.
func (r *Runner) Build(reg *ecs.Registry) error {
	sort.SliceStable(r.systems, func(i, j int) bool {
		return r.systems[i].Phase() < r.systems[j].Phase()
	})

	var errs []error
	known := reg.Known()
	writers := make(map[Phase]map[ecs.ComponentID]string)
	for _, s := range r.systems {
		a := s.Access()
		if unknown := a.All() &^ known; unknown != 0 {
			errs = append(errs, fmt.Errorf("system %s: unknown components %v", s.Name(), unknown.IDs()))
			continue
		}
		w := writers[s.Phase()]
		if w == nil {
			w = make(map[ecs.ComponentID]string)
			writers[s.Phase()] = w
		}
		for _, id := range a.Writes.IDs() {
			if other, ok := w[id]; ok {
				errs = append(errs, fmt.Errorf("phase %s: %s and %s both write %s",
					s.Phase(), other, s.Name(), strings.Join(reg.Names(ecs.MaskOf(id)), ",")))
				continue
			}
			w[id] = s.Name()
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("schedule: %w", errors.Join(errs...))
	}
	r.built = true
	return nil
}

func (r *Runner) Tick(ctx *Context) {
	r.mustBeBuilt()
	for _, s := range r.systems {
		r.run(ctx, s)
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, ctx *Context) {
	r.mustBeBuilt()
	for _, s := range r.systems {
		if s.Phase() == phase {
			r.run(ctx, s)
		}
	}
}

func (r *Runner) run(ctx *Context, s System) {
	v := ctx.World.View(s.Name(), s.Access())
	if r.observer == nil {
		s.Update(ctx, v)
		return
	}
	start := time.Now()
	s.Update(ctx, v)
	r.observer(s, time.Since(start))
}

func (r *Runner) mustBeBuilt() {
	if !r.built {
		panic("system: Runner used before Build")
	}
}
