package system

import (
	"strings"
	"testing"

	"github.com/sectorgo/engine/internal/core/ecs"
)

type stub struct {
	name   string
	phase  Phase
	access ecs.Access
	log    *[]string
}

func (p *stub) Name() string       { return p.name }
func (p *stub) Phase() Phase       { return p.phase }
func (p *stub) Access() ecs.Access { return p.access }
func (p *stub) Update(_ *Context, _ ecs.View) {
	*p.log = append(*p.log, p.name)
}

func TestRunnerPhaseOrder(t *testing.T) {
	w := ecs.NewWorld()
	var log []string
	r := NewRunner()
	r.Register(&stub{name: "cleanup", phase: PhaseCleanup, log: &log})
	r.Register(&stub{name: "physics", phase: PhasePhysics, log: &log})
	r.Register(&stub{name: "input", phase: PhaseInput, log: &log})
	r.Register(&stub{name: "physics2", phase: PhasePhysics, log: &log})
	if err := r.Build(w.Registry()); err != nil {
		t.Fatal(err)
	}
	var built []string
	for _, s := range r.Systems() {
		built = append(built, s.Name())
	}
	r.Tick(&Context{World: w})
	want := "input,physics,physics2,cleanup"
	if got := strings.Join(built, ","); got != want {
		t.Fatalf("schedule = %s, want %s", got, want)
	}
	if got := strings.Join(log, ","); got != want {
		t.Fatalf("order = %s, want %s", got, want)
	}

	log = log[:0]
	r.TickPhase(PhasePhysics, &Context{World: w})
	if got := strings.Join(log, ","); got != "physics,physics2" {
		t.Fatalf("TickPhase ran %s", got)
	}
}

func TestRunnerBuildRejectsConflicts(t *testing.T) {
	w := ecs.NewWorld()
	pos := ecs.Register[struct{ X float64 }](w, "pos")
	vel := ecs.Register[struct{ V float64 }](w, "vel")
	var log []string

	tests := []struct {
		name    string
		systems []*stub
		wantErr string
	}{
		{"disjoint writers", []*stub{
			{name: "a", phase: PhasePhysics, access: ecs.Access{Writes: pos.Mask()}},
			{name: "b", phase: PhasePhysics, access: ecs.Access{Writes: vel.Mask(), Reads: pos.Mask()}},
		}, ""},
		{"same component other phase", []*stub{
			{name: "a", phase: PhaseBehavior, access: ecs.Access{Writes: pos.Mask()}},
			{name: "b", phase: PhasePhysics, access: ecs.Access{Writes: pos.Mask()}},
		}, ""},
		{"two writers one phase", []*stub{
			{name: "a", phase: PhasePhysics, access: ecs.Access{Writes: pos.Mask()}},
			{name: "b", phase: PhasePhysics, access: ecs.Access{Writes: pos.Mask()}},
		}, "both write pos"},
		{"unknown component", []*stub{
			{name: "a", phase: PhaseInput, access: ecs.Access{Reads: ecs.MaskOf(40)}},
		}, "unknown components"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner()
			for _, s := range tt.systems {
				s.log = &log
				r.Register(s)
			}
			err := r.Build(w.Registry())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunnerRequiresBuild(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewRunner().Tick(&Context{World: ecs.NewWorld()})
}
