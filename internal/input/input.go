// Package input defines the per-tick input snapshot the platform layer hands
// to the simulation.
package input

import "sync"

// ActionFlags are the buttons held during a tick.
type ActionFlags uint8

const (
	ActionUse ActionFlags = 1 << iota
	ActionFire
	ActionRun
	ActionJump
)

func (f ActionFlags) Has(a ActionFlags) bool { return f&a != 0 }

// Snapshot is the sampled input of one tick. Forward and Strafe are in
// [-1, 1]; Turn and Pitch are radians for this tick.
type Snapshot struct {
	Forward float64
	Strafe  float64
	Turn    float64
	Pitch   float64
	Actions ActionFlags
}

// Platform supplies input snapshots. Poll must not block.
type Platform interface {
	Poll() Snapshot
}

// Idle is a Platform that never reports input.
type Idle struct{}

func (Idle) Poll() Snapshot { return Snapshot{} }

// Script replays a fixed list of snapshots, then reports idle input.
type Script struct {
	Frames []Snapshot
	next   int
}

func (s *Script) Poll() Snapshot {
	if s.next >= len(s.Frames) {
		return Snapshot{}
	}
	f := s.Frames[s.next]
	s.next++
	return f
}

// Latch is a Platform fed from another goroutine: Set stores the latest
// state, Press adds edge-triggered actions that are reported once.
type Latch struct {
	mu      sync.Mutex
	state   Snapshot
	pressed ActionFlags
}

func (l *Latch) Set(s Snapshot) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Latch) Press(a ActionFlags) {
	l.mu.Lock()
	l.pressed |= a
	l.mu.Unlock()
}

func (l *Latch) Poll() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	s.Actions |= l.pressed
	l.pressed = 0
	return s
}
