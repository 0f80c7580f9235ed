package term

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/sectorgo/engine/internal/input"
)

// Terminals report presses and repeats but no releases, so a key counts as
// held until hold has passed without a repeat.
const defaultHold = 120 * time.Millisecond

type control int

const (
	ctlForward control = iota
	ctlBack
	ctlLeft
	ctlRight
	ctlStrafeLeft
	ctlStrafeRight
	ctlRun
	numControls
)

var shifted = map[rune]control{'W': ctlForward, 'S': ctlBack, 'A': ctlStrafeLeft, 'D': ctlStrafeRight}

// Keys is an input.Platform driven by tcell key events.
type Keys struct {
	Hold     time.Duration
	TurnRate float64 // radians per tick at full turn

	mu      sync.Mutex
	last    [numControls]time.Time
	pressed input.ActionFlags
	now     func() time.Time
}

func NewKeys() *Keys {
	return &Keys{Hold: defaultHold, TurnRate: 0.07, now: time.Now}
}

// Handle records ev and reports whether it asks to quit.
func (k *Keys) Handle(ev *tcell.EventKey) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		k.last[ctlForward] = now
	case tcell.KeyDown:
		k.last[ctlBack] = now
	case tcell.KeyLeft:
		k.last[ctlLeft] = now
	case tcell.KeyRight:
		k.last[ctlRight] = now
	case tcell.KeyEnter:
		k.pressed |= input.ActionUse
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'w':
			k.last[ctlForward] = now
		case 's':
			k.last[ctlBack] = now
		case 'a':
			k.last[ctlStrafeLeft] = now
		case 'd':
			k.last[ctlStrafeRight] = now
		case 'W', 'S', 'A', 'D':
			k.last[ctlRun] = now
			k.last[shifted[ev.Rune()]] = now
		case 'e', ' ':
			k.pressed |= input.ActionUse
		case 'f':
			k.pressed |= input.ActionFire
		case 'j':
			k.pressed |= input.ActionJump
		}
	}
	return false
}

func (k *Keys) held(c control, now time.Time) bool {
	return !k.last[c].IsZero() && now.Sub(k.last[c]) < k.Hold
}

func (k *Keys) axis(pos, neg control, now time.Time) float64 {
	var v float64
	if k.held(pos, now) {
		v++
	}
	if k.held(neg, now) {
		v--
	}
	return v
}

// Poll implements input.Platform. Turning left is a positive turn.
func (k *Keys) Poll() input.Snapshot {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	s := input.Snapshot{
		Forward: k.axis(ctlForward, ctlBack, now),
		Strafe:  k.axis(ctlStrafeRight, ctlStrafeLeft, now),
		Turn:    k.axis(ctlLeft, ctlRight, now) * k.TurnRate,
		Actions: k.pressed,
	}
	if k.held(ctlRun, now) {
		s.Actions |= input.ActionRun
	}
	k.pressed = 0
	return s
}
