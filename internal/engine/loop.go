package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/input"
)

// ErrQuit is returned by Run after a quit command.
var ErrQuit = errors.New("engine: quit")

// Command is one parsed console line.
type Command struct {
	Name string
	Args []string
}

// ParseCommand accepts "map <name>" and "quit".
func ParseCommand(line string) (Command, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	c := Command{Name: strings.ToLower(f[0]), Args: f[1:]}
	switch c.Name {
	case "map":
		if len(c.Args) != 1 {
			return Command{}, fmt.Errorf("usage: map <name>")
		}
	case "quit", "exit":
		c.Name = "quit"
		c.Args = nil
	default:
		return Command{}, fmt.Errorf("unknown command %q", c.Name)
	}
	return c, nil
}

// Loop drives the scheduler at a fixed rate. Wall time accumulates between
// wake-ups and is spent in whole ticks; at most MaxCatchUp ticks run per
// wake-up and any remaining backlog is dropped.
type Loop struct {
	sched      *Scheduler
	platform   input.Platform
	rate       time.Duration
	maxCatchUp int
	commands   chan Command
	log        *zap.Logger

	// OnTick, when set, runs on the loop goroutine after every tick with the
	// time the tick took.
	OnTick func(s *Scheduler, d time.Duration)
}

func NewLoop(s *Scheduler, p input.Platform, rate time.Duration, maxCatchUp int, log *zap.Logger) *Loop {
	if p == nil {
		p = input.Idle{}
	}
	if rate <= 0 {
		rate = time.Second / 35
	}
	if maxCatchUp <= 0 {
		maxCatchUp = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		sched:      s,
		platform:   p,
		rate:       rate,
		maxCatchUp: maxCatchUp,
		commands:   make(chan Command, 16),
		log:        log,
	}
}

// Submit parses line and queues it for the loop goroutine. It never blocks.
func (l *Loop) Submit(line string) error {
	c, err := ParseCommand(line)
	if err != nil {
		return err
	}
	select {
	case l.commands <- c:
		return nil
	default:
		return fmt.Errorf("console busy")
	}
}

// Run ticks until ctx is done or a quit command arrives.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.rate)
	defer ticker.Stop()

	last := time.Now()
	var acc time.Duration
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-l.commands:
			if err := l.exec(c); err != nil {
				return err
			}
		case now := <-ticker.C:
			acc += now.Sub(last)
			last = now
			acc = l.advance(acc)
		}
	}
}

// advance runs the ticks acc pays for and returns the leftover time.
func (l *Loop) advance(acc time.Duration) time.Duration {
	n := 0
	for acc >= l.rate && n < l.maxCatchUp {
		start := time.Now()
		if err := l.sched.Step(l.platform.Poll()); err != nil && !errors.Is(err, ErrNoLevel) {
			l.log.Warn("tick", zap.Error(err))
		}
		if l.OnTick != nil {
			l.OnTick(l.sched, time.Since(start))
		}
		acc -= l.rate
		n++
	}
	if acc >= l.rate {
		l.log.Debug("dropping backlog", zap.Duration("behind", acc))
		acc %= l.rate
	}
	return acc
}

func (l *Loop) exec(c Command) error {
	switch c.Name {
	case "quit":
		l.log.Info("quit requested")
		return ErrQuit
	case "map":
		l.log.Info("level change requested", zap.String("level", c.Args[0]))
		l.sched.RequestLevel(c.Args[0])
	}
	return nil
}
