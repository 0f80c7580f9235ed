// Package term is a terminal front end: a render.Backend that rasterizes draw
// lists into character cells and an input.Platform fed by key events.
package term

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/sectorgo/engine/internal/render"
)

// Display owns a tcell screen.
type Display struct {
	screen tcell.Screen
	keys   *Keys

	mu     sync.Mutex
	raster *Raster
	status string
}

// Open initializes the terminal. Call Close to restore it.
func Open() (*Display, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return NewDisplay(screen), nil
}

// NewDisplay wraps an initialized screen.
func NewDisplay(screen tcell.Screen) *Display {
	w, h := screen.Size()
	return &Display{
		screen: screen,
		keys:   NewKeys(),
		raster: NewRaster(w, max(h-1, 1)),
	}
}

// Input returns the platform fed by Pump.
func (d *Display) Input() *Keys { return d.keys }

// SetStatus replaces the text shown on the bottom row.
func (d *Display) SetStatus(s string) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

// Submit draws dl. It is called from the render pipeline goroutine.
func (d *Display) Submit(ctx context.Context, dl *render.DrawList) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, h := d.screen.Size()
	if w != d.raster.W || h-1 != d.raster.H {
		d.raster.Resize(w, h-1)
	}
	d.raster.Draw(dl)
	if err := ctx.Err(); err != nil {
		return err
	}
	for y := 0; y < d.raster.H; y++ {
		for x := 0; x < d.raster.W; x++ {
			c := d.raster.At(x, y)
			d.screen.SetContent(x, y, c.Rune, nil, cellStyle(c))
		}
	}
	line := fmt.Sprintf(" %s  tick %d  surfaces %d  sprites %d  %s",
		dl.Level, dl.Tick, len(dl.Surfaces), len(dl.Billboards), d.status)
	d.drawText(0, h-1, line, tcell.StyleDefault.Reverse(true))
	d.screen.Show()
	return nil
}

func (d *Display) drawText(x, y int, s string, style tcell.Style) {
	w, _ := d.screen.Size()
	for _, r := range s {
		if x >= w {
			return
		}
		d.screen.SetContent(x, y, r, nil, style)
		x++
	}
	for ; x < w; x++ {
		d.screen.SetContent(x, y, ' ', nil, style)
	}
}

func cellStyle(c Cell) tcell.Style {
	if c.Empty {
		return tcell.StyleDefault
	}
	v := int32(40 + c.Light*215)
	var col tcell.Color
	switch {
	case c.Sprite:
		col = tcell.NewRGBColor(v, v/3, v/3)
	case c.Kind == render.SurfaceFloor:
		col = tcell.NewRGBColor(v*3/4, v*3/5, v/2)
	case c.Kind == render.SurfaceCeiling:
		col = tcell.NewRGBColor(v/2, v/2, v*3/5)
	case c.Kind == render.SurfaceSky:
		col = tcell.NewRGBColor(40, 60, v)
	default:
		col = tcell.NewRGBColor(v, v, v)
	}
	return tcell.StyleDefault.Foreground(col)
}

// Pump feeds key events to the input platform until ctx is done or the user
// asks to quit, which calls onQuit.
func (d *Display) Pump(ctx context.Context, onQuit func()) {
	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := d.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if d.keys.Handle(ev) {
					onQuit()
					return
				}
			case *tcell.EventResize:
				d.screen.Sync()
			}
		}
	}
}

// Close restores the terminal.
func (d *Display) Close() {
	d.screen.Fini()
}
