package render

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrStale is reported to the observer when a list built for an older level
// generation is dropped instead of submitted.
var ErrStale = errors.New("render: stale draw list")

// PipelineStats counts what happened to built frames.
type PipelineStats struct {
	Submitted uint64
	Skipped   uint64 // previous frame still in flight
	Stale     uint64
	Failed    uint64
}

// Pipeline hands draw lists to a Backend on its own goroutine. Two buffers
// alternate: the simulation builds into Begin() while the other one may be in
// flight. A frame finished while the backend is busy is dropped so the
// simulation never waits on rendering.
type Pipeline struct {
	backend Backend
	timeout time.Duration
	log     *zap.Logger

	bufs [2]DrawList
	back int

	inflight   atomic.Bool
	generation atomic.Uint64
	wg         sync.WaitGroup

	mu     sync.Mutex // guards cancel and the generation check before Submit
	cancel context.CancelFunc

	submitted, skipped, stale, failed atomic.Uint64

	// Observe, when set, is called after every backend submission.
	Observe func(d time.Duration, err error)
}

func NewPipeline(b Backend, timeout time.Duration, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Pipeline{backend: b, timeout: timeout, log: log}
}

// Begin returns the buffer the next frame is built into, stamped with the
// current generation. It is never the buffer being submitted.
func (p *Pipeline) Begin() *DrawList {
	dl := &p.bufs[p.back]
	dl.Generation = p.generation.Load()
	return dl
}

// Generation is the level generation stamped on submitted lists.
func (p *Pipeline) Generation() uint64 { return p.generation.Load() }

// Invalidate bumps the generation. Lists built before the call are dropped,
// and an in-flight submission has its context cancelled.
func (p *Pipeline) Invalidate() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	g := p.generation.Add(1)
	if p.cancel != nil {
		p.cancel()
	}
	return g
}

// Submit sends the buffer returned by Begin to the backend asynchronously
// and swaps buffers. It returns false, leaving the buffers alone, when the
// previous frame has not finished.
func (p *Pipeline) Submit(tick uint64) bool {
	if !p.inflight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		return false
	}
	dl := &p.bufs[p.back]
	dl.Tick = tick
	p.back ^= 1

	p.wg.Add(1)
	go p.run(dl)
	return true
}

func (p *Pipeline) run(dl *DrawList) {
	defer p.wg.Done()
	defer p.inflight.Store(false)

	p.mu.Lock()
	if dl.Generation != p.generation.Load() {
		p.mu.Unlock()
		p.stale.Add(1)
		p.observe(0, ErrStale)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	p.cancel = cancel
	p.mu.Unlock()

	start := time.Now()
	err := p.backend.Submit(ctx, dl)
	elapsed := time.Since(start)

	p.mu.Lock()
	p.cancel = nil
	p.mu.Unlock()
	cancel()

	if err != nil {
		p.failed.Add(1)
		p.log.Warn("render submit failed",
			zap.Uint64("tick", dl.Tick),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	} else {
		p.submitted.Add(1)
	}
	p.observe(elapsed, err)
}

func (p *Pipeline) observe(d time.Duration, err error) {
	if p.Observe != nil {
		p.Observe(d, err)
	}
}

// Wait blocks until no submission is in flight.
func (p *Pipeline) Wait() { p.wg.Wait() }

func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Submitted: p.submitted.Load(),
		Skipped:   p.skipped.Load(),
		Stale:     p.stale.Load(),
		Failed:    p.failed.Load(),
	}
}
