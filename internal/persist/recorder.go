package persist

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/core/event"
	"github.com/sectorgo/engine/internal/render"
)

// SessionStore is where finished sessions go.
type SessionStore interface {
	WriteSessions(ctx context.Context, recs []SessionRecord) error
}

// maxPending bounds the finished sessions kept while the store is failing.
const maxPending = 256

// Recorder tracks the current level session from the simulation goroutine
// and writes finished ones in batches from Run, so the tick loop never waits
// on the database.
type Recorder struct {
	store    SessionStore
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	cur     *SessionRecord
	base    render.PipelineStats
	pending []SessionRecord
	dropped int
	kick    chan struct{}
}

func NewRecorder(store SessionStore, interval time.Duration, log *zap.Logger) *Recorder {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		store:    store,
		interval: interval,
		log:      log,
		now:      time.Now,
		kick:     make(chan struct{}, 1),
	}
}

// Begin finishes the current session and starts one for a new level,
// counting the events published on bus.
func (r *Recorder) Begin(bus *event.Bus, level, digest string, tick uint64, stats render.PipelineStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != nil {
		r.finishLocked()
		r.signal()
	}
	r.cur = &SessionRecord{
		Level:     level,
		Digest:    digest,
		Started:   r.now(),
		FirstTick: tick,
		Events:    make(map[string]uint64),
	}
	r.base = stats
	rec := r.cur
	bus.SubscribeAll(func(e event.Envelope) {
		name := reflect.TypeOf(e.Payload).Name()
		r.mu.Lock()
		if r.cur == rec {
			rec.Events[name]++
		}
		r.mu.Unlock()
	})
}

// Observe updates the current session after a tick.
func (r *Recorder) Observe(tick uint64, stats render.PipelineStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return
	}
	r.cur.Ticks = tick - r.cur.FirstTick
	r.cur.FramesSkipped = stats.Skipped - r.base.Skipped
	r.cur.FramesStale = stats.Stale - r.base.Stale
}

// Finish closes the current session without starting another.
func (r *Recorder) Finish() {
	r.mu.Lock()
	r.finishLocked()
	r.mu.Unlock()
	r.signal()
}

func (r *Recorder) signal() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Recorder) finishLocked() {
	if r.cur == nil {
		return
	}
	r.cur.Finished = r.now()
	if len(r.pending) >= maxPending {
		r.pending = r.pending[1:]
		r.dropped++
	}
	r.pending = append(r.pending, *r.cur)
	r.cur = nil
}

// Pending returns the number of finished sessions not yet written.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Dropped counts finished sessions discarded because the store kept failing.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Flush writes the finished sessions. On failure they stay queued.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	if err := r.store.WriteSessions(ctx, batch); err != nil {
		r.mu.Lock()
		r.pending = append(batch, r.pending...)
		if over := len(r.pending) - maxPending; over > 0 {
			r.pending = r.pending[over:]
			r.dropped += over
		}
		r.mu.Unlock()
		return err
	}
	r.log.Debug("sessions written", zap.Int("count", len(batch)))
	return nil
}

// Run flushes every interval and when a session finishes. On cancel it
// finishes the current session and makes a last attempt.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Finish()
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.Flush(flushCtx); err != nil {
				r.log.Error("final session flush failed", zap.Error(err), zap.Int("lost", r.Pending()))
			}
			cancel()
			return
		case <-ticker.C:
		case <-r.kick:
		}
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := r.Flush(flushCtx); err != nil {
			r.log.Warn("session flush failed", zap.Error(err), zap.Int("pending", r.Pending()))
		}
		cancel()
	}
}
