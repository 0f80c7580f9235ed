package net

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/render"
)

// FeedConfig limits the frame feed.
type FeedConfig struct {
	MaxClients     int
	QueueSize      int
	FrameRate      float64 // per client, 0 = every frame
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Feed streams draw lists to websocket subscribers as msgpack frames. It is
// a render.Backend, so it can sit behind the pipeline on its own or inside
// a render.Multi.
type Feed struct {
	cfg      FeedConfig
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	frames   atomic.Uint64

	mu       sync.RWMutex
	sessions map[uint64]*Session

	log *zap.Logger
}

func NewFeed(cfg FeedConfig, log *zap.Logger) *Feed {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 16
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	f := &Feed{cfg: cfg, sessions: make(map[uint64]*Session), log: log}
	f.upgrader = websocket.Upgrader{
		ReadBufferSize:  512,
		WriteBufferSize: 16 << 10,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return f
}

// originAllowed accepts requests without an Origin header, "*", exact
// matches and patterns ending in "*".
func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		switch {
		case a == "*", a == origin:
			return true
		case strings.HasSuffix(a, "*") && strings.HasPrefix(origin, strings.TrimSuffix(a, "*")):
			return true
		}
	}
	return false
}

// Submit encodes dl once and queues it for every subscriber.
func (f *Feed) Submit(ctx context.Context, dl *render.DrawList) error {
	if f.Clients() == 0 {
		return nil
	}
	frame, err := EncodeFrame(dl)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.frames.Add(1)
	f.mu.RLock()
	for _, s := range f.sessions {
		s.Send(frame)
	}
	f.mu.RUnlock()
	return nil
}

// Frames counts encoded frames.
func (f *Feed) Frames() uint64 { return f.frames.Load() }

func (f *Feed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}

// ServeHTTP upgrades a subscriber connection.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.Clients() >= f.cfg.MaxClients {
		http.Error(w, "too many feed clients", http.StatusServiceUnavailable)
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Debug("feed upgrade", zap.Error(err))
		return
	}
	s := newSession(conn, f.nextID.Add(1), clientIP(r), f.cfg.QueueSize, f.cfg.FrameRate, f.cfg.WriteTimeout, f.log)

	f.mu.Lock()
	f.sessions[s.ID] = s
	f.mu.Unlock()
	f.log.Info("feed client connected", zap.Uint64("session", s.ID), zap.String("ip", s.IP))

	go s.writeLoop()
	go s.readLoop(f.remove)
}

func (f *Feed) remove(s *Session) {
	f.mu.Lock()
	delete(f.sessions, s.ID)
	f.mu.Unlock()
	f.log.Info("feed client disconnected", zap.Uint64("session", s.ID), zap.Uint64("dropped", s.Dropped()))
}

// Close disconnects every subscriber.
func (f *Feed) Close() {
	f.mu.RLock()
	for _, s := range f.sessions {
		s.Close()
	}
	f.mu.RUnlock()
}
