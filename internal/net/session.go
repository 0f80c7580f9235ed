package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Session is one feed subscriber. Frames are queued by the hub and written
// by the session's own goroutine; a full queue drops the frame for this
// subscriber only.
type Session struct {
	ID   uint64
	IP   string
	conn *websocket.Conn

	OutQueue chan []byte
	limiter  *rate.Limiter

	dropped atomic.Uint64

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	writeTimeout time.Duration
	log          *zap.Logger
}

func newSession(conn *websocket.Conn, id uint64, ip string, outSize int, fps float64, writeTimeout time.Duration, log *zap.Logger) *Session {
	lim := rate.NewLimiter(rate.Inf, 1)
	if fps > 0 {
		lim = rate.NewLimiter(rate.Limit(fps), 1)
	}
	return &Session{
		ID:           id,
		IP:           ip,
		conn:         conn,
		OutQueue:     make(chan []byte, outSize),
		limiter:      lim,
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
		log:          log.With(zap.Uint64("session", id)),
	}
}

// Send queues frame unless the rate limit or a full queue rejects it.
func (s *Session) Send(frame []byte) bool {
	if s.closed.Load() || !s.limiter.Allow() {
		return false
	}
	select {
	case s.OutQueue <- frame:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped counts frames lost to a full queue.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
	})
}

// readLoop discards client messages and notices disconnects.
func (s *Session) readLoop(done func(*Session)) {
	defer done(s)
	defer s.Close()
	s.conn.SetReadLimit(512)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if !s.closed.Load() {
				s.log.Debug("feed read", zap.Error(err))
			}
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()
	for {
		select {
		case <-s.closeCh:
			return
		case frame := <-s.OutQueue:
			if s.writeTimeout > 0 {
				s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.log.Debug("feed write", zap.Error(err))
				return
			}
		}
	}
}
