// Package net is the debug surface of a running engine: health and status,
// Prometheus metrics, a console endpoint and a websocket feed of draw lists.
package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Console accepts console lines, e.g. engine.Loop.
type Console interface {
	Submit(line string) error
}

// Status is the engine state published after each tick.
type Status struct {
	Level    string `json:"level"`
	Digest   string `json:"digest"`
	Tick     uint64 `json:"tick"`
	Entities int    `json:"entities"`
	Skipped  uint64 `json:"frames_skipped"`
	Stale    uint64 `json:"frames_stale"`
}

// StatusBoard holds the latest Status. Publish is called from the loop
// goroutine and Load from handlers.
type StatusBoard struct {
	cur atomic.Pointer[Status]
}

func (b *StatusBoard) Publish(s Status) { b.cur.Store(&s) }

func (b *StatusBoard) Load() Status {
	if s := b.cur.Load(); s != nil {
		return *s
	}
	return Status{}
}

// ServerConfig wires the debug server's collaborators. Nil handlers leave
// their routes out.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	ConsoleRate    float64 // commands per second, all clients together
	Console        Console
	Metrics        http.Handler
	Feed           http.Handler
	Status         *StatusBoard
	Started        time.Time
}

type Server struct {
	cfg     ServerConfig
	http    *http.Server
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewServer(cfg ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Status == nil {
		cfg.Status = &StatusBoard{}
	}
	if cfg.Started.IsZero() {
		cfg.Started = time.Now()
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.ConsoleRate > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.ConsoleRate), max(1, int(cfg.ConsoleRate)))
	}
	s := &Server{cfg: cfg, limiter: lim, log: log}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the routes without listening.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	if s.cfg.Console != nil {
		r.Post("/console", s.handleConsole)
	}
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics)
	}
	if s.cfg.Feed != nil {
		r.Handle("/feed", s.cfg.Feed)
	}
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("debug server: %w", err)
	}
	s.log.Info("debug server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("debug server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.cfg.Status.Load()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"level":  st.Level,
		"tick":   st.Tick,
		"uptime": time.Since(s.cfg.Started).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Status.Load())
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 256))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	line := strings.TrimSpace(string(body))
	if err := s.cfg.Console.Submit(line); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.log.Info("console command", zap.String("line", line), zap.String("ip", clientIP(r)))
	writeJSON(w, http.StatusAccepted, map[string]string{"queued": line})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
