package net

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/render"
)

func sampleList() *render.DrawList {
	return &render.DrawList{
		Tick:  42,
		Level: "e1m1",
		Camera: render.Camera{
			Pos:        geom.V3(1, 2, 41),
			Projection: geom.Identity(),
			View:       geom.Identity(),
		},
		Surfaces: []render.Surface{{
			Kind:    render.SurfaceWall,
			Seg:     3,
			Points:  []geom.Vec3{geom.V3(0, 0, 0), geom.V3(64, 0, 0), geom.V3(64, 0, 128), geom.V3(0, 0, 128)},
			Texture: "STARTAN3",
			Light:   0.75,
		}},
		Billboards: []render.Billboard{{Entity: 7, Pos: geom.V3(32, 32, 0), Texture: "TROO", Width: 40, Height: 56, Light: 1}},
	}
}

func TestFrameFlattensPoints(t *testing.T) {
	b, err := EncodeFrame(sampleList())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := DecodeFrame(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Tick != 42 || f.Level != "e1m1" {
		t.Fatalf("header = %d %q", f.Tick, f.Level)
	}
	if len(f.Surfaces) != 1 || len(f.Surfaces[0].Points) != 12 {
		t.Fatalf("surfaces = %+v", f.Surfaces)
	}
	if f.Surfaces[0].Points[4] != 0 || f.Surfaces[0].Points[3] != 64 || f.Surfaces[0].Points[11] != 128 {
		t.Fatalf("points = %v", f.Surfaces[0].Points)
	}
	if f.Camera.Projection[0] != 1 || f.Camera.Pos[2] != 41 {
		t.Fatalf("camera = %+v", f.Camera)
	}
	if len(f.Billboards) != 1 || f.Billboards[0].Entity != 7 || f.Billboards[0].Texture != "TROO" {
		t.Fatalf("billboards = %+v", f.Billboards)
	}
	if _, err := DecodeFrame([]byte{0xc1}); err == nil {
		t.Fatalf("garbage decoded")
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{nil, "", true},
		{nil, "http://evil.example", false},
		{[]string{"*"}, "http://evil.example", true},
		{[]string{"http://localhost:8080"}, "http://localhost:8080", true},
		{[]string{"http://localhost:*"}, "http://localhost:3000", true},
		{[]string{"http://localhost:*"}, "http://127.0.0.1:3000", false},
	}
	for _, tt := range tests {
		if got := originAllowed(tt.allowed, tt.origin); got != tt.want {
			t.Errorf("originAllowed(%v, %q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
		}
	}
}

type consoleRec struct {
	mu    sync.Mutex
	lines []string
}

func (c *consoleRec) Submit(line string) error {
	if line == "" {
		return errors.New("empty command")
	}
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
	return nil
}

func TestHealthAndStatus(t *testing.T) {
	board := &StatusBoard{}
	board.Publish(Status{Level: "e1m2", Digest: "ab", Tick: 99, Entities: 5})
	srv := NewServer(ServerConfig{Status: board}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("health body: %v", err)
	}
	if health["status"] != "ok" || health["level"] != "e1m2" || health["tick"] != float64(99) {
		t.Fatalf("health = %v", health)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("status body: %v", err)
	}
	if st.Digest != "ab" || st.Entities != 5 {
		t.Fatalf("status = %+v", st)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("metrics without handler = %d", rec.Code)
	}
}

func TestConsoleRateLimit(t *testing.T) {
	con := &consoleRec{}
	h := NewServer(ServerConfig{Console: con, ConsoleRate: 1}, nil).Router()

	post := func(body string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("POST", "/console", strings.NewReader(body)))
		return rec.Code
	}
	if code := post("map e1m2\n"); code != http.StatusAccepted {
		t.Fatalf("first = %d", code)
	}
	if code := post("map e1m3"); code != http.StatusTooManyRequests {
		t.Fatalf("second = %d", code)
	}
	if len(con.lines) != 1 || con.lines[0] != "map e1m2" {
		t.Fatalf("lines = %q", con.lines)
	}

	h = NewServer(ServerConfig{Console: con}, nil).Router()
	if code := post("  "); code != http.StatusBadRequest {
		t.Fatalf("empty = %d", code)
	}
}

func TestFeedStreamsFrames(t *testing.T) {
	feed := NewFeed(FeedConfig{WriteTimeout: time.Second}, nil)
	ts := httptest.NewServer(NewServer(ServerConfig{Feed: feed}, nil).Router())
	defer ts.Close()
	defer feed.Close()

	// Nobody listening: nothing is encoded.
	if err := feed.Submit(context.Background(), sampleList()); err != nil || feed.Frames() != 0 {
		t.Fatalf("idle submit = %v, frames %d", err, feed.Frames())
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for feed.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := feed.Submit(context.Background(), sampleList()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("message type %d", kind)
	}
	f, err := DecodeFrame(msg)
	if err != nil || f.Tick != 42 {
		t.Fatalf("frame = %+v, %v", f, err)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for feed.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFeedRejectsOrigin(t *testing.T) {
	feed := NewFeed(FeedConfig{AllowedOrigins: []string{"http://localhost:*"}}, nil)
	ts := httptest.NewServer(feed)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	hdr := http.Header{"Origin": []string{"http://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, hdr); err == nil {
		t.Fatalf("foreign origin accepted")
	} else if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
