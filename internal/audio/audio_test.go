package audio

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/sectorgo/engine/internal/core/event"
	"github.com/sectorgo/engine/internal/geom"
)

type sinkRec struct{ voices []beep.Streamer }

func (s *sinkRec) Play(v beep.Streamer) { s.voices = append(s.voices, v) }

func energy(s beep.Streamer) (left, right float64, n int) {
	buf := make([][2]float64, 512)
	for {
		got, ok := s.Stream(buf)
		for _, smp := range buf[:got] {
			left += math.Abs(smp[0])
			right += math.Abs(smp[1])
		}
		n += got
		if !ok || got == 0 {
			return left, right, n
		}
	}
}

func TestSpatialize(t *testing.T) {
	tests := []struct {
		name    string
		src     geom.Vec3
		angle   float64
		gain    float64
		pan     float64
		audible bool
	}{
		{"on top", geom.V3(0, 0, 0), 0, 1, 0, true},
		{"ahead", geom.V3(100, 0, 0), 0, 1, 0, true},
		{"left", geom.V3(0, 100, 0), 0, 1, -1, true},
		{"right", geom.V3(0, -100, 0), 0, 1, 1, true},
		{"left when facing north is ahead", geom.V3(0, 100, 0), math.Pi / 2, 1, 0, true},
		{"halfway", geom.V3(680, 0, 0), 0, 0.5, 0, true},
		{"height ignored", geom.V3(100, 0, 500), 0, 1, 0, true},
		{"too far", geom.V3(1200, 0, 0), 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gain, pan, ok := Spatialize(geom.V3(0, 0, 0), tt.angle, tt.src, 160, 1200)
			if ok != tt.audible {
				t.Fatalf("audible = %v", ok)
			}
			if math.Abs(gain-tt.gain) > 1e-9 || math.Abs(pan-tt.pan) > 1e-9 {
				t.Fatalf("gain, pan = %v, %v; want %v, %v", gain, pan, tt.gain, tt.pan)
			}
		})
	}
}

func TestVoiceLength(t *testing.T) {
	tone := Tone{Freq: 440, Duration: 50 * time.Millisecond, Wave: WaveSquare}
	_, _, n := energy(Voice(tone, 8000, 1, 0, 1))
	if n != 400 {
		t.Fatalf("voice length = %d samples, want 400", n)
	}
}

func TestDeviceHearsBusEvents(t *testing.T) {
	sink := &sinkRec{}
	dev := NewDevice(Config{SampleRate: 8000, Volume: 1}, sink, nil)
	bus := event.NewBus()
	dev.Attach(bus, func() (geom.Vec3, float64, bool) { return geom.V3(0, 0, 41), 0, true })

	event.Emit(bus, event.DoorActivated{Tag: 1, Open: true, Pos: geom.V3(0, 100, 0)})
	event.Emit(bus, event.ItemPickedUp{Pos: geom.V3(5000, 0, 0)})
	event.Emit(bus, event.LevelChanged{Name: "e1m1"})
	bus.Flush()

	if len(sink.voices) != 1 || dev.Played() != 1 || dev.Culled() != 1 {
		t.Fatalf("voices %d, played %d, culled %d", len(sink.voices), dev.Played(), dev.Culled())
	}
	left, right, _ := energy(sink.voices[0])
	if left == 0 || left <= right {
		t.Fatalf("door on the left: left %v, right %v", left, right)
	}
}

func TestDeviceWithoutListener(t *testing.T) {
	sink := &sinkRec{}
	dev := NewDevice(DefaultConfig(), sink, nil)
	if dev.Emit(Tones[reflect.TypeFor[event.Impact]()], geom.V3(0, 0, 0), 1) {
		t.Fatalf("played with no listener")
	}
	dev.Attach(event.NewBus(), func() (geom.Vec3, float64, bool) { return geom.Vec3{}, 0, false })
	if dev.Emit(Tone{Freq: 100, Duration: time.Millisecond}, geom.V3(0, 0, 0), 1) {
		t.Fatalf("played while the listener is absent")
	}
}
