// Package audio plays positioned effects for world events. A Device
// subscribes to a level's bus; each event kind maps to a synthesized tone
// whose loudness and stereo pan come from where the event happened relative
// to the listener.
package audio

import (
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"go.uber.org/zap"

	"github.com/sectorgo/engine/internal/core/event"
	"github.com/sectorgo/engine/internal/geom"
)

// Sink receives finished voices.
type Sink interface {
	Play(s beep.Streamer)
}

// Listener reports the hearing position and facing, or false when there is
// nobody to hear.
type Listener func() (pos geom.Vec3, angle float64, ok bool)

type Config struct {
	SampleRate int
	Volume     float64
	Falloff    float64 // distance at which effects fall silent
	Close      float64 // distance under which effects play at full volume
}

func DefaultConfig() Config {
	return Config{SampleRate: 44100, Volume: 0.5, Falloff: 1200, Close: 160}
}

// Tones maps event kinds to effects.
var Tones = map[reflect.Type]Tone{
	reflect.TypeFor[event.DoorActivated]():      {Freq: 110, Sweep: 60, Duration: 400 * time.Millisecond, Wave: WaveSaw, Gain: 0.6},
	reflect.TypeFor[event.SectorMoveFinished](): {Freq: 80, Duration: 120 * time.Millisecond, Wave: WaveSquare, Gain: 0.5},
	reflect.TypeFor[event.LineActivated]():      {Freq: 440, Duration: 60 * time.Millisecond, Wave: WaveSquare, Gain: 0.4},
	reflect.TypeFor[event.ItemPickedUp]():       {Freq: 880, Sweep: 880, Duration: 150 * time.Millisecond, Wave: WaveSine},
	reflect.TypeFor[event.EntityDamaged]():      {Duration: 120 * time.Millisecond, Wave: WaveNoise, Gain: 0.7},
	reflect.TypeFor[event.Impact]():             {Freq: 60, Sweep: -120, Duration: 90 * time.Millisecond, Wave: WaveSine, Gain: 0.8},
}

// Device turns events into voices.
type Device struct {
	cfg  Config
	rate beep.SampleRate
	sink Sink
	log  *zap.Logger

	mu       sync.Mutex
	listener Listener

	played, culled atomic.Uint64
}

func NewDevice(cfg Config, sink Sink, log *zap.Logger) *Device {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Falloff <= 0 {
		cfg.Falloff = def.Falloff
	}
	if cfg.Close <= 0 || cfg.Close >= cfg.Falloff {
		cfg.Close = min(def.Close, cfg.Falloff/2)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Device{cfg: cfg, rate: beep.SampleRate(cfg.SampleRate), sink: sink, log: log}
}

// Attach subscribes to every effect-carrying event on bus and hears them
// from listener. Call it for each new level.
func (d *Device) Attach(bus *event.Bus, listener Listener) {
	d.mu.Lock()
	d.listener = listener
	d.mu.Unlock()
	bus.SubscribeAll(func(e event.Envelope) {
		t, ok := Tones[reflect.TypeOf(e.Payload)]
		if !ok {
			return
		}
		pos, ok := position(e.Payload)
		if !ok {
			return
		}
		d.Emit(t, pos, e.Seq)
	})
}

func position(p any) (geom.Vec3, bool) {
	switch ev := p.(type) {
	case event.DoorActivated:
		return ev.Pos, true
	case event.SectorMoveFinished:
		return ev.Pos, true
	case event.LineActivated:
		return ev.Pos, true
	case event.ItemPickedUp:
		return ev.Pos, true
	case event.EntityDamaged:
		return ev.Pos, true
	case event.Impact:
		return ev.Pos, true
	}
	return geom.Vec3{}, false
}

// Emit plays t at pos if the listener can hear it.
func (d *Device) Emit(t Tone, pos geom.Vec3, seed uint64) bool {
	d.mu.Lock()
	listener := d.listener
	d.mu.Unlock()
	if listener == nil {
		return false
	}
	at, angle, ok := listener()
	if !ok {
		return false
	}
	gain, pan, ok := Spatialize(at, angle, pos, d.cfg.Close, d.cfg.Falloff)
	if !ok {
		d.culled.Add(1)
		return false
	}
	d.sink.Play(Voice(t, d.rate, gain*d.cfg.Volume, pan, seed))
	d.played.Add(1)
	return true
}

// Played and Culled count voices started and events too far away to hear.
func (d *Device) Played() uint64 { return d.played.Load() }
func (d *Device) Culled() uint64 { return d.culled.Load() }

// Spatialize returns the gain in [0, 1] and stereo pan in [-1, 1] (left
// negative) of a source at src heard from at facing angle. Gain falls off
// linearly between near and far; beyond far nothing is heard.
func Spatialize(at geom.Vec3, angle float64, src geom.Vec3, near, far float64) (gain, pan float64, ok bool) {
	d := src.XY().Sub(at.XY())
	dist := d.Len()
	if dist >= far {
		return 0, 0, false
	}
	gain = 1
	if dist > near {
		gain = (far - dist) / (far - near)
	}
	if dist > 1e-6 {
		rel := math.Atan2(d.Y, d.X) - angle
		pan = -math.Sin(rel)
	}
	return gain, pan, true
}

// Speaker plays voices on the default audio output through one mixer.
type Speaker struct {
	mixer *beep.Mixer
}

// OpenSpeaker initializes the output device. Only one may be open.
func OpenSpeaker(sampleRate int) (*Speaker, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(100*time.Millisecond)); err != nil {
		return nil, err
	}
	s := &Speaker{mixer: &beep.Mixer{}}
	speaker.Play(s.mixer)
	return s, nil
}

func (s *Speaker) Play(v beep.Streamer) {
	speaker.Lock()
	s.mixer.Add(v)
	speaker.Unlock()
}

func (s *Speaker) Close() {
	speaker.Lock()
	s.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
}
