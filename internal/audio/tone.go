package audio

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

type Wave int

const (
	WaveSine Wave = iota
	WaveSquare
	WaveSaw
	WaveNoise
)

// Tone is a short synthesized effect.
type Tone struct {
	Freq     float64
	Sweep    float64 // Hz per second, may be negative
	Duration time.Duration
	Wave     Wave
	Gain     float64
}

type oscillator struct {
	tone  Tone
	rate  beep.SampleRate
	phase float64
	pos   int
	total int
	rng   *rand.Rand
}

func newOscillator(t Tone, rate beep.SampleRate, seed uint64) *oscillator {
	return &oscillator{
		tone:  t,
		rate:  rate,
		total: rate.N(t.Duration),
		rng:   rand.New(rand.NewPCG(seed, 0x5eed)),
	}
}

func (o *oscillator) Stream(samples [][2]float64) (int, bool) {
	if o.pos >= o.total {
		return 0, false
	}
	release := o.total / 4
	for i := range samples {
		if o.pos >= o.total {
			return i, true
		}
		var v float64
		switch o.tone.Wave {
		case WaveSine:
			v = math.Sin(2 * math.Pi * o.phase)
		case WaveSquare:
			v = 1
			if o.phase >= 0.5 {
				v = -1
			}
		case WaveSaw:
			v = 2 * (o.phase - 0.5)
		case WaveNoise:
			v = o.rng.Float64()*2 - 1
		}
		// Linear release so effects end without a click.
		if left := o.total - o.pos; release > 0 && left < release {
			v *= float64(left) / float64(release)
		}
		samples[i] = [2]float64{v, v}

		t := float64(o.pos) / float64(o.rate)
		freq := max(o.tone.Freq+o.tone.Sweep*t, 1)
		o.phase += freq / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.pos++
	}
	return len(samples), true
}

func (o *oscillator) Err() error { return nil }

// volume wraps s with a linear gain.
func volume(s beep.Streamer, gain float64) beep.Streamer {
	if gain <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(gain)}
}

// Voice builds the streamer for one positioned effect.
func Voice(t Tone, rate beep.SampleRate, gain, pan float64, seed uint64) beep.Streamer {
	if t.Gain > 0 {
		gain *= t.Gain
	}
	return &effects.Pan{Streamer: volume(newOscillator(t, rate, seed), gain), Pan: pan}
}
