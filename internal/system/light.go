package system

import (
	"math"

	"github.com/sectorgo/engine/internal/core/ecs"
	coresys "github.com/sectorgo/engine/internal/core/system"
	"github.com/sectorgo/engine/internal/level"
)

// Sector light specials.
const (
	LightFlicker uint16 = 1 // random drops to the darkest neighbour
	LightStrobe  uint16 = 2 // half-second on/off
	LightGlow    uint16 = 8 // smooth pulse down to the darkest neighbour
)

const (
	glowPeriod   = 70 // ticks
	strobePeriod = 35
)

// LightSystem animates the light of special sectors. The level is a pure
// function of the tick and the sector, so replays match. Phase 2 (Physics).
type LightSystem struct {
	sectors []lightSector
}

type lightSector struct {
	id      level.SectorID
	special uint16
	bright  float64
	dim     float64
}

// NewLightSystem collects the animated sectors of m.
func NewLightSystem(m *level.Map) *LightSystem {
	s := &LightSystem{}
	for i := range m.Sectors {
		sec := &m.Sectors[i]
		switch sec.Special {
		case LightFlicker, LightStrobe, LightGlow:
		default:
			continue
		}
		dim := sec.Light
		for _, n := range sec.Neighbours {
			dim = min(dim, m.Sectors[n].Light)
		}
		if dim == sec.Light {
			dim = 0
		}
		s.sectors = append(s.sectors, lightSector{id: level.SectorID(i), special: sec.Special, bright: sec.Light, dim: dim})
	}
	return s
}

func (s *LightSystem) Name() string         { return "light" }
func (s *LightSystem) Phase() coresys.Phase { return coresys.PhasePhysics }
func (s *LightSystem) Access() ecs.Access   { return ecs.Access{} }

func (s *LightSystem) Update(ctx *coresys.Context, _ ecs.View) {
	for _, ls := range s.sectors {
		ctx.MapState.SetLight(ls.id, ls.level(ctx.Tick))
	}
}

func (ls lightSector) level(tick uint64) float64 {
	switch ls.special {
	case LightFlicker:
		// One tick in eight goes dark, chosen by a hash of tick and sector.
		if mix(tick, uint64(ls.id))&7 == 0 {
			return ls.dim
		}
		return ls.bright
	case LightStrobe:
		if (tick/strobePeriod)%2 == 1 {
			return ls.dim
		}
		return ls.bright
	}
	phase := float64(tick%glowPeriod) / glowPeriod
	w := 0.5 + 0.5*math.Cos(2*math.Pi*phase)
	return ls.dim + (ls.bright-ls.dim)*w
}

// mix is a splitmix64 step over the tick and sector.
func mix(tick, id uint64) uint64 {
	z := tick*0x9e3779b97f4a7c15 + id
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
