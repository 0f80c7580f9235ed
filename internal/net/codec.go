package net

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sectorgo/engine/internal/render"
)

// Frame is the wire form of a draw list on the feed. Points are flattened
// x,y,z triples in float32.
type Frame struct {
	Tick       uint64           `msgpack:"tick"`
	Level      string           `msgpack:"level"`
	Camera     FrameCamera      `msgpack:"cam"`
	Surfaces   []FrameSurface   `msgpack:"surf"`
	Billboards []FrameBillboard `msgpack:"bb"`
}

type FrameCamera struct {
	Pos        [3]float32  `msgpack:"pos"`
	Projection [16]float32 `msgpack:"proj"`
	View       [16]float32 `msgpack:"view"`
}

type FrameSurface struct {
	Kind      uint8     `msgpack:"k"`
	Subsector int32     `msgpack:"ss"`
	Seg       int32     `msgpack:"seg"`
	Points    []float32 `msgpack:"p"`
	Texture   string    `msgpack:"tex"`
	Light     float32   `msgpack:"l"`
}

type FrameBillboard struct {
	Entity  uint64     `msgpack:"e"`
	Pos     [3]float32 `msgpack:"p"`
	Texture string     `msgpack:"tex"`
	Frame   int        `msgpack:"f"`
	Width   float32    `msgpack:"w"`
	Height  float32    `msgpack:"h"`
	Light   float32    `msgpack:"l"`
}

// FrameOf copies dl into its wire form.
func FrameOf(dl *render.DrawList) Frame {
	f := Frame{
		Tick:       dl.Tick,
		Level:      dl.Level,
		Surfaces:   make([]FrameSurface, len(dl.Surfaces)),
		Billboards: make([]FrameBillboard, len(dl.Billboards)),
	}
	c := dl.Camera
	f.Camera.Pos = [3]float32{float32(c.Pos.X), float32(c.Pos.Y), float32(c.Pos.Z)}
	for i := range c.Projection {
		f.Camera.Projection[i] = float32(c.Projection[i])
		f.Camera.View[i] = float32(c.View[i])
	}
	for i, s := range dl.Surfaces {
		pts := make([]float32, 0, len(s.Points)*3)
		for _, p := range s.Points {
			pts = append(pts, float32(p.X), float32(p.Y), float32(p.Z))
		}
		f.Surfaces[i] = FrameSurface{
			Kind:      uint8(s.Kind),
			Subsector: int32(s.Subsector),
			Seg:       int32(s.Seg),
			Points:    pts,
			Texture:   s.Texture,
			Light:     float32(s.Light),
		}
	}
	for i, b := range dl.Billboards {
		f.Billboards[i] = FrameBillboard{
			Entity:  uint64(b.Entity),
			Pos:     [3]float32{float32(b.Pos.X), float32(b.Pos.Y), float32(b.Pos.Z)},
			Texture: b.Texture,
			Frame:   b.Frame,
			Width:   float32(b.Width),
			Height:  float32(b.Height),
			Light:   float32(b.Light),
		}
	}
	return f
}

// EncodeFrame returns the msgpack encoding of dl.
func EncodeFrame(dl *render.DrawList) ([]byte, error) {
	b, err := msgpack.Marshal(FrameOf(dl))
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}

func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}
