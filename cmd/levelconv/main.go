// levelconv precomputes the BSP of a YAML level, or writes the demo level.
//
//	levelconv build <in.yaml> <out.yaml>
//	levelconv demo <out.yaml>
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sectorgo/engine/internal/data"
	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
)

func main() {
	if len(os.Args) < 3 {
		usage()
	}

	var (
		d   *level.Data
		out string
		err error
	)
	switch os.Args[1] {
	case "build":
		if len(os.Args) != 4 {
			usage()
		}
		out = os.Args[3]
		raw, rerr := os.ReadFile(os.Args[2])
		if rerr != nil {
			fail(rerr)
		}
		d, err = data.ParseLevel(raw)
		if err == nil {
			// Stored nodes are rebuilt so the output matches the current builder.
			d.Segs, d.Subsectors, d.Nodes = nil, nil, nil
		}
	case "demo":
		out = os.Args[2]
		d = demo()
	default:
		usage()
	}
	if err != nil {
		fail(err)
	}

	m, err := level.Build(d)
	if err != nil {
		fail(err)
	}

	var buf bytes.Buffer
	if err := data.WriteLevel(&buf, d); err != nil {
		fail(err)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s: %d sectors, %d subsectors, %d nodes\n",
		out, len(m.Sectors), len(m.Subsectors), len(m.Nodes))
}

// demo is two rooms joined by a door, with a lift up to a ledge in the
// second room.
func demo() *level.Data {
	v := geom.V2
	sk := level.NewSketch("demo")
	sk.Sector(0, 128, 192, v(0, 0), v(512, 0), v(512, 192), v(512, 320), v(512, 512), v(0, 512))
	door := sk.Sector(0, 0, 160, v(512, 192), v(576, 192), v(576, 320), v(512, 320))
	hall := sk.Sector(0, 160, 208, v(576, 0), v(1088, 0), v(1088, 384), v(832, 384), v(576, 384), v(576, 320), v(576, 192))
	lift := sk.Sector(64, 224, 176, v(832, 384), v(1088, 384), v(1088, 512), v(832, 512))
	sk.SetSector(door, 0, 5)
	sk.SetSector(hall, 8, 0) // glow
	sk.SetSector(lift, 0, 7)

	sk.SetLine(v(512, 192), v(512, 320), 0, 1, 5)
	sk.SetLine(v(576, 192), v(576, 320), 0, 1, 5)
	sk.SetLine(v(832, 384), v(1088, 384), 0, 62, 7)

	sk.Thing(128, 256, 0, 1)
	sk.Thing(300, 96, 0, 2011)
	sk.Thing(64, 448, 0, 2028)
	sk.Thing(900, 192, 180, 3001)
	sk.Thing(960, 448, 270, 3004)
	sk.Thing(1000, 460, 0, 2012)
	return sk.Data()
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: levelconv build <in.yaml> <out.yaml>")
	fmt.Fprintln(os.Stderr, "       levelconv demo <out.yaml>")
	os.Exit(1)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
