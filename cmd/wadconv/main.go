// wadconv converts the maps of a WAD file to YAML levels.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sectorgo/engine/internal/data"
	"github.com/sectorgo/engine/internal/level"
)

func main() {
	only := flag.String("map", "", "convert only this map (e.g. E1M1)")
	out := flag.String("out", "data/levels", "output directory")
	nodes := flag.Bool("nodes", true, "store the built BSP in the output")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wadconv [-map NAME] [-out DIR] [-nodes=false] <file.wad>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	raw, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	wad, err := data.ReadWAD(raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	maps := wad.Maps()
	if *only != "" {
		maps = []string{*only}
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	failed := 0
	for _, name := range maps {
		d, err := wad.Level(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			failed++
			continue
		}
		// Building validates the data and, when nodes are kept, fills them in.
		if _, err := level.Build(d); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			failed++
			continue
		}
		if !*nodes {
			d.Segs, d.Subsectors, d.Nodes = nil, nil, nil
		}

		var buf bytes.Buffer
		if err := data.WriteLevel(&buf, d); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			failed++
			continue
		}
		path := filepath.Join(*out, d.Name+".yaml")
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("%-6s %4d sectors %5d linedefs %5d subsectors -> %s\n",
			name, len(d.Sectors), len(d.Linedefs), len(d.Subsectors), path)
	}

	fmt.Printf("Converted %d of %d maps\n", len(maps)-failed, len(maps))
	if failed > 0 {
		os.Exit(1)
	}
}
