package data

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/sectorgo/engine/internal/level"
)

// Classic WAD map lump record sizes.
const (
	wadHeaderSize  = 12
	wadDirSize     = 16
	thingSize      = 10
	linedefSize    = 14
	sidedefSize    = 30
	vertexSize     = 4
	sectorSize     = 26
	wadNoSidedef   = 0xFFFF
	wadNameLength  = 8
	wadMaxLumpSize = 1 << 28
)

var mapMarker = regexp.MustCompile(`^(E[1-9]M[1-9]|MAP[0-9][0-9])$`)

type wadLump struct {
	name string
	pos  int
	size int
}

// WAD is an in-memory IWAD or PWAD archive.
type WAD struct {
	raw   []byte
	lumps []wadLump
}

// ReadWAD parses the header and lump directory of raw.
func ReadWAD(raw []byte) (*WAD, error) {
	if len(raw) < wadHeaderSize {
		return nil, fmt.Errorf("wad: short header")
	}
	id := string(raw[:4])
	if id != "IWAD" && id != "PWAD" {
		return nil, fmt.Errorf("wad: bad magic %q", id)
	}
	n := int(int32(binary.LittleEndian.Uint32(raw[4:])))
	dir := int(int32(binary.LittleEndian.Uint32(raw[8:])))
	if n < 0 || dir < 0 || dir+n*wadDirSize > len(raw) {
		return nil, fmt.Errorf("wad: directory out of range")
	}
	w := &WAD{raw: raw, lumps: make([]wadLump, n)}
	for i := range n {
		e := raw[dir+i*wadDirSize:]
		pos := int(int32(binary.LittleEndian.Uint32(e[0:])))
		size := int(int32(binary.LittleEndian.Uint32(e[4:])))
		if pos < 0 || size < 0 || size > wadMaxLumpSize || pos+size > len(raw) {
			return nil, fmt.Errorf("wad: lump %d out of range", i)
		}
		w.lumps[i] = wadLump{name: lumpName(e[8:8+wadNameLength]), pos: pos, size: size}
	}
	return w, nil
}

// lumpName decodes a NUL-padded code page 437 name.
func lumpName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	s, err := charmap.CodePage437.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToUpper(string(b))
	}
	return strings.ToUpper(string(s))
}

// Maps lists the map markers in directory order.
func (w *WAD) Maps() []string {
	var names []string
	for _, l := range w.lumps {
		if mapMarker.MatchString(l.name) {
			names = append(names, l.name)
		}
	}
	return names
}

func (w *WAD) mapLumps(name string) (map[string][]byte, error) {
	name = strings.ToUpper(name)
	for i, l := range w.lumps {
		if l.name != name {
			continue
		}
		out := make(map[string][]byte)
		for _, sub := range w.lumps[i+1:] {
			if mapMarker.MatchString(sub.name) {
				break
			}
			if _, seen := out[sub.name]; !seen {
				out[sub.name] = w.raw[sub.pos : sub.pos+sub.size]
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("wad: map %s: %w", name, ErrUnknownLevel)
}

// Level converts the named map into level data without BSP; the node
// builder runs when it is built.
func (w *WAD) Level(name string) (*level.Data, error) {
	lumps, err := w.mapLumps(name)
	if err != nil {
		return nil, err
	}
	for _, req := range []string{"THINGS", "LINEDEFS", "SIDEDEFS", "VERTEXES", "SECTORS"} {
		if _, ok := lumps[req]; !ok {
			return nil, fmt.Errorf("wad: map %s: missing %s lump", name, req)
		}
	}
	d := &level.Data{Name: strings.ToLower(name)}
	le := binary.LittleEndian
	i16 := func(b []byte, off int) float64 { return float64(int16(le.Uint16(b[off:]))) }

	if err := records(lumps["VERTEXES"], vertexSize, func(b []byte) {
		d.Vertices = append(d.Vertices, level.VertexData{X: i16(b, 0), Y: i16(b, 2)})
	}); err != nil {
		return nil, fmt.Errorf("wad: map %s: vertexes: %w", name, err)
	}
	if err := records(lumps["SECTORS"], sectorSize, func(b []byte) {
		d.Sectors = append(d.Sectors, level.SectorData{
			Floor:          i16(b, 0),
			Ceiling:        i16(b, 2),
			FloorTexture:   lumpName(b[4:12]),
			CeilingTexture: lumpName(b[12:20]),
			Light:          int(int16(le.Uint16(b[20:]))),
			Special:        le.Uint16(b[22:]),
			Tag:            le.Uint16(b[24:]),
		})
	}); err != nil {
		return nil, fmt.Errorf("wad: map %s: sectors: %w", name, err)
	}
	if err := records(lumps["SIDEDEFS"], sidedefSize, func(b []byte) {
		d.Sidedefs = append(d.Sidedefs, level.SidedefData{
			OffsetX: i16(b, 0),
			OffsetY: i16(b, 2),
			Upper:   lumpName(b[4:12]),
			Lower:   lumpName(b[12:20]),
			Middle:  lumpName(b[20:28]),
			Sector:  int(le.Uint16(b[28:])),
		})
	}); err != nil {
		return nil, fmt.Errorf("wad: map %s: sidedefs: %w", name, err)
	}
	side := func(v uint16) int {
		if v == wadNoSidedef {
			return -1
		}
		return int(v)
	}
	if err := records(lumps["LINEDEFS"], linedefSize, func(b []byte) {
		d.Linedefs = append(d.Linedefs, level.LinedefData{
			V1:      int(le.Uint16(b[0:])),
			V2:      int(le.Uint16(b[2:])),
			Flags:   level.LineFlags(le.Uint16(b[4:])),
			Special: le.Uint16(b[6:]),
			Tag:     le.Uint16(b[8:]),
			Front:   side(le.Uint16(b[10:])),
			Back:    side(le.Uint16(b[12:])),
		})
	}); err != nil {
		return nil, fmt.Errorf("wad: map %s: linedefs: %w", name, err)
	}
	if err := records(lumps["THINGS"], thingSize, func(b []byte) {
		d.Things = append(d.Things, level.ThingData{
			X:     i16(b, 0),
			Y:     i16(b, 2),
			Angle: i16(b, 4),
			Type:  le.Uint16(b[6:]),
			Flags: level.ThingFlags(le.Uint16(b[8:])),
		})
	}); err != nil {
		return nil, fmt.Errorf("wad: map %s: things: %w", name, err)
	}
	NormalizeTextures(d)
	return d, nil
}

func records(b []byte, size int, fn func([]byte)) error {
	if len(b)%size != 0 {
		return fmt.Errorf("lump size %d is not a multiple of %d", len(b), size)
	}
	for off := 0; off < len(b); off += size {
		fn(b[off : off+size])
	}
	return nil
}

// Load converts and builds the named map. The digest covers the map's
// geometry lumps in a fixed order.
func (w *WAD) Load(name string) (*level.Map, error) {
	d, err := w.Level(name)
	if err != nil {
		return nil, fmt.Errorf("level load failed: %w", err)
	}
	m, err := level.Build(d)
	if err != nil {
		return nil, fmt.Errorf("level load failed: %w", err)
	}
	lumps, _ := w.mapLumps(name)
	var buf bytes.Buffer
	for _, l := range []string{"THINGS", "LINEDEFS", "SIDEDEFS", "VERTEXES", "SECTORS"} {
		buf.Write(lumps[l])
	}
	m.Digest = Digest(buf.Bytes())
	return m, nil
}
