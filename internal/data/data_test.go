package data

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sectorgo/engine/internal/geom"
	"github.com/sectorgo/engine/internal/level"
)

func writeLevel(t *testing.T, dir, name string, d *level.Data) string {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteLevel(&buf, d); err != nil {
		t.Fatalf("write: %v", err)
	}
	path := filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func twoRooms() *level.Data {
	s := level.NewSketch("tworooms")
	s.Sector(0, 128, 160, level.Rect(0, 0, 128, 128)...)
	s.Sector(16, 128, 160, level.Rect(128, 0, 256, 128)...)
	d := s.Data()
	d.Sectors[1].CeilingTexture = "f_sky1"
	d.Sidedefs[0].Middle = "startan2-long"
	return d
}

func TestLoadLevel(t *testing.T) {
	dir := t.TempDir()
	path := writeLevel(t, dir, "tworooms", twoRooms())

	m, err := LoadLevel(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if m.Digest != Digest(raw) || len(m.Digest) != 64 {
		t.Fatalf("digest = %q", m.Digest)
	}
	if m.Sectors[1].CeilingTexture != level.Sky {
		t.Fatalf("sky texture = %q", m.Sectors[1].CeilingTexture)
	}
	if got := m.Sidedefs[0].Middle; got != "STARTAN2" {
		t.Fatalf("texture = %q, want STARTAN2", got)
	}
	if ss := m.FindSubsector(geom.V2(200, 64)); m.SectorOf(ss) != 1 {
		t.Fatalf("point in second room resolved to sector %d", m.SectorOf(ss))
	}
}

func TestLoadLevelErrors(t *testing.T) {
	dir := t.TempDir()

	bad := twoRooms()
	bad.Linedefs[0].V2 = len(bad.Vertices) + 3
	badPath := writeLevel(t, dir, "bad", bad)

	garbage := filepath.Join(dir, "garbage.yaml")
	if err := os.WriteFile(garbage, []byte("vertices: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadLevel(filepath.Join(dir, "missing.yaml")); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("missing file: %v", err)
	}
	var verr *level.ValidationError
	if _, err := LoadLevel(badPath); !errors.As(err, &verr) {
		t.Fatalf("bad reference: %v", err)
	}
	if m, err := LoadLevel(garbage); err == nil || m != nil {
		t.Fatalf("garbage loaded: %v", err)
	}
}

func TestLevelsPath(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "e1m1", twoRooms())
	writeLevel(t, dir, "e1m2", twoRooms())
	lv := NewLevels(dir)

	tests := []struct {
		name string
		ok   bool
	}{
		{"e1m1", true},
		{"../e1m1", false},
		{"", false},
		{".hidden", false},
		{`a\b`, false},
	}
	for _, tt := range tests {
		_, err := lv.Path(tt.name)
		if (err == nil) != tt.ok {
			t.Errorf("Path(%q) err = %v", tt.name, err)
		}
		if err != nil && !errors.Is(err, ErrUnknownLevel) {
			t.Errorf("Path(%q) err = %v, want ErrUnknownLevel", tt.name, err)
		}
	}
	if _, err := lv.Load("e9m9"); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("Load(e9m9) = %v", err)
	}
	names, err := lv.Names()
	if err != nil || len(names) != 2 || names[0] != "e1m1" || names[1] != "e1m2" {
		t.Fatalf("names = %v, %v", names, err)
	}
}

func TestThingTable(t *testing.T) {
	raw := []byte(`
things:
  - type: 1
    name: player1
    radius: 16
    height: 56
    player: 1
    behavior: player
  - type: 2012
    name: medikit
    radius: 20
    height: 16
    pickup: health
    amount: 25
`)
	tbl, err := ParseThingTable(raw)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Count() != 2 || tbl.Get(2012).Amount != 25 || tbl.Get(1).Player != 1 {
		t.Fatalf("table = %+v", tbl.defs)
	}
	if tbl.Get(9999) != nil {
		t.Fatal("unknown type resolved")
	}

	dup := []byte("things:\n  - type: 1\n  - type: 1\n")
	if _, err := ParseThingTable(dup); err == nil {
		t.Fatal("duplicate type accepted")
	}
	if DefaultThingTable().Get(1).Behavior != "player" {
		t.Fatal("default table has no player start")
	}
}

// wadBuilder writes a PWAD with the given lumps in order.
type wadBuilder struct {
	names []string
	data  [][]byte
}

func (w *wadBuilder) lump(name string, fields ...any) {
	var buf bytes.Buffer
	for _, f := range fields {
		switch v := f.(type) {
		case string:
			var n [8]byte
			copy(n[:], v)
			buf.Write(n[:])
		default:
			binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	w.names = append(w.names, name)
	w.data = append(w.data, buf.Bytes())
}

func (w *wadBuilder) bytes() []byte {
	var body bytes.Buffer
	pos := make([]int, len(w.data))
	for i, d := range w.data {
		pos[i] = wadHeaderSize + body.Len()
		body.Write(d)
	}
	var out bytes.Buffer
	out.WriteString("PWAD")
	binary.Write(&out, binary.LittleEndian, int32(len(w.data)))
	binary.Write(&out, binary.LittleEndian, int32(wadHeaderSize+body.Len()))
	out.Write(body.Bytes())
	for i, d := range w.data {
		binary.Write(&out, binary.LittleEndian, int32(pos[i]))
		binary.Write(&out, binary.LittleEndian, int32(len(d)))
		var n [8]byte
		copy(n[:], w.names[i])
		out.Write(n[:])
	}
	return out.Bytes()
}

func squareWAD() []byte {
	var w wadBuilder
	w.lump("E1M1")
	w.lump("THINGS", int16(64), int16(64), int16(90), uint16(1), uint16(7))
	w.lump("LINEDEFS",
		uint16(1), uint16(0), uint16(1), uint16(0), uint16(0), uint16(0), uint16(0xFFFF),
		uint16(2), uint16(1), uint16(1), uint16(0), uint16(0), uint16(1), uint16(0xFFFF),
		uint16(3), uint16(2), uint16(1), uint16(0), uint16(0), uint16(2), uint16(0xFFFF),
		uint16(0), uint16(3), uint16(1), uint16(0), uint16(0), uint16(3), uint16(0xFFFF),
	)
	var sides []any
	for range 4 {
		sides = append(sides, int16(0), int16(0), "-", "-", "startan2", uint16(0))
	}
	w.lump("SIDEDEFS", sides...)
	w.lump("VERTEXES", int16(0), int16(0), int16(128), int16(0), int16(128), int16(128), int16(0), int16(128))
	w.lump("SEGS")
	w.lump("SECTORS", int16(0), int16(128), "FLOOR4_8", "F_SKY1", int16(160), uint16(0), uint16(0))
	w.lump("E1M2")
	return w.bytes()
}

func TestReadWAD(t *testing.T) {
	wad, err := ReadWAD(squareWAD())
	if err != nil {
		t.Fatal(err)
	}
	if maps := wad.Maps(); len(maps) != 2 || maps[0] != "E1M1" {
		t.Fatalf("maps = %v", maps)
	}
	d, err := wad.Level("e1m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Linedefs) != 4 || d.Linedefs[0].Back != -1 || d.Sidedefs[0].Middle != "STARTAN2" || d.Sidedefs[0].Upper != "" {
		t.Fatalf("decoded = %+v", d)
	}
	if len(d.Things) != 1 || d.Things[0].Angle != 90 || d.Things[0].Type != 1 {
		t.Fatalf("things = %+v", d.Things)
	}
	m, err := level.Build(d)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.SectorAt(geom.V2(64, 64)) != 0 {
		t.Fatal("center not in the sector")
	}
	loaded, err := wad.Load("E1M1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "e1m1" || len(loaded.Digest) != 64 || len(loaded.Subsectors) == 0 {
		t.Fatalf("loaded = %q digest %q, %d subsectors", loaded.Name, loaded.Digest, len(loaded.Subsectors))
	}

	if _, err := wad.Level("E1M2"); err == nil {
		t.Fatal("map without lumps converted")
	}
	if _, err := wad.Level("MAP07"); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("missing map: %v", err)
	}
	if _, err := ReadWAD([]byte("JUNK")); err == nil {
		t.Fatal("short header accepted")
	}
}
