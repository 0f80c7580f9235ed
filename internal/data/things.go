package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ThingDef describes what a map thing type spawns as.
type ThingDef struct {
	Type       uint16  `yaml:"type"`
	Name       string  `yaml:"name"`
	Radius     float64 `yaml:"radius"`
	Height     float64 `yaml:"height"`
	Sprite     string  `yaml:"sprite"`
	Frame      int     `yaml:"frame"`
	FullBright bool    `yaml:"full_bright"`
	Health     int     `yaml:"health"`
	Behavior   string  `yaml:"behavior"`
	Solid      bool    `yaml:"solid"`
	Monster    bool    `yaml:"monster"`
	NoDropOff  bool    `yaml:"no_drop_off"`
	Player     int     `yaml:"player"` // 1-based start number, 0 = not a start
	Pickup     string  `yaml:"pickup"`
	Amount     int     `yaml:"amount"`
}

type thingListFile struct {
	Things []ThingDef `yaml:"things"`
}

// ThingTable holds all thing definitions indexed by type.
type ThingTable struct {
	defs map[uint16]*ThingDef
}

// LoadThingTable loads thing definitions from a YAML file.
func LoadThingTable(path string) (*ThingTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thing_table: %w", err)
	}
	t, err := ParseThingTable(raw)
	if err != nil {
		return nil, fmt.Errorf("parse thing_table: %w", err)
	}
	return t, nil
}

func ParseThingTable(raw []byte) (*ThingTable, error) {
	var f thingListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return newThingTable(f.Things)
}

func newThingTable(defs []ThingDef) (*ThingTable, error) {
	t := &ThingTable{defs: make(map[uint16]*ThingDef, len(defs))}
	for i := range defs {
		d := &defs[i]
		if _, dup := t.defs[d.Type]; dup {
			return nil, fmt.Errorf("thing type %d defined twice", d.Type)
		}
		if d.Radius < 0 || d.Height < 0 {
			return nil, fmt.Errorf("thing type %d: negative size", d.Type)
		}
		t.defs[d.Type] = d
	}
	return t, nil
}

// DefaultThingTable holds the player starts and a few stock things so a
// level runs without a thing_table file.
func DefaultThingTable() *ThingTable {
	t, _ := newThingTable([]ThingDef{
		{Type: 1, Name: "player1", Radius: 16, Height: 56, Sprite: "PLAY", Health: 100, Behavior: "player", Solid: true, Player: 1},
		{Type: 2, Name: "player2", Radius: 16, Height: 56, Sprite: "PLAY", Health: 100, Behavior: "player", Solid: true, Player: 2},
		{Type: 3001, Name: "imp", Radius: 20, Height: 56, Sprite: "TROO", Health: 60, Behavior: "chase", Solid: true, Monster: true},
		{Type: 3004, Name: "zombieman", Radius: 20, Height: 56, Sprite: "POSS", Health: 20, Behavior: "chase", Solid: true, Monster: true},
		{Type: 2011, Name: "stimpack", Radius: 20, Height: 16, Sprite: "STIM", Pickup: "health", Amount: 10},
		{Type: 2012, Name: "medikit", Radius: 20, Height: 16, Sprite: "MEDI", Pickup: "health", Amount: 25},
		{Type: 2028, Name: "lamp", Radius: 16, Height: 48, Sprite: "COLU", FullBright: true, Solid: true},
	})
	return t
}

// Get returns the definition for typ, or nil.
func (t *ThingTable) Get(typ uint16) *ThingDef {
	return t.defs[typ]
}

// Count returns the number of definitions.
func (t *ThingTable) Count() int {
	return len(t.defs)
}
