package data

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sectorgo/engine/internal/level"
)

// ErrUnknownLevel is returned when a level name does not resolve to a file.
var ErrUnknownLevel = errors.New("unknown level")

const levelExt = ".yaml"

// maxTextureName is the length of a classic texture name.
const maxTextureName = 8

// LoadLevel reads, validates and builds the level at path. The returned map
// carries the blake2b digest of the file contents. Nothing is returned when
// any reference is malformed.
func LoadLevel(path string) (*level.Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("level load failed: %s: %w", path, ErrUnknownLevel)
		}
		return nil, fmt.Errorf("level load failed: read %s: %w", path, err)
	}
	d, err := ParseLevel(raw)
	if err != nil {
		return nil, fmt.Errorf("level load failed: %s: %w", path, err)
	}
	if d.Name == "" {
		d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	m, err := level.Build(d)
	if err != nil {
		return nil, fmt.Errorf("level load failed: %w", err)
	}
	m.Digest = Digest(raw)
	return m, nil
}

// ParseLevel decodes a YAML level and normalizes its texture names.
func ParseLevel(raw []byte) (*level.Data, error) {
	var d level.Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}
	NormalizeTextures(&d)
	return &d, nil
}

// WriteLevel encodes d in the format ParseLevel reads.
func WriteLevel(w io.Writer, d *level.Data) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode level: %w", err)
	}
	return enc.Close()
}

// Digest is the hex blake2b-256 sum of a level file.
func Digest(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// NormalizeTextures upper-cases and truncates every texture name in d the
// way classic lumps store them. "-" marks an absent texture and becomes "".
func NormalizeTextures(d *level.Data) {
	upper := cases.Upper(language.Und)
	norm := func(s string) string {
		s = strings.TrimSpace(s)
		if s == "" || s == "-" {
			return ""
		}
		s = upper.String(s)
		if len(s) > maxTextureName {
			s = s[:maxTextureName]
		}
		return s
	}
	for i := range d.Sidedefs {
		sd := &d.Sidedefs[i]
		sd.Upper, sd.Middle, sd.Lower = norm(sd.Upper), norm(sd.Middle), norm(sd.Lower)
	}
	for i := range d.Sectors {
		s := &d.Sectors[i]
		s.FloorTexture, s.CeilingTexture = norm(s.FloorTexture), norm(s.CeilingTexture)
	}
}

// Levels resolves level names to files in one directory.
type Levels struct {
	dir string
}

func NewLevels(dir string) *Levels {
	return &Levels{dir: dir}
}

func (l *Levels) Dir() string { return l.dir }

// Path returns the file for name, or ErrUnknownLevel when name is not a
// plain level name.
func (l *Levels) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%q: %w", name, ErrUnknownLevel)
	}
	return filepath.Join(l.dir, name+levelExt), nil
}

// Load resolves and loads name.
func (l *Levels) Load(name string) (*level.Map, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, fmt.Errorf("level load failed: %w", err)
	}
	return LoadLevel(path)
}

// Names lists the levels in the directory, sorted.
func (l *Levels) Names() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read level dir %s: %w", l.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != levelExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), levelExt))
	}
	slices.Sort(names)
	return names, nil
}
