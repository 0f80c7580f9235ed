package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sectorgo/engine/internal/behavior"
	"github.com/sectorgo/engine/internal/physics"
	"github.com/sectorgo/engine/internal/system"
)

type Config struct {
	Engine    EngineConfig        `toml:"engine"`
	Physics   physics.Config      `toml:"physics"`
	Movement  behavior.Movement   `toml:"movement"`
	Sectors   system.SectorConfig `toml:"sectors"`
	View      system.ViewConfig   `toml:"view"`
	Logging   LoggingConfig       `toml:"logging"`
	Database  DatabaseConfig      `toml:"database"`
	Debug     DebugConfig         `toml:"debug"`
	Audio     AudioConfig         `toml:"audio"`
	Scripting ScriptingConfig     `toml:"scripting"`
	StartTime time.Time           `toml:"-"` // set at boot
}

type EngineConfig struct {
	Name          string        `toml:"name"`
	TickRate      time.Duration `toml:"tick_rate"`
	MaxCatchUp    int           `toml:"max_catch_up"` // ticks simulated per wake-up before dropping time
	RenderTimeout time.Duration `toml:"render_timeout"`
	StartLevel    string        `toml:"start_level"`
	LevelDir      string        `toml:"level_dir"`
	ThingTable    string        `toml:"thing_table"`
	Skill         int           `toml:"skill"` // 1 easy, 2 normal, 3 hard
	AutomapDir    string        `toml:"automap_dir"`
	AutomapEvery  int           `toml:"automap_every"` // ticks between snapshots, 0 disables
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// DatabaseConfig: an empty DSN disables session recording.
type DatabaseConfig struct {
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	FlushInterval   time.Duration `toml:"flush_interval"`
}

// DebugConfig: an empty ListenAddr disables the debug server.
type DebugConfig struct {
	ListenAddr     string        `toml:"listen_addr"`
	AllowedOrigins []string      `toml:"allowed_origins"`
	ConsoleRate    float64       `toml:"console_rate"` // commands per second
	FeedRate       float64       `toml:"feed_rate"`    // frames per second per client
	FeedClients    int           `toml:"feed_clients"` // concurrent feed subscribers
	WriteTimeout   time.Duration `toml:"write_timeout"`
}

type AudioConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate int     `toml:"sample_rate"`
	Volume     float64 `toml:"volume"`  // 0..1
	Falloff    float64 `toml:"falloff"` // distance at which sounds are silent
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Engine.TickRate <= 0 {
		return nil, fmt.Errorf("parse config %s: tick_rate must be positive", path)
	}
	cfg.StartTime = time.Now()
	return cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	cfg := defaults()
	cfg.StartTime = time.Now()
	return cfg
}

func defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			Name:          "sectorgo",
			TickRate:      time.Second / 35,
			MaxCatchUp:    5,
			RenderTimeout: 250 * time.Millisecond,
			StartLevel:    "e1m1",
			LevelDir:      "data/levels",
			ThingTable:    "data/things.yaml",
			Skill:         2,
			AutomapDir:    "",
			AutomapEvery:  0,
		},
		Physics:  physics.DefaultConfig(),
		Movement: behavior.DefaultMovement(),
		Sectors:  system.DefaultSectorConfig(),
		View:     system.DefaultViewConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
			FlushInterval:   5 * time.Second,
		},
		Debug: DebugConfig{
			AllowedOrigins: []string{"*"},
			ConsoleRate:    2,
			FeedRate:       10,
			FeedClients:    8,
			WriteTimeout:   2 * time.Second,
		},
		Audio: AudioConfig{
			Enabled:    false,
			SampleRate: 44100,
			Volume:     0.5,
			Falloff:    1200,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
	}
}
