// Command bspview walks a level in the terminal. Levels come from the level
// directory of the engine config, or from a WAD file with -wad.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sectorgo/engine/internal/audio"
	"github.com/sectorgo/engine/internal/behavior"
	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/config"
	"github.com/sectorgo/engine/internal/data"
	"github.com/sectorgo/engine/internal/engine"
	"github.com/sectorgo/engine/internal/render"
	"github.com/sectorgo/engine/internal/render/term"
	"github.com/sectorgo/engine/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "config/engine.toml", "engine config; missing file means defaults")
	levelName := flag.String("level", "", "level to open (default: start_level)")
	wadPath := flag.String("wad", "", "read levels from this WAD instead of the level directory")
	logPath := flag.String("log", "", "write logs to this file")
	sound := flag.Bool("sound", false, "play positioned effects")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return err
	}

	log := zap.NewNop()
	if *logPath != "" {
		zc := zap.NewDevelopmentConfig()
		zc.OutputPaths = []string{*logPath}
		zc.ErrorOutputPaths = []string{*logPath}
		zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zc.DisableStacktrace = true
		if log, err = zc.Build(); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()
	}

	load := data.NewLevels(cfg.Engine.LevelDir).Load
	name := cfg.Engine.StartLevel
	if *wadPath != "" {
		raw, err := os.ReadFile(*wadPath)
		if err != nil {
			return err
		}
		wad, err := data.ReadWAD(raw)
		if err != nil {
			return err
		}
		maps := wad.Maps()
		if len(maps) == 0 {
			return fmt.Errorf("%s has no maps", *wadPath)
		}
		load, name = wad.Load, maps[0]
	}
	if *levelName != "" {
		name = *levelName
	}

	things, err := data.LoadThingTable(cfg.Engine.ThingTable)
	if errors.Is(err, fs.ErrNotExist) {
		things, err = data.DefaultThingTable(), nil
	}
	if err != nil {
		return err
	}

	lua, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer lua.Close()

	// Check the level before taking over the terminal.
	if _, err := load(name); err != nil {
		return err
	}

	disp, err := term.Open()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer disp.Close()

	var dev *audio.Device
	if *sound {
		spk, err := audio.OpenSpeaker(cfg.Audio.SampleRate)
		if err != nil {
			log.Warn("audio unavailable", zap.Error(err))
		} else {
			defer spk.Close()
			dev = audio.NewDevice(audio.Config{
				SampleRate: cfg.Audio.SampleRate,
				Volume:     cfg.Audio.Volume,
				Falloff:    cfg.Audio.Falloff,
			}, spk, log)
		}
	}

	pipeline := render.NewPipeline(disp, cfg.Engine.RenderTimeout, log)
	sched := engine.NewScheduler(load, pipeline, engine.Options{
		TickRate: cfg.Engine.TickRate,
		Physics:  cfg.Physics,
		Movement: cfg.Movement,
		Sectors:  cfg.Sectors,
		View:     cfg.View,
		Skill:    cfg.Engine.Skill,
		Things:   things,
		Behaviors: func(s *component.Stores) (*behavior.Registry, error) {
			reg, err := engine.StockBehaviors(s, cfg.Movement)
			if err != nil {
				return nil, err
			}
			return reg, lua.Bind(reg, s)
		},
		ImpactDamage: lua.CalcImpactDamage,
		Attach: func(lv *engine.Level) {
			if dev != nil {
				dev.Attach(lv.Bus, lv.Listener)
			}
		},
		Log: log,
	})
	defer sched.Close()
	if err := sched.Load(name); err != nil {
		return err
	}

	loop := engine.NewLoop(sched, disp.Input(), cfg.Engine.TickRate, cfg.Engine.MaxCatchUp, log)
	loop.OnTick = func(s *engine.Scheduler, d time.Duration) {
		lv := s.Level()
		pos, angle, ok := lv.Listener()
		if !ok {
			disp.SetStatus("no player start")
			return
		}
		disp.SetStatus(fmt.Sprintf("x %.0f y %.0f z %.0f  facing %3.0f°  %v/tick",
			pos.X, pos.Y, pos.Z, angle*180/math.Pi, d.Round(10*time.Microsecond)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go disp.Pump(ctx, cancel)

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, engine.ErrQuit) {
		return err
	}
	return nil
}
