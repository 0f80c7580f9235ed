package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sectorgo/engine/internal/audio"
	"github.com/sectorgo/engine/internal/behavior"
	"github.com/sectorgo/engine/internal/component"
	"github.com/sectorgo/engine/internal/config"
	"github.com/sectorgo/engine/internal/data"
	"github.com/sectorgo/engine/internal/engine"
	"github.com/sectorgo/engine/internal/input"
	"github.com/sectorgo/engine/internal/metrics"
	gonet "github.com/sectorgo/engine/internal/net"
	"github.com/sectorgo/engine/internal/persist"
	"github.com/sectorgo/engine/internal/render"
	"github.com/sectorgo/engine/internal/render/automap"
	"github.com/sectorgo/engine/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              sectorgo  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        BSP sector engine · headless       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mInstance:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printSkip(msg string) {
	fmt.Printf("  \033[90m-\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main engine logic ─────────────────────────────────────────────

func run() error {
	// 1. Environment and config
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfgPath := "config/engine.toml"
	if p := os.Getenv("SECTORGO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dsn := os.Getenv("SECTORGO_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}

	// 2. Logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Engine.Name)

	// 3. Level data and thing table
	printSection("Data")
	levels := data.NewLevels(cfg.Engine.LevelDir)
	names, err := levels.Names()
	if err != nil {
		return fmt.Errorf("list levels: %w", err)
	}
	printStat("Levels", len(names))
	things, err := loadThings(cfg.Engine.ThingTable, log)
	if err != nil {
		return err
	}
	printStat("Thing types", things.Count())
	fmt.Println()

	// 4. Lua behaviors and hooks
	printSection("Scripting")
	lua, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer lua.Close()
	printStat("Lua behaviors", len(lua.Behaviors()))
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	// 5. Session recording
	printSection("Database")
	var recorder *persist.Recorder
	if cfg.Database.DSN == "" {
		printSkip("No DSN, sessions are not recorded")
	} else {
		dbCtx, dbCancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			dbCancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")
		version, err := persist.RunMigrations(dbCtx, db.Pool, log)
		dbCancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("Schema at version %d", version))

		recorder = persist.NewRecorder(persist.NewSessionRepo(db), cfg.Database.FlushInterval, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Run(ctx)
		}()
	}
	fmt.Println()

	// 6. Render backends
	printSection("Render")
	m := metrics.New()
	var backends render.Multi
	var feed *gonet.Feed
	if cfg.Debug.ListenAddr != "" {
		feed = gonet.NewFeed(gonet.FeedConfig{
			MaxClients:     cfg.Debug.FeedClients,
			FrameRate:      cfg.Debug.FeedRate,
			WriteTimeout:   cfg.Debug.WriteTimeout,
			AllowedOrigins: cfg.Debug.AllowedOrigins,
		}, log)
		defer feed.Close()
		backends = append(backends, feed)
		printOK("Frame feed on /feed")
	}
	var amap *automap.Writer
	if cfg.Engine.AutomapDir != "" && cfg.Engine.AutomapEvery > 0 {
		amap = automap.New(automap.Config{Dir: cfg.Engine.AutomapDir, Every: uint64(cfg.Engine.AutomapEvery)}, log)
		backends = append(backends, amap)
		printOK("Automap snapshots in " + cfg.Engine.AutomapDir)
	}
	var pipeline *render.Pipeline
	if len(backends) > 0 {
		pipeline = render.NewPipeline(backends, cfg.Engine.RenderTimeout, log)
		pipeline.Observe = m.ObserveSubmit
	} else {
		printSkip("No backends, draw lists are not built")
	}

	// 7. Audio
	var dev *audio.Device
	if cfg.Audio.Enabled {
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
			printOK(fmt.Sprintf("Audio at %d Hz", cfg.Audio.SampleRate))
		}
	}
	fmt.Println()

	// 8. Scheduler and start level
	printSection("Level")
	var sched *engine.Scheduler
	sched = engine.NewScheduler(levels.Load, pipeline, engine.Options{
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
		Observe:      m.ObserveSystem,
		Attach: func(lv *engine.Level) {
			m.Attach(lv.Bus)
			if dev != nil {
				dev.Attach(lv.Bus, lv.Listener)
			}
			if amap != nil {
				amap.SetMap(lv.Map)
			}
			if recorder != nil {
				recorder.Begin(lv.Bus, lv.Name(), lv.Map.Digest, sched.Tick(), pipelineStats(pipeline))
			}
		},
		Log: log,
	})
	defer sched.Close()
	if err := sched.Load(cfg.Engine.StartLevel); err != nil {
		return fmt.Errorf("start level: %w", err)
	}
	lv := sched.Level()
	printOK(fmt.Sprintf("%s loaded", lv.Name()))
	printStat("Sectors", len(lv.Map.Sectors))
	printStat("Subsectors", len(lv.Map.Subsectors))
	printStat("Entities", lv.World.Len())
	fmt.Println()

	// 9. Loop, console and debug server
	loop := engine.NewLoop(sched, input.Idle{}, cfg.Engine.TickRate, cfg.Engine.MaxCatchUp, log)
	board := &gonet.StatusBoard{}
	loop.OnTick = func(s *engine.Scheduler, d time.Duration) {
		m.ObserveTick(d)
		lv := s.Level()
		if lv == nil {
			return
		}
		if vs, _, ok := lv.Vis.Frame(); ok {
			m.ObserveFrame(vs, lv.World.Len())
		}
		stats := pipelineStats(s.Pipeline())
		board.Publish(gonet.Status{
			Level:    lv.Name(),
			Digest:   lv.Map.Digest,
			Tick:     s.Tick(),
			Entities: lv.World.Len(),
			Skipped:  stats.Skipped,
			Stale:    stats.Stale,
		})
		if recorder != nil {
			recorder.Observe(s.Tick(), stats)
		}
	}

	if cfg.Debug.ListenAddr != "" {
		srv := gonet.NewServer(gonet.ServerConfig{
			Addr:           cfg.Debug.ListenAddr,
			AllowedOrigins: cfg.Debug.AllowedOrigins,
			ConsoleRate:    cfg.Debug.ConsoleRate,
			Console:        loop,
			Metrics:        m.Handler(),
			Feed:           feed,
			Status:         board,
			Started:        cfg.StartTime,
		}, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx); err != nil {
				log.Error("debug server stopped", zap.Error(err))
			}
		}()
		printReady("Debug server on " + cfg.Debug.ListenAddr)
	}

	go readConsole(loop, log)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	printReady(fmt.Sprintf("Running at %.0f ticks/s", float64(time.Second)/float64(cfg.Engine.TickRate)))
	fmt.Println()

	err = loop.Run(ctx)
	cancel()
	sched.Close()
	wg.Wait()
	if err != nil && !errors.Is(err, engine.ErrQuit) && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("engine stopped", zap.Uint64("ticks", sched.Tick()))
	return nil
}

func loadThings(path string, log *zap.Logger) (*data.ThingTable, error) {
	things, err := data.LoadThingTable(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("thing table not found, using built-in", zap.String("path", path))
		return data.DefaultThingTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("thing table: %w", err)
	}
	return things, nil
}

func pipelineStats(p *render.Pipeline) render.PipelineStats {
	if p == nil {
		return render.PipelineStats{}
	}
	return p.Stats()
}

// readConsole feeds stdin lines to the loop until stdin closes.
func readConsole(loop *engine.Loop, log *zap.Logger) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := loop.Submit(line); err != nil {
			log.Warn("console", zap.String("line", line), zap.Error(err))
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
