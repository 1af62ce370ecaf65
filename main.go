package main

import (
	"codeberg.org/miketth/keybswitch/pkg/config"
	"codeberg.org/miketth/keybswitch/pkg/hyprland"
	"codeberg.org/miketth/keybswitch/pkg/journal/json"
	"codeberg.org/miketth/keybswitch/pkg/journal/memory"
	"codeberg.org/miketth/keybswitch/pkg/journal/sqlite"
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"codeberg.org/miketth/keybswitch/pkg/metrics"
	"codeberg.org/miketth/keybswitch/pkg/udev"
	"codeberg.org/miketth/keybswitch/pkg/xkb"
	"codeberg.org/miketth/keybswitch/pkg/xkblayouts"
	"context"
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

func main() {
	err := run()
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}

func run() error {
	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newApp().RunContext(ctx, os.Args)
}

func runDaemon(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	log, err := newLogger(c.Bool(flagDebug))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log.Infow("loaded config", "path", cfg.Path(), "keyboards", len(cfg.Keyboards), "backend", cfg.Backend)

	validateLayouts(cfg, log)

	applier, err := newApplier(cfg, log)
	if err != nil {
		return fmt.Errorf("create layout applier: %w", err)
	}

	journal, closeJournal, err := openJournal(cfg, log)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		if err := closeJournal(); err != nil {
			log.Errorw("close journal", "error", err)
		}
	}()

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New(prometheus.NewRegistry())
	}

	var (
		watcher *config.Watcher
		reloads chan keybswitch.Settings
	)
	if cfg.Watch {
		watcher, err = config.NewWatcher(cfg.Path(), config.DefaultDebounce, log)
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		reloads = make(chan keybswitch.Settings, 1)
	}

	sw := keybswitch.NewSwitcher(keybswitch.Options{
		Settings:    cfg.Settings(),
		Source:      udev.NewSource(log),
		Applier:     applier,
		Timings:     cfg.SwitcherTimings(),
		Log:         log,
		Journal:     journal,
		Metrics:     m,
		Reloads:     reloads,
		SyncOnStart: cfg.SyncOnStart,
	})

	log.Info("started keybswitch")

	errChan := make(chan error, 5)
	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err != nil {
				errChan <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	start("switcher", sw.Run)
	start("systemd notify", func(ctx context.Context) error {
		return systemdNotifyLoop(ctx, len(cfg.Keyboards))
	})
	if m != nil {
		log.Infow("serving metrics", "addr", cfg.MetricsAddr)
		start("metrics", func(ctx context.Context) error {
			return m.Serve(ctx, cfg.MetricsAddr)
		})
	}
	if watcher != nil {
		start("config watcher", watcher.Run)
		start("config relay", func(ctx context.Context) error {
			return relaySettings(ctx, cfg, watcher.Updates(), reloads, log)
		})
	}

	err = <-errChan
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}

// relaySettings forwards reloaded configs to the switcher. Settings that only
// take effect at startup are reported and otherwise ignored.
func relaySettings(ctx context.Context, initial *config.Config, updates <-chan *config.Config, reloads chan keybswitch.Settings, log *zap.SugaredLogger) error {
	log = log.Named("reload")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cfg := <-updates:
			if cfg.Backend != initial.Backend || cfg.Journal != initial.Journal ||
				cfg.MetricsAddr != initial.MetricsAddr || cfg.Timings != initial.Timings {
				log.Warn("backend, journal, metrics and timing changes need a restart")
			}
			validateLayouts(cfg, log)

			// only the newest settings matter
			select {
			case <-reloads:
			default:
			}
			reloads <- cfg.Settings()
		}
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// validateLayouts only warns: setxkbmap has the final word on what exists.
func validateLayouts(cfg *config.Config, log *zap.SugaredLogger) {
	registry, err := xkblayouts.Load(cfg.EvdevXMLPath)
	if err != nil {
		log.Warnw("cannot validate layouts", "path", cfg.EvdevXMLPath, "error", err)
		return
	}

	settings := cfg.Settings()
	for _, layout := range []keybswitch.Layout{settings.Connected, settings.Disconnected} {
		if err := registry.Validate(layout.Code, layout.Variant); err != nil {
			log.Warnw("layout not found in registry", "layout", layout, "error", err)
			continue
		}
		log.Debugw("layout ok", "layout", layout, "name", registry.PrettyName(layout.Code, layout.Variant))
	}
}

func newApplier(cfg *config.Config, log *zap.SugaredLogger) (keybswitch.LayoutApplier, error) {
	switch cfg.Backend {
	case config.BackendSetxkbmap:
		return xkb.NewSetxkbmap(cfg.SetxkbmapPath, log), nil
	case config.BackendHyprland:
		return hyprland.NewKeyword(log), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalid, cfg.Backend)
	}
}

func noClose() error { return nil }

// openJournal returns a nil journal for the "none" backend.
func openJournal(cfg *config.Config, log *zap.SugaredLogger) (keybswitch.Journal, func() error, error) {
	switch cfg.Journal.Backend {
	case config.JournalNone:
		return nil, noClose, nil
	case config.JournalMemory:
		return memory.NewJournal(memory.DefaultCapacity), noClose, nil
	}

	path, err := cfg.JournalPath()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Journal.Backend {
	case config.JournalJSON:
		j, err := json.NewJournal(path, json.DefaultCapacity)
		if err != nil {
			return nil, nil, fmt.Errorf("open json journal %s: %w", path, err)
		}
		return j, j.Close, nil
	case config.JournalSQLite:
		j, err := sqlite.NewJournal(path, log.Named("journal"))
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite journal %s: %w", path, err)
		}
		return j, j.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown journal backend %q", config.ErrInvalid, cfg.Journal.Backend)
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()

	loggerConfig.OutputPaths = []string{"stdout"}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !debug {
		loggerConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}
