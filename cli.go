package main

import (
	"codeberg.org/miketth/keybswitch/pkg/config"
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"codeberg.org/miketth/keybswitch/pkg/udev"
	"codeberg.org/miketth/keybswitch/pkg/xkblayouts"
	"context"
	"errors"
	"fmt"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"time"
)

const (
	flagConfig = "config"
	flagDebug  = "debug"
	flagLimit  = "limit"

	defaultHistoryLimit = 20
	watchPollInterval   = time.Second
)

func newApp() *cli.App {
	return &cli.App{
		Name:            "keybswitch",
		Usage:           "switch the keyboard layout when a USB keyboard is plugged in or removed",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: runDaemon,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "watch for keyboards and switch layouts (default)",
				Action: runDaemon,
			},
			{
				Name:   "devices",
				Usage:  "list attached USB devices and whether they are configured keyboards",
				Action: devicesAction,
			},
			{
				Name:   "watch",
				Usage:  "print USB add and remove events until interrupted",
				Action: watchAction,
			},
			{
				Name:  "history",
				Usage: "print recent layout switches from the journal",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  flagLimit,
						Value: defaultHistoryLimit,
						Usage: "number of entries to print",
					},
				},
				Action: historyAction,
			},
			{
				Name:   "check",
				Usage:  "validate the configuration and the configured layouts",
				Action: checkAction,
			},
		},
	}
}

func devicesAction(c *cli.Context) error {
	log, err := newLogger(c.Bool(flagDebug))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	// listing devices is how IDs for a first config are found
	var catalog keybswitch.Catalog
	if cfg, err := loadConfig(c); err != nil {
		log.Warnw("no usable config, not marking configured keyboards", "error", err)
	} else {
		catalog = cfg.Settings().Catalog
	}

	devices, err := udev.NewSource(log).List(c.Context)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	w := c.App.Writer
	for _, d := range devices {
		mark := " "
		name := ""
		if kb, ok := catalog.Lookup(d.VendorID, d.ModelID); ok {
			mark = "*"
			name = kb.Name
		}
		fmt.Fprintf(w, "%s %s  %s %s  %s\n", mark, d.Key(), d.Vendor, d.Model, name)
	}

	return nil
}

func watchAction(c *cli.Context) error {
	ctx := c.Context

	log, err := newLogger(c.Bool(flagDebug))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	sub, err := udev.NewSource(log).Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	w := c.App.Writer
	for ctx.Err() == nil {
		ready, err := sub.WaitReady(ctx, watchPollInterval)
		if errors.Is(err, context.Canceled) {
			break
		}
		if err != nil {
			return fmt.Errorf("wait for events: %w", err)
		}
		if !ready {
			continue
		}

		for _, ev := range sub.Drain() {
			fmt.Fprintf(w, "%s %s %s\n", ev.Action, ev.Key(), ev.Syspath)
		}
	}

	return nil
}

func historyAction(c *cli.Context) error {
	limit := c.Int(flagLimit)
	if limit < 1 {
		return fmt.Errorf("--%s must be at least 1, got %d", flagLimit, limit)
	}

	log, err := newLogger(c.Bool(flagDebug))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	switch cfg.Journal.Backend {
	case config.JournalNone, config.JournalMemory:
		return fmt.Errorf("journal backend %q keeps no history", cfg.Journal.Backend)
	}

	journal, closeJournal, err := openJournal(cfg, log)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	transitions, err := journal.Recent(c.Context, limit)
	err = multierr.Append(err, closeJournal())
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	w := c.App.Writer
	for _, t := range transitions {
		result := "ok"
		if t.Err != "" {
			result = "error: " + t.Err
		}
		fmt.Fprintf(w, "%s  %-10s  %-16s  %-12s  %s\n",
			t.At.Local().Format(time.RFC3339), t.Direction, t.Layout, t.Keyboard, result)
	}

	return nil
}

func checkAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	registry, err := xkblayouts.Load(cfg.EvdevXMLPath)
	if err != nil {
		return fmt.Errorf("load layout registry: %w", err)
	}

	settings := cfg.Settings()
	w := c.App.Writer
	fmt.Fprintf(w, "config: %s\n", cfg.Path())

	var layoutErr error
	for _, l := range []struct {
		label  string
		layout keybswitch.Layout
	}{
		{"connected", settings.Connected},
		{"disconnected", settings.Disconnected},
	} {
		if err := registry.Validate(l.layout.Code, l.layout.Variant); err != nil {
			layoutErr = multierr.Append(layoutErr, fmt.Errorf("%s layout %s: %w", l.label, l.layout, err))
			continue
		}
		fmt.Fprintf(w, "%s: %s (%s)\n", l.label, l.layout, registry.PrettyName(l.layout.Code, l.layout.Variant))
	}

	fmt.Fprintf(w, "keyboards:\n")
	for _, kb := range settings.Catalog {
		fmt.Fprintf(w, "  %s:%s  %s\n", kb.VendorID, kb.ModelID, kb.Name)
	}

	return layoutErr
}
