package main

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/miketth/keybswitch/pkg/config"
	"codeberg.org/miketth/keybswitch/pkg/hyprland"
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"codeberg.org/miketth/keybswitch/pkg/xkb"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
)

func parseConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	doc := `
layout_connected: us
layout_disconnected: us
variant_disconnected: dvorak
evdev_xml_path: /nonexistent/evdev.xml
keyboards:
  - {name: KB1, vendor_id: "1111", model_id: "2222"}
` + extra
	cfg, err := config.Parse([]byte(doc))
	test.That(t, err, test.ShouldBeNil)
	return cfg
}

func TestNewApplier(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	applier, err := newApplier(parseConfig(t, ""), log)
	test.That(t, err, test.ShouldBeNil)
	_, ok := applier.(*xkb.Setxkbmap)
	test.That(t, ok, test.ShouldBeTrue)

	applier, err = newApplier(parseConfig(t, "backend: hyprland\n"), log)
	test.That(t, err, test.ShouldBeNil)
	_, ok = applier.(*hyprland.Keyword)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestOpenJournal(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	ctx := context.Background()

	j, closeJournal, err := openJournal(parseConfig(t, "journal: {backend: none}\n"), log)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, j, test.ShouldBeNil)
	test.That(t, closeJournal(), test.ShouldBeNil)

	for _, backend := range []string{config.JournalMemory, config.JournalJSON, config.JournalSQLite} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "journal")
			cfg := parseConfig(t, fmt.Sprintf("journal: {backend: %s, path: %q}\n", backend, path))

			j, closeJournal, err := openJournal(cfg, log)
			test.That(t, err, test.ShouldBeNil)
			defer closeJournal()

			err = j.Record(ctx, keybswitch.Transition{Direction: keybswitch.DirectionConnect, Layout: keybswitch.Layout{Code: "us"}})
			test.That(t, err, test.ShouldBeNil)

			recent, err := j.Recent(ctx, 5)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, recent, test.ShouldHaveLength, 1)
			test.That(t, recent[0].Direction, test.ShouldEqual, keybswitch.DirectionConnect)
		})
	}
}

func TestRelaySettingsKeepsNewest(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial := parseConfig(t, "")
	updates := make(chan *config.Config)
	reloads := make(chan keybswitch.Settings, 1)
	reloads <- initial.Settings()

	done := make(chan error, 1)
	go func() {
		done <- relaySettings(ctx, initial, updates, reloads, log)
	}()

	changed := *initial
	changed.LayoutConnected = "de"
	updates <- &changed

	select {
	case settings := <-reloads:
		if settings.Connected.Code == "us" {
			// the stale value was read before the relay replaced it
			settings = <-reloads
		}
		test.That(t, settings.Connected, test.ShouldResemble, keybswitch.Layout{Code: "de"})
	case <-time.After(time.Second):
		t.Fatal("no settings relayed")
	}

	cancel()
	test.That(t, <-done, test.ShouldEqual, context.Canceled)
}

func TestHistoryRejectsNonPositiveLimit(t *testing.T) {
	for _, limit := range []string{"0", "-1"} {
		err := newApp().Run([]string{"keybswitch", "history", "--limit", limit})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "--limit must be at least 1")
	}
}
