package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"github.com/adrg/xdg"
	"go.uber.org/multierr"
	"go.viam.com/test"
)

const fullConfig = `
layout_connected: us
variant_connected: ""
layout_disconnected: us
variant_disconnected: dvorak
keyboards:
  - name: KB1
    vendor_id: "046d"
    model_id: "c31c"
  - name: Kinesis
    vendor_id: "29ea"
    model_id: "0102"
backend: hyprland
setxkbmap_path: /usr/bin/setxkbmap
sync_on_start: true
timings:
  poll_interval: 500ms
  settle_delay: 3s
  backoff: 250ms
journal:
  backend: json
  path: /tmp/journal.json
metrics_addr: 127.0.0.1:9273
evdev_xml_path: /opt/xkb/evdev.xml
watch: true
`

const minimalConfig = `
layout_connected: us
layout_disconnected: de
keyboards:
  - name: KB1
    vendor_id: "046d"
    model_id: "c31c"
`

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, cfg.Keyboards, test.ShouldResemble, []Keyboard{
		{Name: "KB1", VendorID: "046d", ModelID: "c31c"},
		{Name: "Kinesis", VendorID: "29ea", ModelID: "0102"},
	})
	test.That(t, cfg.Backend, test.ShouldEqual, BackendHyprland)
	test.That(t, cfg.SetxkbmapPath, test.ShouldEqual, "/usr/bin/setxkbmap")
	test.That(t, cfg.SyncOnStart, test.ShouldBeTrue)
	test.That(t, cfg.Timings, test.ShouldResemble, Timings{
		PollInterval: 500 * time.Millisecond,
		SettleDelay:  3 * time.Second,
		Backoff:      250 * time.Millisecond,
	})
	test.That(t, cfg.Journal, test.ShouldResemble, Journal{Backend: JournalJSON, Path: "/tmp/journal.json"})
	test.That(t, cfg.MetricsAddr, test.ShouldEqual, "127.0.0.1:9273")
	test.That(t, cfg.EvdevXMLPath, test.ShouldEqual, "/opt/xkb/evdev.xml")
	test.That(t, cfg.Watch, test.ShouldBeTrue)

	path, err := cfg.JournalPath()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, "/tmp/journal.json")
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, cfg.Backend, test.ShouldEqual, BackendSetxkbmap)
	test.That(t, cfg.Journal.Backend, test.ShouldEqual, JournalSQLite)
	test.That(t, cfg.EvdevXMLPath, test.ShouldEqual, "/usr/share/X11/xkb/rules/evdev.xml")
	test.That(t, cfg.SwitcherTimings(), test.ShouldResemble, keybswitch.DefaultTimings())
	test.That(t, cfg.Watch, test.ShouldBeFalse)
	test.That(t, cfg.SyncOnStart, test.ShouldBeFalse)
}

func TestSettings(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, cfg.Settings(), test.ShouldResemble, keybswitch.Settings{
		Catalog: keybswitch.Catalog{
			{Name: "KB1", VendorID: "046d", ModelID: "c31c"},
			{Name: "Kinesis", VendorID: "29ea", ModelID: "0102"},
		},
		Connected:    keybswitch.Layout{Code: "us"},
		Disconnected: keybswitch.Layout{Code: "us", Variant: "dvorak"},
	})
}

func TestParseInvalid(t *testing.T) {
	for _, tc := range []struct {
		name     string
		doc      string
		problems int
	}{
		{
			name:     "missing layouts",
			doc:      "keyboards: []\n",
			problems: 2,
		},
		{
			name: "keyboard without ids",
			doc: `
layout_connected: us
layout_disconnected: us
keyboards:
  - name: broken
`,
			problems: 2,
		},
		{
			name: "unknown backends",
			doc: `
layout_connected: us
layout_disconnected: us
backend: wayland
journal:
  backend: postgres
`,
			problems: 2,
		},
		{
			name: "negative timing",
			doc: `
layout_connected: us
layout_disconnected: us
timings:
  settle_delay: -1s
`,
			problems: 1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrInvalid), test.ShouldBeTrue)
			test.That(t, multierr.Errors(err), test.ShouldHaveLength, tc.problems)
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(minimalConfig + "layout_conected: us\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "layout_conected")
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(nil)
	test.That(t, errors.Is(err, ErrInvalid), test.ShouldBeTrue)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	test.That(t, os.WriteFile(path, []byte(minimalConfig), 0o644), test.ShouldBeNil)

	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Path(), test.ShouldEqual, path)
	test.That(t, cfg.Keyboards, test.ShouldHaveLength, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, errors.Is(err, os.ErrNotExist), test.ShouldBeTrue)
}

func TestDefaultPaths(t *testing.T) {
	t.Cleanup(xdg.Reload)
	configHome := t.TempDir()
	dataHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("XDG_DATA_HOME", dataHome)
	xdg.Reload()

	path, err := DefaultPath()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, filepath.Join(configHome, "keybswitch", "config.yaml"))

	cfg, err := Parse([]byte(minimalConfig))
	test.That(t, err, test.ShouldBeNil)
	journal, err := cfg.JournalPath()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, journal, test.ShouldEqual, filepath.Join(dataHome, "keybswitch", "journal.db"))

	cfg.Journal.Backend = JournalJSON
	journal, err = cfg.JournalPath()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, journal, test.ShouldEqual, filepath.Join(dataHome, "keybswitch", "journal.json"))
}
