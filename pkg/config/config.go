// Package config loads the keybswitch configuration file.
package config

import (
	"bytes"
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"codeberg.org/miketth/keybswitch/pkg/xkblayouts"
	"errors"
	"fmt"
	"github.com/adrg/xdg"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"time"
)

const (
	appName  = "keybswitch"
	fileName = "config.yaml"

	BackendSetxkbmap = "setxkbmap"
	BackendHyprland  = "hyprland"

	JournalNone   = "none"
	JournalMemory = "memory"
	JournalJSON   = "json"
	JournalSQLite = "sqlite"
)

var ErrInvalid = errors.New("invalid config")

type Keyboard struct {
	Name     string `yaml:"name"`
	VendorID string `yaml:"vendor_id"`
	ModelID  string `yaml:"model_id"`
}

type Timings struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
	Backoff      time.Duration `yaml:"backoff"`
}

type Journal struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type Config struct {
	LayoutConnected     string     `yaml:"layout_connected"`
	VariantConnected    string     `yaml:"variant_connected"`
	LayoutDisconnected  string     `yaml:"layout_disconnected"`
	VariantDisconnected string     `yaml:"variant_disconnected"`
	Keyboards           []Keyboard `yaml:"keyboards"`

	Backend       string  `yaml:"backend"`
	SetxkbmapPath string  `yaml:"setxkbmap_path"`
	SyncOnStart   bool    `yaml:"sync_on_start"`
	Timings       Timings `yaml:"timings"`
	Journal       Journal `yaml:"journal"`
	MetricsAddr   string  `yaml:"metrics_addr"`
	EvdevXMLPath  string  `yaml:"evdev_xml_path"`
	Watch         bool    `yaml:"watch"`

	path string
}

// DefaultPath is $XDG_CONFIG_HOME/keybswitch/config.yaml. The directory is
// created if needed.
func DefaultPath() (string, error) {
	path, err := xdg.ConfigFile(appName + "/" + fileName)
	if err != nil {
		return "", fmt.Errorf("get config file path: %w", err)
	}
	return path, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.path = path

	return cfg, nil
}

// Parse decodes a config document, fills in defaults and validates it.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := keybswitch.DefaultTimings()

	if c.Backend == "" {
		c.Backend = BackendSetxkbmap
	}
	if c.Timings.PollInterval == 0 {
		c.Timings.PollInterval = defaults.PollInterval
	}
	if c.Timings.SettleDelay == 0 {
		c.Timings.SettleDelay = defaults.SettleDelay
	}
	if c.Timings.Backoff == 0 {
		c.Timings.Backoff = defaults.Backoff
	}
	if c.Journal.Backend == "" {
		c.Journal.Backend = JournalSQLite
	}
	if c.EvdevXMLPath == "" {
		c.EvdevXMLPath = xkblayouts.DefaultPath
	}
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.LayoutConnected == "" {
		invalid("layout_connected is not set")
	}
	if c.LayoutDisconnected == "" {
		invalid("layout_disconnected is not set")
	}
	for i, kb := range c.Keyboards {
		if kb.VendorID == "" {
			invalid("keyboards[%d] (%s): vendor_id is not set", i, kb.Name)
		}
		if kb.ModelID == "" {
			invalid("keyboards[%d] (%s): model_id is not set", i, kb.Name)
		}
	}

	switch c.Backend {
	case BackendSetxkbmap, BackendHyprland:
	default:
		invalid("unknown backend %q", c.Backend)
	}

	switch c.Journal.Backend {
	case JournalNone, JournalMemory, JournalJSON, JournalSQLite:
	default:
		invalid("unknown journal backend %q", c.Journal.Backend)
	}

	if c.Timings.PollInterval < 0 || c.Timings.SettleDelay < 0 || c.Timings.Backoff < 0 {
		invalid("timings must not be negative")
	}

	return err
}

func (c *Config) Path() string {
	return c.path
}

func (c *Config) Settings() keybswitch.Settings {
	catalog := make(keybswitch.Catalog, 0, len(c.Keyboards))
	for _, kb := range c.Keyboards {
		catalog = append(catalog, keybswitch.KeyboardSpec{
			Name:     kb.Name,
			VendorID: kb.VendorID,
			ModelID:  kb.ModelID,
		})
	}

	return keybswitch.Settings{
		Catalog:      catalog,
		Connected:    keybswitch.Layout{Code: c.LayoutConnected, Variant: c.VariantConnected},
		Disconnected: keybswitch.Layout{Code: c.LayoutDisconnected, Variant: c.VariantDisconnected},
	}
}

func (c *Config) SwitcherTimings() keybswitch.Timings {
	return keybswitch.Timings{
		PollInterval: c.Timings.PollInterval,
		SettleDelay:  c.Timings.SettleDelay,
		Backoff:      c.Timings.Backoff,
	}
}

// JournalPath returns the configured journal file, or a file under
// $XDG_DATA_HOME/keybswitch named after the backend.
func (c *Config) JournalPath() (string, error) {
	if c.Journal.Path != "" {
		return c.Journal.Path, nil
	}

	name := "journal.db"
	if c.Journal.Backend == JournalJSON {
		name = "journal.json"
	}

	path, err := xdg.DataFile(appName + "/" + name)
	if err != nil {
		return "", fmt.Errorf("get journal path: %w", err)
	}
	return path, nil
}
