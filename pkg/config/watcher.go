package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the config file when it changes and publishes every valid
// new version on Updates. Invalid or unchanged files are skipped.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	delay   time.Duration
	updates chan *Config
	log     *zap.SugaredLogger

	mu       sync.Mutex
	lastHash [32]byte
}

func NewWatcher(path string, delay time.Duration, log *zap.SugaredLogger) (*Watcher, error) {
	path = filepath.Clean(path)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config file watcher: %w", err)
	}

	// editors replace the file, so watch the directory
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("add config directory to watcher: %w", err)
	}

	w := &Watcher{
		path:    path,
		fsw:     fsw,
		delay:   delay,
		updates: make(chan *Config, 1),
		log:     log.Named("config"),
	}
	if data, err := os.ReadFile(path); err == nil {
		w.lastHash = sha256.Sum256(data)
	}

	return w, nil
}

func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Run watches until ctx is done and closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.log.Errorw("close config file watcher", "error", err)
		}
	}()

	debounced := debounce.New(w.delay)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.log.Debugw("config file changed", "op", event.Op.String())
				debounced(func() { w.reload(ctx) })
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("config watcher: %w", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Debugw("read changed config", "error", err)
		return
	}

	hash := sha256.Sum256(data)
	if hash == w.lastHash {
		w.log.Debug("config content unchanged")
		return
	}

	cfg, err := Parse(data)
	if err != nil {
		w.log.Warnw("ignoring invalid config change", "path", w.path, "error", err)
		return
	}
	cfg.path = w.path
	w.lastHash = hash

	// only the newest version matters
	select {
	case <-w.updates:
	default:
	}

	select {
	case w.updates <- cfg:
		w.log.Infow("config reloaded", "keyboards", len(cfg.Keyboards))
	case <-ctx.Done():
	}
}
