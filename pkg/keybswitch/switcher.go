package keybswitch

import (
	"codeberg.org/miketth/keybswitch/pkg/metrics"
	"context"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"time"
)

const (
	DefaultPollInterval = 1000 * time.Millisecond
	DefaultSettleDelay  = 2 * time.Second
	DefaultBackoff      = 100 * time.Millisecond
)

type Timings struct {
	// PollInterval bounds the wait for device notifications between sweeps.
	PollInterval time.Duration
	// SettleDelay is slept after a keyboard is connected, before its layout is applied.
	SettleDelay time.Duration
	// Backoff is slept after the USB subsystem fails.
	Backoff time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		PollInterval: DefaultPollInterval,
		SettleDelay:  DefaultSettleDelay,
		Backoff:      DefaultBackoff,
	}
}

type Options struct {
	Settings Settings
	Source   EventSource
	Applier  LayoutApplier
	Timings  Timings
	Log      *zap.SugaredLogger

	// Optional.
	Journal     Journal
	Metrics     *metrics.Metrics
	Clock       clock.Clock
	Reloads     <-chan Settings
	SyncOnStart bool
}

// Switcher switches to the connected layout when a configured keyboard shows
// up and back to the disconnected layout once none of them are attached. All
// of its state is owned by the goroutine calling Run.
type Switcher struct {
	settings  Settings
	presence  *PresenceSet
	connected bool
	sub       Subscription

	source  EventSource
	applier LayoutApplier
	journal Journal
	metrics *metrics.Metrics
	clock   clock.Clock
	timings Timings
	reloads <-chan Settings
	sync    bool
	log     *zap.SugaredLogger
}

func NewSwitcher(opts Options) *Switcher {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Switcher{
		settings: opts.Settings,
		presence: NewPresenceSet(),
		source:   opts.Source,
		applier:  opts.Applier,
		journal:  opts.Journal,
		metrics:  opts.Metrics,
		clock:    clk,
		timings:  opts.Timings,
		reloads:  opts.Reloads,
		sync:     opts.SyncOnStart,
		log:      log.Named("switcher"),
	}
}

// Connected reports whether the connected layout is in force.
func (s *Switcher) Connected() bool {
	return s.connected
}

func (s *Switcher) Present() []PresenceKey {
	return s.presence.Keys()
}

// Run processes device notifications until ctx is done.
func (s *Switcher) Run(ctx context.Context) error {
	defer s.closeSubscription()

	s.log.Infow("watching for keyboards", "keyboards", len(s.settings.Catalog))
	if s.sync {
		s.syncPresent(ctx)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step(ctx)
	}
}

// Step runs a single iteration of the loop: wait for notifications, handle
// them, then confirm that a connected keyboard is still attached.
func (s *Switcher) Step(ctx context.Context) {
	s.applyReload()

	if s.sub == nil {
		sub, err := s.source.Subscribe(ctx)
		if err != nil {
			s.log.Errorw("subscribe to device events", "error", err)
			s.metrics.SourceError("subscribe")
			s.sleep(ctx, s.timings.Backoff)
			return
		}
		s.sub = sub
		s.log.Debug("monitoring for USB events")
	}

	ready, err := s.sub.WaitReady(ctx, s.timings.PollInterval)
	switch {
	case err != nil && ctx.Err() != nil:
		return
	case err != nil:
		s.log.Errorw("wait for device events", "error", err)
		s.metrics.SourceError("poll")
		s.closeSubscription()
		s.sleep(ctx, s.timings.Backoff)
	case ready:
		for _, ev := range s.sub.Drain() {
			s.handleEvent(ctx, ev)
		}
	}

	s.sweep(ctx)
}

func (s *Switcher) handleEvent(ctx context.Context, ev DeviceEvent) {
	s.metrics.DeviceEvent(ev.Action.String())
	s.log.Debugw("device event", "device", ev.DeviceID, "action", ev.Action, "syspath", ev.Syspath)

	kb, ok := s.settings.Catalog.Lookup(ev.VendorID, ev.ModelID)
	if !ok {
		return
	}
	key := ev.Key()

	switch ev.Action {
	case ActionAdd:
		if s.presence.Contains(key) {
			s.log.Debugw("keyboard already present", "keyboard", kb.Name, "key", key)
			return
		}

		s.log.Infow("keyboard connected", "keyboard", kb.Name, "key", key)
		if !s.sleep(ctx, s.timings.SettleDelay) {
			return
		}
		s.presence.MarkPresent(key)
		s.connected = true
		s.apply(ctx, DirectionConnect, kb.Name, s.settings.Connected)

	case ActionRemove:
		// the layout is only switched back once a sweep confirms nothing is left
		s.presence.Remove(key)
		s.log.Infow("keyboard removed", "keyboard", kb.Name, "key", key)
	}

	s.metrics.SetPresent(s.presence.Len())
}

func (s *Switcher) sweep(ctx context.Context) {
	if !s.connected || ctx.Err() != nil {
		return
	}

	s.metrics.Sweep()
	ids, err := s.source.EnumeratePresent(ctx)
	if err != nil {
		s.log.Warnw("enumerate USB devices", "error", err)
		s.metrics.SourceError("enumerate")
		return
	}

	// keys only enter the set through an add event, so a keyboard enumerated
	// before its add is drained still gets its settle delay and layout switch
	observed := s.settings.Catalog.Known(ids)
	s.presence.Retain(observed)
	s.metrics.SetPresent(s.presence.Len())
	if len(observed) > 0 {
		return
	}

	s.log.Info("all known keyboards disconnected")
	s.connected = false
	s.apply(ctx, DirectionDisconnect, "", s.settings.Disconnected)
}

func (s *Switcher) syncPresent(ctx context.Context) {
	ids, err := s.source.EnumeratePresent(ctx)
	if err != nil {
		s.log.Warnw("enumerate USB devices at startup", "error", err)
		s.metrics.SourceError("enumerate")
		return
	}

	observed := s.settings.Catalog.Known(ids)
	if len(observed) == 0 {
		s.log.Info("no known keyboards attached at startup")
		return
	}

	s.presence.Reconcile(observed)
	s.metrics.SetPresent(s.presence.Len())
	s.connected = true
	s.log.Infow("known keyboards attached at startup", "keys", s.presence.Keys())
	s.apply(ctx, DirectionStartup, "", s.settings.Connected)
}

// apply never rolls back state: a failed switch is logged and recorded.
func (s *Switcher) apply(ctx context.Context, direction Direction, keyboard string, layout Layout) {
	err := s.applier.Apply(ctx, layout)
	s.metrics.LayoutSwitch(string(direction), err)

	t := Transition{
		At:        s.clock.Now(),
		Direction: direction,
		Keyboard:  keyboard,
		Layout:    layout,
	}
	if err != nil {
		t.Err = err.Error()
		s.log.Errorw("switch keyboard layout", "layout", layout, "direction", direction, "error", err)
	} else {
		s.log.Infow("keyboard layout switched", "layout", layout, "direction", direction)
	}

	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, t); err != nil {
		s.log.Warnw("record transition", "error", err)
	}
}

func (s *Switcher) applyReload() {
	select {
	case settings, ok := <-s.reloads:
		if !ok {
			s.reloads = nil
			return
		}
		s.settings = settings

		var kept []PresenceKey
		for _, key := range s.presence.Keys() {
			if settings.Catalog.hasKey(key) {
				kept = append(kept, key)
			}
		}
		s.presence.Reconcile(kept)
		s.metrics.SetPresent(s.presence.Len())
		s.log.Infow("settings reloaded", "keyboards", len(settings.Catalog), "present", kept)
	default:
	}
}

// sleep waits for d and reports false if ctx ended first.
func (s *Switcher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := s.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Switcher) closeSubscription() {
	if s.sub == nil {
		return
	}
	if err := s.sub.Close(); err != nil {
		s.log.Warnw("close device subscription", "error", err)
	}
	s.sub = nil
}
