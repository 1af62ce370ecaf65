package keybswitch

import (
	"context"
	"time"
)

// EventSource is the host's USB subsystem: a live notification stream plus an
// on-demand listing of what is attached right now.
type EventSource interface {
	Subscribe(ctx context.Context) (Subscription, error)
	EnumeratePresent(ctx context.Context) ([]DeviceID, error)
}

// Subscription is a live stream of device notifications.
type Subscription interface {
	// WaitReady blocks for at most timeout until at least one event can be
	// drained. It returns false and a nil error on timeout.
	WaitReady(ctx context.Context, timeout time.Duration) (bool, error)
	// Drain returns every event that is available without blocking.
	Drain() []DeviceEvent
	Close() error
}

type LayoutApplier interface {
	Apply(ctx context.Context, layout Layout) error
}

type Journal interface {
	Record(ctx context.Context, t Transition) error
	// Recent returns at most limit transitions, newest first.
	Recent(ctx context.Context, limit int) ([]Transition, error)
}
