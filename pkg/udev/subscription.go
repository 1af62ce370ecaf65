package udev

import (
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"context"
	"github.com/benbjohnson/clock"
	"time"
)

// subscription buffers events read while waiting so that Drain returns them.
type subscription struct {
	events  <-chan keybswitch.DeviceEvent
	pending []keybswitch.DeviceEvent
	closed  bool
	cancel  context.CancelFunc
	clock   clock.Clock
}

func newSubscription(events <-chan keybswitch.DeviceEvent, cancel context.CancelFunc, clk clock.Clock) *subscription {
	return &subscription{
		events: events,
		cancel: cancel,
		clock:  clk,
	}
}

func (s *subscription) WaitReady(ctx context.Context, timeout time.Duration) (bool, error) {
	if len(s.pending) > 0 {
		return true, nil
	}
	if s.closed {
		return false, ErrSubscriptionClosed
	}

	timer := s.clock.Timer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			s.closed = true
			return false, ErrSubscriptionClosed
		}
		s.pending = append(s.pending, ev)
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

func (s *subscription) Drain() []keybswitch.DeviceEvent {
	out := s.pending
	s.pending = nil

	for !s.closed {
		select {
		case ev, ok := <-s.events:
			if !ok {
				s.closed = true
				break
			}
			out = append(out, ev)
		default:
			return out
		}
	}

	return out
}

func (s *subscription) Close() error {
	s.cancel()
	s.closed = true
	return nil
}
