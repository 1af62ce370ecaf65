// Package udev implements the keyboard event source on top of libudev.
package udev

import (
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"context"
	"errors"
	"fmt"
	"github.com/benbjohnson/clock"
	libudev "github.com/jochenvg/go-udev"
	"go.uber.org/zap"
)

const (
	usbSubsystem = "usb"
	netlinkGroup = "udev"

	PropVendorID = "ID_VENDOR_ID"
	PropModelID  = "ID_MODEL_ID"
	PropVendor   = "ID_VENDOR"
	PropModel    = "ID_MODEL"

	eventBuffer = 64
)

var (
	ErrSubscriptionClosed = errors.New("udev monitor closed")
	ErrNoMonitor          = errors.New("could not create udev netlink monitor")
)

// Device is a USB device found by enumeration.
type Device struct {
	keybswitch.DeviceID
	Vendor  string
	Model   string
	Syspath string
}

type Source struct {
	clock clock.Clock
	log   *zap.SugaredLogger
}

func NewSource(log *zap.SugaredLogger) *Source {
	return &Source{
		clock: clock.New(),
		log:   log.Named("udev"),
	}
}

func (s *Source) Subscribe(ctx context.Context) (keybswitch.Subscription, error) {
	var u libudev.Udev

	monitor := u.NewMonitorFromNetlink(netlinkGroup)
	if monitor == nil {
		return nil, ErrNoMonitor
	}

	if err := monitor.FilterAddMatchSubsystem(usbSubsystem); err != nil {
		return nil, fmt.Errorf("filter subsystem %q: %w", usbSubsystem, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	devices, err := monitor.DeviceChan(subCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start udev monitor: %w", err)
	}

	events := make(chan keybswitch.DeviceEvent, eventBuffer)
	go forward(subCtx, devices, events)

	return newSubscription(events, cancel, s.clock), nil
}

// forward converts devices until the monitor stops, then closes events.
func forward(ctx context.Context, devices <-chan *libudev.Device, events chan<- keybswitch.DeviceEvent) {
	defer close(events)

	for d := range devices {
		ev := keybswitch.DeviceEvent{
			DeviceID: keybswitch.DeviceID{
				VendorID: d.PropertyValue(PropVendorID),
				ModelID:  d.PropertyValue(PropModelID),
			},
			Action:  keybswitch.ParseAction(d.Action()),
			Syspath: d.Syspath(),
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Source) EnumeratePresent(ctx context.Context) ([]keybswitch.DeviceID, error) {
	devices, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]keybswitch.DeviceID, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.DeviceID)
	}
	return ids, nil
}

// List enumerates every device in the usb subsystem.
func (s *Source) List(_ context.Context) ([]Device, error) {
	var u libudev.Udev

	enumerate := u.NewEnumerate()
	if err := enumerate.AddMatchSubsystem(usbSubsystem); err != nil {
		return nil, fmt.Errorf("match subsystem %q: %w", usbSubsystem, err)
	}

	devices, err := enumerate.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, Device{
			DeviceID: keybswitch.DeviceID{
				VendorID: d.PropertyValue(PropVendorID),
				ModelID:  d.PropertyValue(PropModelID),
			},
			Vendor:  d.PropertyValue(PropVendor),
			Model:   d.PropertyValue(PropModel),
			Syspath: d.Syspath(),
		})
	}
	s.log.Debugw("enumerated usb devices", "count", len(out))

	return out, nil
}
