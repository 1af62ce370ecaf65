package keybswitch

import (
	"fmt"
	"time"
)

// KeyboardSpec is one configured keyboard model.
type KeyboardSpec struct {
	Name     string
	VendorID string
	ModelID  string
}

// DeviceID holds the udev ID_VENDOR_ID and ID_MODEL_ID properties of a
// device. An empty field means the property was absent.
type DeviceID struct {
	VendorID string
	ModelID  string
}

func (d DeviceID) Key() PresenceKey {
	return PresenceKey(d.VendorID + ":" + d.ModelID)
}

func (d DeviceID) String() string {
	return string(d.Key())
}

type Action int

const (
	ActionOther Action = iota
	ActionAdd
	ActionRemove
)

// ParseAction normalizes a udev action string.
func ParseAction(action string) Action {
	switch action {
	case "add":
		return ActionAdd
	case "remove":
		return ActionRemove
	default:
		return ActionOther
	}
}

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	default:
		return "other"
	}
}

type DeviceEvent struct {
	DeviceID
	Action  Action
	Syspath string
}

type Layout struct {
	Code    string
	Variant string
}

func (l Layout) String() string {
	if l.Variant == "" {
		return l.Code
	}
	return fmt.Sprintf("%s(%s)", l.Code, l.Variant)
}

// Settings is the part of the configuration the switcher acts on. A new
// Settings value replaces the old one wholesale.
type Settings struct {
	Catalog      Catalog
	Connected    Layout
	Disconnected Layout
}

type Direction string

const (
	DirectionConnect    Direction = "connect"
	DirectionDisconnect Direction = "disconnect"
	DirectionStartup    Direction = "startup"
)

// Transition is a layout switch the switcher attempted. Err is empty when the
// layout was applied successfully.
type Transition struct {
	At        time.Time
	Direction Direction
	Keyboard  string
	Layout    Layout
	Err       string
}
