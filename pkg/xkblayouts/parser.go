// Package xkblayouts reads the XKB rules registry to check layout names.
package xkblayouts

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

const DefaultPath = "/usr/share/X11/xkb/rules/evdev.xml"

var (
	ErrUnknownLayout  = errors.New("unknown layout")
	ErrUnknownVariant = errors.New("unknown variant")
)

func Load(path string) (*Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

func Parse(r io.Reader) (*Registry, error) {
	registry := &Registry{}
	if err := xml.NewDecoder(r).Decode(registry); err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}

	return registry, nil
}

func (r *Registry) layout(name string) (Layout, bool) {
	for _, l := range r.LayoutList.Layout {
		if l.ConfigItem.Name == name {
			return l, true
		}
	}
	return Layout{}, false
}

// Validate checks that layout exists and, when variant is set, that it is one
// of the layout's variants.
func (r *Registry) Validate(layout, variant string) error {
	l, ok := r.layout(layout)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLayout, layout)
	}
	if variant == "" {
		return nil
	}

	for _, v := range l.VariantList.Variant {
		if v.ConfigItem.Name == variant {
			return nil
		}
	}

	return fmt.Errorf("%w: %q for layout %q", ErrUnknownVariant, variant, layout)
}

// PrettyName returns the human readable description of a layout or variant,
// or "" when the registry doesn't know it.
func (r *Registry) PrettyName(layout, variant string) string {
	l, ok := r.layout(layout)
	if !ok {
		return ""
	}
	if variant == "" {
		return l.ConfigItem.Description
	}

	for _, v := range l.VariantList.Variant {
		if v.ConfigItem.Name == variant {
			return v.ConfigItem.Description
		}
	}

	return ""
}
