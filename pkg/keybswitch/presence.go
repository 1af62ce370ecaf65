package keybswitch

import "sort"

// PresenceKey identifies a vendor/model pair. Two events for the same pair
// always produce the same key.
type PresenceKey string

// PresenceSet records the configured keyboards believed to be attached. It is
// not safe for concurrent use.
type PresenceSet struct {
	keys map[PresenceKey]struct{}
}

func NewPresenceSet() *PresenceSet {
	return &PresenceSet{keys: make(map[PresenceKey]struct{})}
}

func (p *PresenceSet) MarkPresent(key PresenceKey) {
	p.keys[key] = struct{}{}
}

func (p *PresenceSet) Remove(key PresenceKey) {
	delete(p.keys, key)
}

func (p *PresenceSet) Contains(key PresenceKey) bool {
	_, ok := p.keys[key]
	return ok
}

func (p *PresenceSet) IsEmpty() bool {
	return len(p.keys) == 0
}

func (p *PresenceSet) Len() int {
	return len(p.keys)
}

// Reconcile replaces the contents of the set with observed.
func (p *PresenceSet) Reconcile(observed []PresenceKey) {
	keys := make(map[PresenceKey]struct{}, len(observed))
	for _, k := range observed {
		keys[k] = struct{}{}
	}
	p.keys = keys
}

// Retain drops every key that is not in observed. It never adds keys.
func (p *PresenceSet) Retain(observed []PresenceKey) {
	seen := make(map[PresenceKey]struct{}, len(observed))
	for _, k := range observed {
		seen[k] = struct{}{}
	}
	for k := range p.keys {
		if _, ok := seen[k]; !ok {
			delete(p.keys, k)
		}
	}
}

// Keys returns the keys in sorted order.
func (p *PresenceSet) Keys() []PresenceKey {
	out := make([]PresenceKey, 0, len(p.keys))
	for k := range p.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
