package memory

import (
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"context"
	"sync"
)

const DefaultCapacity = 1000

// Journal keeps the most recent transitions in memory.
type Journal struct {
	mu       sync.Mutex
	entries  []keybswitch.Transition
	capacity int
}

func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{capacity: capacity}
}

func (j *Journal) Record(_ context.Context, t keybswitch.Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, t)
	if over := len(j.entries) - j.capacity; over > 0 {
		j.entries = append([]keybswitch.Transition(nil), j.entries[over:]...)
	}
	return nil
}

func (j *Journal) Recent(_ context.Context, limit int) ([]keybswitch.Transition, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]keybswitch.Transition, 0, min(limit, len(j.entries)))
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}
