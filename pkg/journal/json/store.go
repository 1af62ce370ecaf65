package json

import (
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const DefaultCapacity = 1000

type entry struct {
	At        time.Time `json:"at"`
	Direction string    `json:"direction"`
	Keyboard  string    `json:"keyboard,omitempty"`
	Layout    string    `json:"layout"`
	Variant   string    `json:"variant"`
	Err       string    `json:"error,omitempty"`
}

// Journal keeps transitions in a JSON file which is rewritten on every
// record.
type Journal struct {
	entries  []entry
	file     *os.File
	lock     sync.Mutex
	capacity int
}

func NewJournal(filename string, capacity int) (*Journal, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	j := &Journal{
		file:     file,
		capacity: capacity,
	}

	if err := j.load(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("load: %w", err)
	}

	return j, nil
}

func (j *Journal) Close() error {
	return j.file.Close()
}

func (j *Journal) load() error {
	info, err := j.file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	if _, err := j.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek to start of file: %w", err)
	}

	if err := json.NewDecoder(j.file).Decode(&j.entries); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}

func (j *Journal) save() error {
	if _, err := j.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek to start of file: %w", err)
	}

	if err := j.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate file: %w", err)
	}

	enc := json.NewEncoder(j.file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j.entries); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return j.file.Sync()
}

func (j *Journal) Record(_ context.Context, t keybswitch.Transition) error {
	j.lock.Lock()
	defer j.lock.Unlock()

	j.entries = append(j.entries, entry{
		At:        t.At,
		Direction: string(t.Direction),
		Keyboard:  t.Keyboard,
		Layout:    t.Layout.Code,
		Variant:   t.Layout.Variant,
		Err:       t.Err,
	})
	if over := len(j.entries) - j.capacity; over > 0 {
		j.entries = append([]entry(nil), j.entries[over:]...)
	}

	return j.save()
}

func (j *Journal) Recent(_ context.Context, limit int) ([]keybswitch.Transition, error) {
	j.lock.Lock()
	defer j.lock.Unlock()

	var out []keybswitch.Transition
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := j.entries[i]
		out = append(out, keybswitch.Transition{
			At:        e.At,
			Direction: keybswitch.Direction(e.Direction),
			Keyboard:  e.Keyboard,
			Layout:    keybswitch.Layout{Code: e.Layout, Variant: e.Variant},
			Err:       e.Err,
		})
	}
	return out, nil
}
