package keybswitch

import (
	"context"
	"sync"
	"time"
)

// fakeSource hands out one batch of events per WaitReady call and reports
// present as the attached devices.
type fakeSource struct {
	batches      [][]DeviceEvent
	present      []DeviceID
	subscribeErr error
	waitErr      error
	enumerateErr error

	subscribes   int
	enumerations int
	closed       int
}

func (f *fakeSource) Subscribe(_ context.Context) (Subscription, error) {
	f.subscribes++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return &fakeSubscription{src: f}, nil
}

func (f *fakeSource) EnumeratePresent(_ context.Context) ([]DeviceID, error) {
	f.enumerations++
	if f.enumerateErr != nil {
		return nil, f.enumerateErr
	}
	return f.present, nil
}

func (f *fakeSource) push(events ...DeviceEvent) {
	f.batches = append(f.batches, events)
}

type fakeSubscription struct {
	src     *fakeSource
	pending []DeviceEvent
}

func (s *fakeSubscription) WaitReady(ctx context.Context, timeout time.Duration) (bool, error) {
	if err := s.src.waitErr; err != nil {
		s.src.waitErr = nil
		return false, err
	}
	if len(s.src.batches) == 0 {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(timeout):
			return false, nil
		}
	}
	s.pending = s.src.batches[0]
	s.src.batches = s.src.batches[1:]
	return len(s.pending) > 0, nil
}

func (s *fakeSubscription) Drain() []DeviceEvent {
	out := s.pending
	s.pending = nil
	return out
}

func (s *fakeSubscription) Close() error {
	s.src.closed++
	return nil
}

type recordingApplier struct {
	mu      sync.Mutex
	applied []Layout
	err     error
}

func (r *recordingApplier) Apply(_ context.Context, layout Layout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, layout)
	return r.err
}

func (r *recordingApplier) calls() []Layout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Layout(nil), r.applied...)
}

type sliceJournal struct {
	entries []Transition
	err     error
}

func (j *sliceJournal) Record(_ context.Context, t Transition) error {
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, t)
	return nil
}

func (j *sliceJournal) Recent(_ context.Context, limit int) ([]Transition, error) {
	var out []Transition
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}

func add(vendor, model string) DeviceEvent {
	return DeviceEvent{DeviceID: DeviceID{VendorID: vendor, ModelID: model}, Action: ActionAdd}
}

func remove(vendor, model string) DeviceEvent {
	return DeviceEvent{DeviceID: DeviceID{VendorID: vendor, ModelID: model}, Action: ActionRemove}
}
