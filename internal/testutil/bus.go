package testutil

import (
	"context"
	"sync"

	"github.com/HerbHall/newslens/internal/event"
)

// Compile-time interface check.
var _ event.Publisher = (*RecordingBus)(nil)

// RecordingBus is a thread-safe publisher that records all published
// events for later inspection.
type RecordingBus struct {
	mu     sync.Mutex
	events []event.Event
}

// NewRecordingBus returns an empty RecordingBus.
func NewRecordingBus() *RecordingBus {
	return &RecordingBus{}
}

// Publish records an event synchronously.
func (b *RecordingBus) Publish(_ context.Context, e event.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

// Events returns a copy of all recorded events.
func (b *RecordingBus) Events() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Topics returns the topics of the recorded events in publish order.
func (b *RecordingBus) Topics() []string {
	events := b.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Topic
	}
	return out
}
