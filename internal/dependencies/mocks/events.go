package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/fairmatch/internal/events"
	"github.com/mcoot/fairmatch/internal/model"
)

// EventRecorder captures published events for assertions
type EventRecorder struct {
	mu     sync.Mutex
	events []model.Event
}

// Ensure EventRecorder implements Publisher and Sink
var (
	_ events.Publisher = (*EventRecorder)(nil)
	_ events.Sink      = (*EventRecorder)(nil)
)

// NewEventRecorder creates an empty EventRecorder
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Publish records the event
func (r *EventRecorder) Publish(ctx context.Context, event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Name identifies the recorder when used as a sink
func (r *EventRecorder) Name() string {
	return "recorder"
}

// Handle records the event as a sink
func (r *EventRecorder) Handle(ctx context.Context, event model.Event) error {
	r.Publish(ctx, event)
	return nil
}

// Events returns a copy of everything recorded so far
func (r *EventRecorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// OfType returns the recorded events of one type
func (r *EventRecorder) OfType(t model.EventType) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
