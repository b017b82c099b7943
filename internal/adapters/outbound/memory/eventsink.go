// eventsink.go provides an in-memory implementation of EventSink.
//
// This adapter stores all published stage events in memory. It provides
// helper methods for inspecting events during tests:
//   - GetEvents(): Returns all published events
//   - GetEventsByFlow(): Filters events by flow id
//   - SetOnPublish(): Register callback for event assertions
//
// All operations are thread-safe.
package memory

import (
	"context"
	"sync"

	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// Compile-time check that EventSink implements outbound.EventSink
var _ outbound.EventSink = (*EventSink)(nil)

// EventSink is an in-memory implementation of the EventSink port.
type EventSink struct {
	mu     sync.RWMutex
	events []outbound.StageEvent
	closed bool

	onPublish func(outbound.StageEvent)
}

// NewEventSink creates a new in-memory event sink.
func NewEventSink() *EventSink {
	return &EventSink{
		events: make([]outbound.StageEvent, 0),
	}
}

// Publish stores the event in memory. Events published after Close are dropped.
func (s *EventSink) Publish(ctx context.Context, event outbound.StageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.events = append(s.events, event)

	if s.onPublish != nil {
		s.onPublish(event)
	}

	return nil
}

// Close marks the sink as closed.
func (s *EventSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// GetEvents returns all published events.
func (s *EventSink) GetEvents() []outbound.StageEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]outbound.StageEvent, len(s.events))
	copy(result, s.events)
	return result
}

// GetEventsByFlow returns the events of one pipeline instance.
func (s *EventSink) GetEventsByFlow(flowID string) []outbound.StageEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]outbound.StageEvent, 0)
	for _, e := range s.events {
		if e.FlowID == flowID {
			result = append(result, e)
		}
	}
	return result
}

// SetOnPublish registers a callback invoked for each published event.
func (s *EventSink) SetOnPublish(fn func(outbound.StageEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPublish = fn
}

// Clear removes all stored events.
func (s *EventSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]outbound.StageEvent, 0)
}
