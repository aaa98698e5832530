package audit

import (
	"context"
	"encoding/json"
	"sync"
)

// InMemorySink collects audit events for test assertions.
type InMemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemorySink constructs an empty sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Write(_ context.Context, _ []byte, value []byte) error {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything written so far.
func (s *InMemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Actions returns the recorded actions in write order.
func (s *InMemorySink) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, len(s.events))
	for i, e := range s.events {
		actions[i] = e.Action
	}
	return actions
}
