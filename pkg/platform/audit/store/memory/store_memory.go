package memory

import (
	"context"
	"sync"

	audit "landledger/pkg/platform/audit"
)

// InMemoryStore keeps audit events in memory for tests and the demo
// environment.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append stores the event.
func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all appended events.
func (s *InMemoryStore) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByAction returns events matching the given action.
func (s *InMemoryStore) ByAction(action string) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
