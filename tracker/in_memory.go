package tracker

import (
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/dialogmesh/core"
)

// InMemoryStore is a volatile TrackerStore implementation storing event logs
// in a process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Event slices are copied on read and write
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]core.Event
	seen   map[string]struct{}
}

var (
	_ core.TrackerStore     = (*InMemoryStore)(nil)
	_ core.SessionLoader    = (*InMemoryStore)(nil)
	_ core.ExistenceChecker = (*InMemoryStore)(nil)
)

// NewInMemoryStore constructs an empty in‑memory tracker store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]core.Event), seen: make(map[string]struct{})}
}

// Load returns a copy of the conversation's events. Unknown conversations
// yield an empty slice.
func (s *InMemoryStore) Load(_ context.Context, conversationID string) ([]core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events, ok := s.events[conversationID]
	if !ok {
		return []core.Event{}, nil
	}
	return slices.Clone(events), nil
}

// Append adds events to the conversation log. A batch whose first event id
// was already stored is ignored.
func (s *InMemoryStore) Append(_ context.Context, conversationID string, events []core.Event) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[events[0].ID]; dup && events[0].ID != "" {
		return nil
	}
	for _, ev := range events {
		if ev.ID != "" {
			s.seen[ev.ID] = struct{}{}
		}
	}
	s.events[conversationID] = append(s.events[conversationID], events...)
	return nil
}

// Keys returns all known conversation ids in lexical order.
func (s *InMemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.events))
	for k := range s.events {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// LoadSession returns a copy of the events since the conversation's last
// SessionStarted event.
func (s *InMemoryStore) LoadSession(_ context.Context, conversationID string) ([]core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[conversationID]
	start := 0
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == core.EventSessionStarted {
			start = i
			break
		}
	}
	out := make([]core.Event, len(events)-start)
	copy(out, events[start:])
	return out, nil
}

// Exists reports whether the conversation has events.
func (s *InMemoryStore) Exists(_ context.Context, conversationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events[conversationID]) > 0, nil
}
