package analytics

import (
	"context"
	"sync"
)

// MemorySink keeps events in memory (dev/test use).
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
	keys   map[string]struct{}
}

func NewMemorySink() *MemorySink {
	return &MemorySink{keys: make(map[string]struct{})}
}

func (s *MemorySink) Log(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.SourceEventKey != "" {
		if _, dup := s.keys[ev.SourceEventKey]; dup {
			return nil
		}
		s.keys[ev.SourceEventKey] = struct{}{}
	}
	s.events = append(s.events, ev)
	return nil
}

// Events returns the stored events, optionally only those with the given names.
func (s *MemorySink) Events(names ...string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := make(map[string]bool, len(names))
	for _, n := range names {
		filter[n] = true
	}

	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if len(names) > 0 && !filter[ev.Name] {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (s *MemorySink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
	s.keys = make(map[string]struct{})
}
