// Package memory holds an in-memory event log for tests and dev runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/modkit/mailhub/internal/mailbox/model"
	"github.com/modkit/mailhub/internal/mailbox/store"
)

type EventStore struct {
	mu     sync.Mutex
	events []model.Event
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) WriteEvent(_ context.Context, ev model.Event) error {
	if ev.Kind == model.KindEventHistory {
		return nil
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *EventStore) AllEvents(_ context.Context) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	// Stable keeps append order for equal timestamps, matching the rowid
	// tiebreak in the SQLite store.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (s *EventStore) LatestMailStatus(_ context.Context) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	var latest model.Event
	for _, ev := range s.events {
		if ev.Kind != model.KindMailDelivered && ev.Kind != model.KindMailPickedUp {
			continue
		}
		if !found || ev.Timestamp >= latest.Timestamp {
			latest = ev
			found = true
		}
	}
	if !found {
		return model.Event{}, store.ErrMailStatusNotFound
	}
	return latest, nil
}

func (s *EventStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	return nil
}

// Events returns a copy of the log in append order.  Test-only helper.
func (s *EventStore) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

var _ store.EventStore = (*EventStore)(nil)
