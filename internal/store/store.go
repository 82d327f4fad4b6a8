package store

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// ActivityStore is the in-memory owner of the activity template set. It is
// safe for concurrent use; every read returns copies.
type ActivityStore struct {
	mu    sync.RWMutex
	items []model.Activity
	index map[string]int
}

func NewActivityStore() *ActivityStore {
	return &ActivityStore{index: make(map[string]int)}
}

// Seed replaces the whole template set. It is meant to be called once by
// the host at startup.
func (s *ActivityStore) Seed(activities []model.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]model.Activity, 0, len(activities))
	s.index = make(map[string]int, len(activities))
	for _, a := range activities {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if _, dup := s.index[a.ID]; dup {
			appLog.Warn("store: duplicate seed activity skipped", "id", a.ID)
			continue
		}
		s.index[a.ID] = len(s.items)
		s.items = append(s.items, clone(a))
	}
	appLog.Info("store: seeded activities", "count", len(s.items))
}

// Create validates a and stores it, assigning an id when a.ID is empty.
func (s *ActivityStore) Create(a model.Activity) (model.Activity, error) {
	if err := a.Validate(); err != nil {
		return model.Activity{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[a.ID]; ok {
		return model.Activity{}, fmt.Errorf("activity %q: %w", a.ID, ErrConflict)
	}
	s.index[a.ID] = len(s.items)
	s.items = append(s.items, clone(a))
	return clone(a), nil
}

func (s *ActivityStore) Get(id string) (model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return model.Activity{}, fmt.Errorf("activity %q: %w", id, ErrNotFound)
	}
	return clone(s.items[i]), nil
}

// Update replaces the activity stored under id. The stored identity always
// wins over a.ID.
func (s *ActivityStore) Update(id string, a model.Activity) (model.Activity, error) {
	a.ID = id
	if err := a.Validate(); err != nil {
		return model.Activity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return model.Activity{}, fmt.Errorf("activity %q: %w", id, ErrNotFound)
	}
	s.items[i] = clone(a)
	return clone(a), nil
}

// Delete removes id. Deleting an unknown id is a no-op.
func (s *ActivityStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.reindex()
}

// List returns all templates in insertion order.
func (s *ActivityStore) List() []model.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Activity, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, clone(a))
	}
	return out
}

// ReplaceSource swaps every activity imported from source for activities.
// Activities from other sources, including local ones, are untouched.
func (s *ActivityStore) ReplaceSource(source string, activities []model.Activity) {
	if source == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = slices.DeleteFunc(s.items, func(a model.Activity) bool {
		return a.Source == source
	})
	s.reindex()

	for _, a := range activities {
		a.Source = source
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if _, dup := s.index[a.ID]; dup {
			appLog.Warn("store: duplicate imported activity skipped", "id", a.ID, "source", source)
			continue
		}
		s.index[a.ID] = len(s.items)
		s.items = append(s.items, clone(a))
	}
}

// Upcoming returns the templates of userID starting strictly after now,
// earliest first.
func (s *ActivityStore) Upcoming(userID string, now time.Time) []model.Activity {
	s.mu.RLock()
	out := make([]model.Activity, 0)
	for _, a := range s.items {
		if a.UserID == userID && a.Start.After(now) {
			out = append(out, clone(a))
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b model.Activity) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

func (s *ActivityStore) reindex() {
	s.index = make(map[string]int, len(s.items))
	for i, a := range s.items {
		s.index[a.ID] = i
	}
}

// clone copies the pointer fields so callers never share rule state with
// the store.
func clone(a model.Activity) model.Activity {
	if a.Recurrence != nil {
		r := *a.Recurrence
		if r.Until != nil {
			u := *r.Until
			r.Until = &u
		}
		a.Recurrence = &r
	}
	return a
}
