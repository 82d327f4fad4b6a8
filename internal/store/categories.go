package store

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"plancal/internal/model"
)

// CategoryStore holds the mutable category set. Deleting a category never
// touches activities that reference it.
type CategoryStore struct {
	mu    sync.RWMutex
	items []model.Category
}

func NewCategoryStore() *CategoryStore {
	return &CategoryStore{}
}

func (s *CategoryStore) Seed(categories []model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.Clone(categories)
}

func (s *CategoryStore) List() []model.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *CategoryStore) Get(id string) (model.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.find(id)
	if i < 0 {
		return model.Category{}, false
	}
	return s.items[i], true
}

// Put creates c, or updates the category with the same id. An empty id is
// assigned a fresh one.
func (s *CategoryStore) Put(c model.Category) (model.Category, error) {
	if err := c.Validate(); err != nil {
		return model.Category{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(c.ID); i >= 0 {
		s.items[i] = c
		return c, nil
	}
	s.items = append(s.items, c)
	return c, nil
}

// Update changes an existing category and fails with ErrNotFound otherwise.
func (s *CategoryStore) Update(id string, c model.Category) (model.Category, error) {
	c.ID = id
	if err := c.Validate(); err != nil {
		return model.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return model.Category{}, fmt.Errorf("category %q: %w", id, ErrNotFound)
	}
	s.items[i] = c
	return c, nil
}

// Delete removes id; unknown ids are ignored.
func (s *CategoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.DeleteFunc(s.items, func(c model.Category) bool { return c.ID == id })
}

func (s *CategoryStore) find(id string) int {
	return slices.IndexFunc(s.items, func(c model.Category) bool { return c.ID == id })
}
