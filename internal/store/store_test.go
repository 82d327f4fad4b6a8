package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plancal/internal/model"
)

func sample(title string, start time.Time) model.Activity {
	return model.Activity{Title: title, Start: start, End: start.Add(time.Hour)}
}

func TestActivityStoreCreateAssignsID(t *testing.T) {
	s := NewActivityStore()
	start := time.Date(2025, 5, 13, 10, 0, 0, 0, time.UTC)

	created, err := s.Create(sample("Team Meeting", start))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	kept, err := s.Create(model.Activity{ID: "fixed", Title: "x", Start: start, End: start.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, "fixed", kept.ID)

	_, err = s.Create(model.Activity{ID: "fixed", Title: "y", Start: start, End: start.Add(time.Minute)})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestActivityStoreCreateValidates(t *testing.T) {
	s := NewActivityStore()
	start := time.Date(2025, 5, 13, 10, 0, 0, 0, time.UTC)

	_, err := s.Create(model.Activity{Start: start, End: start.Add(time.Hour)})
	assert.ErrorIs(t, err, model.ErrInvalid)

	_, err = s.Create(model.Activity{Title: "backwards", Start: start, End: start.Add(-time.Hour)})
	assert.ErrorIs(t, err, model.ErrInvalid)

	_, err = s.Create(model.Activity{Title: "zero length", Start: start, End: start})
	assert.ErrorIs(t, err, model.ErrInvalid)

	assert.Empty(t, s.List())
}

func TestActivityStoreUpdate(t *testing.T) {
	s := NewActivityStore()
	start := time.Date(2025, 5, 13, 10, 0, 0, 0, time.UTC)
	created, err := s.Create(sample("Team Meeting", start))
	require.NoError(t, err)

	changed := created
	changed.ID = "ignored"
	changed.Title = "Team Sync"
	changed.End = start.Add(90 * time.Minute)

	updated, err := s.Update(created.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Team Sync", updated.Title)

	_, err = s.Update("missing", changed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivityStoreDeleteIsIdempotent(t *testing.T) {
	s := NewActivityStore()
	start := time.Date(2025, 5, 13, 10, 0, 0, 0, time.UTC)
	a, _ := s.Create(sample("a", start))
	b, _ := s.Create(sample("b", start))
	c, _ := s.Create(sample("c", start))

	s.Delete(b.ID)
	s.Delete(b.ID)
	s.Delete("never-existed")

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, c.ID, list[1].ID)

	_, err := s.Get(b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(c.ID)
	assert.NoError(t, err)
}

func TestActivityStoreReturnsCopies(t *testing.T) {
	s := NewActivityStore()
	start := time.Date(2025, 5, 13, 10, 0, 0, 0, time.UTC)
	u := start.AddDate(0, 3, 0)
	a := sample("weekly", start)
	a.Recurring = true
	a.Recurrence = &model.Recurrence{Pattern: model.Weekly{Days: model.NewWeekdaySet(time.Tuesday)}, Until: &u}

	created, err := s.Create(a)
	require.NoError(t, err)

	list := s.List()
	*list[0].Recurrence.Until = start
	list[0].Recurrence.Pattern = model.Daily{}

	got, _ := s.Get(created.ID)
	assert.True(t, got.Recurrence.Until.Equal(u))
	assert.Equal(t, model.FrequencyWeekly, got.Recurrence.Pattern.Frequency())
}

func TestActivityStoreReplaceSource(t *testing.T) {
	s := NewActivityStore()
	start := time.Date(2025, 5, 13, 10, 0, 0, 0, time.UTC)
	local, _ := s.Create(sample("local", start))

	s.ReplaceSource("team", []model.Activity{
		{ID: "team-1", Title: "standup", Start: start, End: start.Add(15 * time.Minute)},
		{ID: "team-2", Title: "retro", Start: start, End: start.Add(time.Hour)},
	})
	require.Len(t, s.List(), 3)

	s.ReplaceSource("team", []model.Activity{
		{ID: "team-3", Title: "planning", Start: start, End: start.Add(time.Hour)},
	})

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, local.ID, list[0].ID)
	assert.Equal(t, "team-3", list[1].ID)
	assert.Equal(t, "team", list[1].Source)
}

func TestActivityStoreUpcoming(t *testing.T) {
	s := NewActivityStore()
	now := time.Date(2025, 5, 13, 12, 0, 0, 0, time.UTC)

	for _, a := range []model.Activity{
		{UserID: "user1", Title: "later", Start: now.Add(48 * time.Hour), End: now.Add(49 * time.Hour)},
		{UserID: "user1", Title: "past", Start: now.Add(-48 * time.Hour), End: now.Add(-47 * time.Hour)},
		{UserID: "user1", Title: "soon", Start: now.Add(2 * time.Hour), End: now.Add(3 * time.Hour)},
		{UserID: "user1", Title: "now", Start: now, End: now.Add(time.Hour)},
		{UserID: "user2", Title: "other user", Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)},
	} {
		_, err := s.Create(a)
		require.NoError(t, err)
	}

	up := s.Upcoming("user1", now)
	require.Len(t, up, 2)
	assert.Equal(t, "soon", up[0].Title)
	assert.Equal(t, "later", up[1].Title)

	assert.Empty(t, s.Upcoming("nobody", now))
}

func TestActivityStoreConcurrentAccess(t *testing.T) {
	s := NewActivityStore()
	start := time.Date(2025, 5, 13, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a, err := s.Create(sample("x", start))
			if err == nil {
				s.Delete(a.ID)
			}
		}()
		go func() {
			defer wg.Done()
			_ = s.List()
		}()
	}
	wg.Wait()
	assert.Empty(t, s.List())
}

func TestCategoryStore(t *testing.T) {
	s := NewCategoryStore()
	s.Seed(model.DefaultCategories())
	require.Len(t, s.List(), 8)

	c, err := s.Put(model.Category{Name: "Travel", Color: "#0ea5e9"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	_, err = s.Put(model.Category{Name: "no color"})
	assert.ErrorIs(t, err, model.ErrInvalid)

	updated, err := s.Update("work", model.Category{Name: "Job", Color: "#000000"})
	require.NoError(t, err)
	assert.Equal(t, "work", updated.ID)
	got, ok := s.Get("work")
	require.True(t, ok)
	assert.Equal(t, "Job", got.Name)

	_, err = s.Update("missing", model.Category{Name: "x", Color: "#fff"})
	assert.ErrorIs(t, err, ErrNotFound)

	s.Delete("work")
	s.Delete("work")
	_, ok = s.Get("work")
	assert.False(t, ok)
	assert.Len(t, s.List(), 8)
}
