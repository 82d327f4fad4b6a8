package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plancal/internal/model"
	"plancal/internal/seed"
	"plancal/internal/store"
)

func TestParseGranularity(t *testing.T) {
	for in, want := range map[string]Granularity{
		"day": Day, "WEEK": Week, " month ": Month, "agenda": Agenda, "": Week,
	} {
		got, err := ParseGranularity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseGranularity("year")
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestWindow(t *testing.T) {
	anchor := time.Date(2025, 5, 13, 15, 42, 0, 0, time.UTC) // Tuesday

	cases := []struct {
		g         Granularity
		weekStart time.Weekday
		start     time.Time
		end       time.Time
	}{
		{Day, time.Sunday, time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC), time.Date(2025, 5, 13, 23, 59, 59, 999999999, time.UTC)},
		{Week, time.Sunday, time.Date(2025, 5, 11, 0, 0, 0, 0, time.UTC), time.Date(2025, 5, 17, 23, 59, 59, 999999999, time.UTC)},
		{Week, time.Monday, time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC), time.Date(2025, 5, 18, 23, 59, 59, 999999999, time.UTC)},
		{Month, time.Sunday, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 5, 31, 23, 59, 59, 999999999, time.UTC)},
		{Agenda, time.Sunday, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 5, 31, 23, 59, 59, 999999999, time.UTC)},
	}
	for _, tc := range cases {
		start, end := Window(tc.g, anchor, tc.weekStart)
		assert.Equal(t, tc.start, start, "%s/%s", tc.g, tc.weekStart)
		assert.Equal(t, tc.end, end, "%s/%s", tc.g, tc.weekStart)
	}

	// Anchor on the week start itself, and a leap-year February.
	start, end := Window(Week, time.Date(2025, 5, 11, 9, 0, 0, 0, time.UTC), time.Sunday)
	assert.Equal(t, time.Date(2025, 5, 11, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 17, end.Day())

	start, end = Window(Month, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), time.Sunday)
	assert.Equal(t, 1, start.Day())
	assert.Equal(t, 29, end.Day())
}

func newSeeded(t *testing.T) (*store.ActivityStore, *store.CategoryStore) {
	t.Helper()
	acts := store.NewActivityStore()
	acts.Seed(seed.Activities(time.UTC))
	cats := store.NewCategoryStore()
	cats.Seed(seed.Categories())
	return acts, cats
}

func TestProjectSampleWeek(t *testing.T) {
	acts, cats := newSeeded(t)
	p := NewProjector(acts, cats)

	proj := p.Project(Week, time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, Week, proj.Granularity)
	assert.Equal(t, time.Date(2025, 5, 11, 0, 0, 0, 0, time.UTC), proj.RangeStart)
	require.Len(t, proj.Entries, 13)

	for i := 1; i < len(proj.Entries); i++ {
		assert.False(t, proj.Entries[i].Start.Before(proj.Entries[i-1].Start), "entries must be ordered by start")
	}

	first := proj.Entries[0]
	assert.Equal(t, "AI Course", first.Title)
	assert.Equal(t, "Study", first.Category.Name)
	assert.Equal(t, "#f59e0b", first.Category.Color)
	assert.False(t, first.AllDay)
}

func TestProjectDeletedCategoryFallsBack(t *testing.T) {
	acts, cats := newSeeded(t)
	p := NewProjector(acts, cats)

	cats.Delete("social")

	a, err := acts.Get("8")
	require.NoError(t, err)
	assert.Equal(t, "social", a.CategoryID)

	proj := p.Project(Day, time.Date(2025, 5, 16, 12, 0, 0, 0, time.UTC))
	var dinner *Entry
	for i := range proj.Entries {
		if proj.Entries[i].OriginalID == "8" {
			dinner = &proj.Entries[i]
		}
	}
	require.NotNil(t, dinner)
	assert.Equal(t, "social", dinner.CategoryID)
	assert.Equal(t, "No Category", dinner.Category.Name)
	assert.Equal(t, "#6b7280", dinner.Category.Color)
	assert.Empty(t, dinner.Category.ID)
}

func TestProjectReflectsStoreChanges(t *testing.T) {
	acts, cats := newSeeded(t)
	p := NewProjector(acts, cats, WithWeekStart(time.Monday))
	anchor := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

	before := p.Project(Day, anchor)

	acts.Delete("1")
	after := p.Project(Day, anchor)
	assert.Len(t, after.Entries, len(before.Entries)-1)

	start := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	_, err := acts.Create(model.Activity{Title: "Lunch", Start: start, End: start.Add(time.Hour), CategoryID: "ghost"})
	require.NoError(t, err)

	again := p.Project(Day, anchor)
	assert.Len(t, again.Entries, len(before.Entries))
	for _, e := range again.Entries {
		if e.Title == "Lunch" {
			assert.Equal(t, "No Category", e.Category.Name)
		}
	}
}

func TestProjectMonthlyOn14th(t *testing.T) {
	acts, cats := newSeeded(t)
	p := NewProjector(acts, cats)

	var calls []Entry
	for _, e := range p.Project(Month, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)).Entries {
		if e.OriginalID == "3" {
			calls = append(calls, e)
		}
	}
	assert.Empty(t, calls, "client call starts in May")

	for _, e := range p.Project(Agenda, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)).Entries {
		if e.OriginalID == "3" {
			calls = append(calls, e)
		}
	}
	require.Len(t, calls, 1)
	assert.Equal(t, time.Date(2025, 7, 14, 11, 0, 0, 0, time.UTC), calls[0].Start)
}
