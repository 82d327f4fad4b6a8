package view

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"plancal/internal/model"
	"plancal/internal/recur"
)

// Granularity selects the calendar view a window is computed for.
type Granularity string

const (
	Day    Granularity = "day"
	Week   Granularity = "week"
	Month  Granularity = "month"
	Agenda Granularity = "agenda"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Day, Week, Month, Agenda:
		return g, nil
	case "":
		return Week, nil
	default:
		return "", fmt.Errorf("%w: unknown view %q", model.ErrInvalid, s)
	}
}

// Window returns the inclusive [start, end] range shown by g around anchor,
// in anchor's location. Ends are the last nanosecond of the final day.
//
//   - day: the anchor's calendar day
//   - week: weekStart on or before the anchor through six days later
//   - month, agenda: first through last day of the anchor's month
func Window(g Granularity, anchor time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	day := startOfDay(anchor)
	switch g {
	case Day:
		return day, endOfDay(day)
	case Week:
		offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
		start := day.AddDate(0, 0, -offset)
		return start, endOfDay(start.AddDate(0, 0, 6))
	default:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		last := start.AddDate(0, 1, -1)
		return start, endOfDay(last)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// ActivitySource supplies the current template set.
type ActivitySource interface {
	List() []model.Activity
}

// CategorySource supplies the current category set.
type CategorySource interface {
	List() []model.Category
}

// Entry is a display-ready occurrence with its category resolved.
type Entry struct {
	model.Occurrence
	Category model.Category `json:"category"`
	AllDay   bool           `json:"allDay"`
}

// Projection is the result of projecting one view.
type Projection struct {
	Granularity Granularity `json:"view"`
	RangeStart  time.Time   `json:"rangeStart"`
	RangeEnd    time.Time   `json:"rangeEnd"`
	Entries     []Entry     `json:"entries"`
	Truncated   []string    `json:"truncated,omitempty"`
}

// Projector turns a view request into display-ready entries. It holds no
// state of its own; every call re-reads both sources and re-expands.
type Projector struct {
	activities     ActivitySource
	categories     CategorySource
	weekStart      time.Weekday
	maxOccurrences int
}

type Option func(*Projector)

func WithWeekStart(d time.Weekday) Option {
	return func(p *Projector) { p.weekStart = d }
}

func WithMaxOccurrences(n int) Option {
	return func(p *Projector) { p.maxOccurrences = n }
}

func NewProjector(activities ActivitySource, categories CategorySource, opts ...Option) *Projector {
	p := &Projector{
		activities: activities,
		categories: categories,
		weekStart:  time.Sunday,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Projector) WeekStart() time.Weekday { return p.weekStart }

// Project computes the window for g and anchor, expands the current
// templates against it and resolves categories. Entries are ordered by
// start; ties keep expansion order.
func (p *Projector) Project(g Granularity, anchor time.Time) Projection {
	start, end := Window(g, anchor, p.weekStart)

	res := recur.Expand(p.activities.List(), recur.ExpandConfig{
		RangeStart:                start,
		RangeEnd:                  end,
		MaxOccurrencesPerActivity: p.maxOccurrences,
	})

	byID := make(map[string]model.Category)
	for _, c := range p.categories.List() {
		byID[c.ID] = c
	}

	entries := make([]Entry, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		entries = append(entries, Entry{
			Occurrence: occ,
			Category:   resolve(byID, occ.CategoryID),
		})
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.Start.Compare(b.Start)
	})

	return Projection{
		Granularity: g,
		RangeStart:  start,
		RangeEnd:    end,
		Entries:     entries,
		Truncated:   res.Truncated,
	}
}

func resolve(byID map[string]model.Category, id string) model.Category {
	if id == "" {
		return model.Uncategorized()
	}
	if c, ok := byID[id]; ok {
		return c
	}
	return model.Uncategorized()
}
