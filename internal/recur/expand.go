package recur

import (
	"errors"
	"time"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

const (
	defaultMaxOccurrencesPerActivity = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive query window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerActivity is a safety cap against runaway windows. If
	// zero, defaultMaxOccurrencesPerActivity is used.
	MaxOccurrencesPerActivity int
}

// ExpandResult wraps the expanded occurrences and the ids of activities
// that hit the cap.
type ExpandResult struct {
	Occurrences []model.Occurrence
	Truncated   []string
}

// Expand materializes the occurrences of activities that overlap
// [RangeStart, RangeEnd]. It has no side effects and never fails: malformed
// rules (a weekly rule without days, a recurring activity without a rule)
// contribute nothing.
//
// Occurrences are grouped by activity in input order; each group is in
// ascending start order. The same input always yields the same output.
func Expand(activities []model.Activity, cfg ExpandConfig) ExpandResult {
	result := ExpandResult{Occurrences: []model.Occurrence{}}

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result
	}
	if cfg.MaxOccurrencesPerActivity <= 0 {
		cfg.MaxOccurrencesPerActivity = defaultMaxOccurrencesPerActivity
	}

	for _, a := range activities {
		occ, hitCap := expandActivity(a, cfg)
		if hitCap {
			result.Truncated = append(result.Truncated, a.ID)
			appLog.Error("expand: truncated occurrences for activity due to cap",
				errors.New("max occurrences reached"),
				"activity_id", a.ID,
				"cap", cfg.MaxOccurrencesPerActivity,
			)
		}
		result.Occurrences = append(result.Occurrences, occ...)
	}

	return result
}

func expandActivity(a model.Activity, cfg ExpandConfig) ([]model.Occurrence, bool) {
	if !a.Recurring {
		return expandSingle(a, cfg), false
	}
	if a.Recurrence == nil {
		return nil, false
	}
	return expandRecurring(a, *a.Recurrence, cfg)
}

func expandSingle(a model.Activity, cfg ExpandConfig) []model.Occurrence {
	if !overlaps(a.Start, a.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	// A one-off activity keeps its own id so clients can edit it directly.
	occ := makeOccurrence(a, a.Start)
	occ.ID = a.ID
	return []model.Occurrence{occ}
}

// overlaps reports whether [start, end] touches the window: start inside it,
// end inside it, or the span covering it entirely. All bounds are inclusive.
func overlaps(start, end, winStart, winEnd time.Time) bool {
	if within(start, winStart, winEnd) || within(end, winStart, winEnd) {
		return true
	}
	return !start.After(winStart) && !end.Before(winEnd)
}

func within(t, lo, hi time.Time) bool {
	return !t.Before(lo) && !t.After(hi)
}

func expandRecurring(a model.Activity, rule model.Recurrence, cfg ExpandConfig) ([]model.Occurrence, bool) {
	// Rule ended before the window begins.
	if rule.Until != nil && rule.Until.Before(cfg.RangeStart) {
		return nil, false
	}

	effStart := latest(a.Start, cfg.RangeStart)
	effEnd := cfg.RangeEnd
	if rule.Until != nil && rule.Until.Before(effEnd) {
		effEnd = *rule.Until
	}
	if effStart.After(effEnd) {
		return nil, false
	}

	var starts []time.Time
	switch p := rule.Pattern.(type) {
	case model.Daily:
		starts = walkDays(a.Start, effStart, effEnd, func(time.Time) bool { return true })
	case model.Weekly:
		if p.Days.Empty() {
			return nil, false
		}
		starts = walkDays(a.Start, effStart, effEnd, func(t time.Time) bool {
			return p.Days.Has(t.Weekday())
		})
	case model.Monthly:
		starts = walkMonths(a.Start, effStart, effEnd)
	default:
		return nil, false
	}

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerActivity {
		starts = starts[:cfg.MaxOccurrencesPerActivity]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(starts))
	for _, s := range starts {
		out = append(out, makeOccurrence(a, s))
	}
	return out, hitCap
}

// walkDays steps one calendar date at a time from effStart's date through
// effEnd, carrying the template's hour:minute onto each date, and keeps the
// candidates accepted by keep.
func walkDays(tmpl, effStart, effEnd time.Time, keep func(time.Time) bool) []time.Time {
	loc := tmpl.Location()
	from := effStart.In(loc)

	var out []time.Time
	for i := 0; ; i++ {
		cand := time.Date(from.Year(), from.Month(), from.Day()+i, tmpl.Hour(), tmpl.Minute(), 0, 0, loc)
		if cand.After(effEnd) {
			break
		}
		if keep(cand) {
			out = append(out, cand)
		}
	}
	return out
}

// walkMonths steps month by month from effStart's month while the month
// begins no later than effEnd. A month without the template's day of month
// (day 31 in April, day 30 in February) contributes nothing.
func walkMonths(tmpl, effStart, effEnd time.Time) []time.Time {
	loc := tmpl.Location()
	from := effStart.In(loc)
	day := tmpl.Day()

	var out []time.Time
	for i := 0; ; i++ {
		first := time.Date(from.Year(), from.Month()+time.Month(i), 1, 0, 0, 0, 0, loc)
		if first.After(effEnd) {
			break
		}
		cand := time.Date(first.Year(), first.Month(), day, tmpl.Hour(), tmpl.Minute(), 0, 0, loc)
		if cand.Day() != day {
			continue
		}
		if within(cand, effStart, effEnd) {
			out = append(out, cand)
		}
	}
	return out
}

// makeOccurrence copies the display attributes of a and anchors the
// template's own duration at start.
func makeOccurrence(a model.Activity, start time.Time) model.Occurrence {
	return model.Occurrence{
		ID:          model.OccurrenceID(a.ID, start),
		OriginalID:  a.ID,
		Title:       a.Title,
		Description: a.Description,
		CategoryID:  a.CategoryID,
		Recurring:   a.Recurring,
		Start:       start,
		End:         start.Add(a.Duration()),
	}
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
