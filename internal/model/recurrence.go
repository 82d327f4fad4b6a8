package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Pattern is the repetition shape of a Recurrence: Daily, Weekly or Monthly.
type Pattern interface {
	Frequency() Frequency
}

// Daily repeats on every calendar date.
type Daily struct{}

// Weekly repeats on the listed weekdays. An empty set never produces an
// occurrence.
type Weekly struct {
	Days WeekdaySet
}

// Monthly repeats on the template start's day of month. Months lacking that
// day are skipped.
type Monthly struct{}

func (Daily) Frequency() Frequency   { return FrequencyDaily }
func (Weekly) Frequency() Frequency  { return FrequencyWeekly }
func (Monthly) Frequency() Frequency { return FrequencyMonthly }

// Recurrence attaches a repetition pattern and an optional inclusive end
// bound to an activity. A nil Until means the rule never ends.
type Recurrence struct {
	Pattern Pattern
	Until   *time.Time
}

// WeekdaySet is a bitmask over time.Weekday (bit 0 = Sunday).
type WeekdaySet uint8

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Empty() bool { return s == 0 }

// Days lists members in ordinal order, Sunday first.
func (s WeekdaySet) Days() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// recurrenceWire is the JSON shape shared with clients:
// {"type": "weekly", "days": [2], "until": null}.
type recurrenceWire struct {
	Type  Frequency  `json:"type"`
	Days  []int      `json:"days,omitempty"`
	Until *time.Time `json:"until"`
}

// MarshalJSON fails for a Recurrence without a Pattern; the wire shape has
// no encoding for it.
func (r Recurrence) MarshalJSON() ([]byte, error) {
	if r.Pattern == nil {
		return nil, fmt.Errorf("%w: recurrence has no pattern", ErrInvalid)
	}
	w := recurrenceWire{Until: r.Until, Type: r.Pattern.Frequency()}
	if wk, ok := r.Pattern.(Weekly); ok {
		w.Days = []int{}
		for _, d := range wk.Days.Days() {
			w.Days = append(w.Days, int(d))
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire shape. Days are only meaningful for weekly
// rules and are ignored otherwise.
func (r *Recurrence) UnmarshalJSON(data []byte) error {
	var w recurrenceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	rec, err := NewRecurrence(w.Type, w.Days, w.Until)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// NewRecurrence builds a Recurrence from loosely typed fields as they arrive
// from JSON or tool input.
func NewRecurrence(freq Frequency, days []int, until *time.Time) (Recurrence, error) {
	rec := Recurrence{Until: until}
	switch freq {
	case FrequencyDaily:
		rec.Pattern = Daily{}
	case FrequencyMonthly:
		rec.Pattern = Monthly{}
	case FrequencyWeekly:
		var set WeekdaySet
		for _, d := range days {
			if d < 0 || d > 6 {
				return Recurrence{}, fmt.Errorf("%w: weekday %d out of range 0-6", ErrInvalid, d)
			}
			set = set.With(time.Weekday(d))
		}
		rec.Pattern = Weekly{Days: set}
	default:
		return Recurrence{}, fmt.Errorf("%w: unknown recurrence type %q", ErrInvalid, freq)
	}
	return rec, nil
}

// Equal reports whether two recurrences describe the same rule.
func (r Recurrence) Equal(o Recurrence) bool {
	if r.Pattern != o.Pattern {
		return false
	}
	switch {
	case r.Until == nil && o.Until == nil:
		return true
	case r.Until == nil || o.Until == nil:
		return false
	default:
		return r.Until.Equal(*o.Until)
	}
}

func (s WeekdaySet) String() string {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, d.String()[:3])
	}
	return "[" + strings.Join(names, " ") + "]"
}
