package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks validation failures of boundary input.
var ErrInvalid = errors.New("invalid input")

var validate = validator.New()

// Activity is a stored activity template. A recurring activity carries a
// Recurrence from which concrete occurrences are derived at query time.
type Activity struct {
	ID          string `json:"id"`
	UserID      string `json:"userId,omitempty"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`

	// Start / End define the reference occurrence in local wall-clock time.
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`

	// CategoryID may reference a category that no longer exists.
	CategoryID string `json:"categoryId,omitempty"`

	Recurring  bool        `json:"isRecurring,omitempty"`
	Recurrence *Recurrence `json:"recurrenceRule,omitempty"`

	// Source is the ICS subscription id for imported activities; empty for
	// activities created locally.
	Source string `json:"source,omitempty"`
}

// Duration is the length of the reference occurrence.
func (a Activity) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// Validate checks the template invariants: non-empty title, End after Start
// and a pattern on any attached rule.
func (a Activity) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	if a.Recurrence != nil && a.Recurrence.Pattern == nil {
		return fmt.Errorf("%w: recurrenceRule has no type", ErrInvalid)
	}
	return nil
}

// Category is a display grouping with a color token.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color" validate:"required"`
}

func (c Category) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	return nil
}

const uncategorizedColor = "#6b7280"

// Uncategorized is the display fallback for activities whose category id is
// empty or dangling.
func Uncategorized() Category {
	return Category{Name: "No Category", Color: uncategorizedColor}
}

// DefaultCategories returns the built-in category set.
func DefaultCategories() []Category {
	return []Category{
		{ID: "work", Name: "Work", Color: "#4f46e5"},
		{ID: "personal", Name: "Personal", Color: "#10b981"},
		{ID: "health", Name: "Health & Fitness", Color: "#ef4444"},
		{ID: "study", Name: "Study", Color: "#f59e0b"},
		{ID: "social", Name: "Social", Color: "#8b5cf6"},
		{ID: "errands", Name: "Errands", Color: "#6366f1"},
		{ID: "family", Name: "Family", Color: "#ec4899"},
		{ID: "other", Name: "Other", Color: uncategorizedColor},
	}
}

// Occurrence represents a single concrete instance of an activity within a
// queried window. Occurrences are derived per query and never stored.
type Occurrence struct {
	// ID is OriginalID plus the occurrence start, unique per template.
	ID         string `json:"id"`
	OriginalID string `json:"originalId"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CategoryID  string `json:"categoryId,omitempty"`
	Recurring   bool   `json:"isRecurring"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// OccurrenceID builds the synthesized identity of an occurrence: the
// template id followed by the start instant in UTC with millisecond precision.
func OccurrenceID(templateID string, start time.Time) string {
	return templateID + "-" + start.UTC().Format("2006-01-02T15:04:05.000Z")
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gtfield":
		return fe.Field() + " must be after " + fe.Param()
	default:
		return fe.Field() + " failed " + fe.Tag()
	}
}
