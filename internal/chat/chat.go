package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role" validate:"oneof=user assistant system"`
	Content string `json:"content"`
}

// Request is the body accepted by the chat endpoint.
type Request struct {
	Message string    `json:"message" validate:"required"`
	History []Message `json:"history,omitempty" validate:"dive"`
}

// Response carries the raw assistant text and, when the reply embedded a
// valid proposal, the parsed activity suggestion.
type Response struct {
	Response          string      `json:"response"`
	SuggestedActivity *Suggestion `json:"suggestedActivity,omitempty"`
}

// Suggestion is an activity proposed by the assistant. It is not stored
// until a client accepts it.
type Suggestion struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	CategoryID  string    `json:"categoryId,omitempty"`
}

// Activity converts the suggestion into an unsaved activity template.
func (s Suggestion) Activity() model.Activity {
	return model.Activity{
		Title:       s.Title,
		Description: s.Description,
		Start:       s.Start,
		End:         s.End,
		CategoryID:  s.CategoryID,
	}
}

const (
	fallbackReply = "Sorry, I could not generate a response."
	degradedReply = "Sorry, the scheduling assistant is unavailable right now. Please try again in a moment."
)

var validate = validator.New()

// Service answers chat requests through a Completer.
type Service struct {
	completer  Completer
	categories func() []model.Category
	loc        *time.Location
	now        func() time.Time
}

type ServiceOption func(*Service)

func WithLocation(loc *time.Location) ServiceOption {
	return func(s *Service) { s.loc = loc }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithCategories lists the category ids the assistant may use.
func WithCategories(list func() []model.Category) ServiceOption {
	return func(s *Service) { s.categories = list }
}

// NewService builds a Service. A nil completer is allowed: every reply is
// then the degraded message.
func NewService(c Completer, opts ...ServiceOption) *Service {
	s := &Service{
		completer: c,
		loc:       time.Local,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reply validates req and asks the backend for an answer. The only error it
// returns is a validation error; backend failures become a degraded
// assistant message.
func (s *Service) Reply(ctx context.Context, req Request) (Response, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := validate.Struct(req); err != nil {
		return Response{}, fmt.Errorf("%w: %s", model.ErrInvalid, validationMessage(err))
	}

	if s.completer == nil {
		return Response{Response: degradedReply}, nil
	}

	messages := make([]Message, 0, len(req.History)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: s.systemPrompt()})
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: RoleUser, Content: req.Message})

	text, err := s.completer.Complete(ctx, messages)
	switch {
	case errors.Is(err, ErrEmptyCompletion):
		return Response{Response: fallbackReply}, nil
	case err != nil:
		appLog.Error("chat: completion failed", err, "history_len", len(req.History))
		return Response{Response: degradedReply}, nil
	}

	resp := Response{Response: text}
	if sug, ok := ExtractSuggestion(text, s.loc); ok {
		resp.SuggestedActivity = &sug
	}
	return resp, nil
}

func (s *Service) systemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a helpful scheduling assistant. You can help users manage their calendar and schedule activities.\n")
	sb.WriteString("Current date and time: ")
	sb.WriteString(s.now().In(s.loc).Format("Monday, 2006-01-02 15:04 MST"))
	sb.WriteString(".\n")

	if s.categories != nil {
		if cats := s.categories(); len(cats) > 0 {
			sb.WriteString("Available category ids:")
			for _, c := range cats {
				sb.WriteString(" ")
				sb.WriteString(c.ID)
				sb.WriteString(" (")
				sb.WriteString(c.Name)
				sb.WriteString(")")
			}
			sb.WriteString(".\n")
		}
	}

	sb.WriteString(`When you propose a concrete activity, include exactly one fenced JSON block:
` + "```json" + `
{"title": "...", "description": "...", "start": "2025-05-13T10:00:00", "end": "2025-05-13T11:00:00", "categoryId": "work"}
` + "```" + `
Use ISO 8601 for start and end. Omit the block when you are not proposing an activity.`)
	return sb.String()
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

type rawSuggestion struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
	CategoryID  string `json:"categoryId"`
}

// ExtractSuggestion parses the first fenced JSON block of text. Any parse or
// validation failure reports ok=false; it never errors. Zone-less dates are
// read in loc.
func ExtractSuggestion(text string, loc *time.Location) (Suggestion, bool) {
	m := fencedJSON.FindStringSubmatch(text)
	if m == nil {
		return Suggestion{}, false
	}

	var raw rawSuggestion
	if err := json.Unmarshal([]byte(m[1]), &raw); err != nil {
		appLog.Debug("chat: suggestion block is not valid JSON", "err", err)
		return Suggestion{}, false
	}
	raw.Title = strings.TrimSpace(raw.Title)
	if err := validate.Struct(raw); err != nil {
		appLog.Debug("chat: suggestion missing required fields", "err", validationMessage(err))
		return Suggestion{}, false
	}

	start, err := ParseTime(raw.Start, loc)
	if err != nil {
		appLog.Debug("chat: suggestion start unparseable", "start", raw.Start)
		return Suggestion{}, false
	}
	end, err := ParseTime(raw.End, loc)
	if err != nil {
		appLog.Debug("chat: suggestion end unparseable", "end", raw.End)
		return Suggestion{}, false
	}
	if !end.After(start) {
		appLog.Debug("chat: suggestion ends before it starts", "start", raw.Start, "end", raw.End)
		return Suggestion{}, false
	}

	return Suggestion{
		Title:       raw.Title,
		Description: raw.Description,
		Start:       start,
		End:         end,
		CategoryID:  raw.CategoryID,
	}, true
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime accepts RFC 3339 timestamps and zone-less ISO 8601 local
// date-times, the latter interpreted in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable time %q", model.ErrInvalid, s)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return strings.ToLower(fe.Field()) + " is required"
	}
	return fe.Namespace() + " failed " + fe.Tag()
}
