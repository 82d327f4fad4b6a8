// Package mcpserver exposes per-user calendar data to protocol clients as a
// resource template and two tools.
package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

const (
	serverName    = "plancal-mcp-server"
	serverVersion = "1.0.0"

	upcomingTemplate = "user://{userId}/upcoming_events"
	displayLayout    = "Mon Jan 2 2006 15:04 MST"
)

// Store is the slice of the activity store the tools need.
type Store interface {
	Create(a model.Activity) (model.Activity, error)
	Upcoming(userID string, now time.Time) []model.Activity
}

type Server struct {
	store Store
	now   func() time.Time
	loc   *time.Location
	mcp   *server.MCPServer
}

type Option func(*Server)

// WithClock replaces time.Now for the upcoming cut-off.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLocation sets the zone used when rendering event times.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

func New(store Store, opts ...Option) *Server {
	s := &Server{store: store, now: time.Now, loc: time.Local}
	for _, o := range opts {
		o(s)
	}

	s.mcp = server.NewMCPServer(serverName, serverVersion,
		server.WithResourceCapabilities(false, false),
		server.WithToolCapabilities(false),
	)

	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(upcomingTemplate, "user-upcoming-events",
			mcp.WithTemplateDescription("Upcoming events for a specific user, with titles, start times and end times."),
			mcp.WithTemplateMIMEType("text/plain"),
		),
		s.readUpcoming,
	)

	s.mcp.AddTool(mcp.NewTool("schedule_event",
		mcp.WithDescription("Schedules a new calendar event for a user. Requires user ID, title and ISO 8601 start and end times; optionally a description, category ID and recurrence flag."),
		mcp.WithString("userId", mcp.Required(), mcp.Description("The ID of the user for whom to schedule the event")),
		mcp.WithString("title", mcp.Required(), mcp.Description("The title of the event")),
		mcp.WithString("startTime", mcp.Required(), mcp.Description("Start time in ISO 8601 format, e.g. 2025-05-13T10:00:00Z")),
		mcp.WithString("endTime", mcp.Required(), mcp.Description("End time in ISO 8601 format, e.g. 2025-05-13T11:00:00Z")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("categoryId", mcp.Description("Optional category ID, e.g. 'work' or 'personal'")),
		mcp.WithBoolean("isRecurring", mcp.Description("Whether the event recurs, defaults to false")),
	), s.scheduleEvent)

	s.mcp.AddTool(mcp.NewTool("list_upcoming_events",
		mcp.WithDescription("Lists a user's events that start after now, earliest first."),
		mcp.WithString("userId", mcp.Required(), mcp.Description("The ID of the user whose events to list")),
	), s.listUpcoming)

	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves requests on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	appLog.Info("mcp server running on stdio", "name", serverName, "version", serverVersion)
	return server.ServeStdio(s.mcp)
}

func (s *Server) readUpcoming(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	userID, err := userFromURI(req.Params.URI)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     s.upcomingText(userID),
		},
	}, nil
}

func (s *Server) listUpcoming(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("userId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.upcomingText(userID)), nil
}

func (s *Server) scheduleEvent(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var fields [4]string
	for i, key := range []string{"userId", "title", "startTime", "endTime"} {
		v, err := req.RequireString(key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		fields[i] = v
	}
	userID, title, startRaw, endRaw := fields[0], fields[1], fields[2], fields[3]

	start, err := parseISO(startRaw)
	if err != nil {
		return mcp.NewToolResultError("invalid startTime: must be ISO 8601, e.g. 2025-05-13T10:00:00Z"), nil
	}
	end, err := parseISO(endRaw)
	if err != nil {
		return mcp.NewToolResultError("invalid endTime: must be ISO 8601, e.g. 2025-05-13T11:00:00Z"), nil
	}

	created, err := s.store.Create(model.Activity{
		UserID:      userID,
		Title:       title,
		Description: req.GetString("description", ""),
		CategoryID:  req.GetString("categoryId", ""),
		Start:       start,
		End:         end,
		Recurring:   req.GetBool("isRecurring", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	appLog.Info("mcp: event scheduled", "user", userID, "id", created.ID)
	return mcp.NewToolResultText(fmt.Sprintf(
		"Event '%s' has been successfully scheduled for user %s from %s to %s. Event ID: %s",
		created.Title, userID, startRaw, endRaw, created.ID,
	)), nil
}

func (s *Server) upcomingText(userID string) string {
	events := s.store.Upcoming(userID, s.now())

	var b strings.Builder
	fmt.Fprintf(&b, "Upcoming Events for user %s:\n", userID)
	if len(events) == 0 {
		b.WriteString("No upcoming events.\n")
		return b.String()
	}
	for _, e := range events {
		fmt.Fprintf(&b, "- %s (Starts: %s, Ends: %s)\n",
			e.Title, e.Start.In(s.loc).Format(displayLayout), e.End.In(s.loc).Format(displayLayout))
	}
	return b.String()
}

// userFromURI extracts userId from user://{userId}/upcoming_events.
func userFromURI(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, "user://")
	if !ok {
		return "", fmt.Errorf("unsupported resource uri %q", uri)
	}
	userID, tail, _ := strings.Cut(rest, "/")
	if userID == "" || tail != "upcoming_events" {
		return "", fmt.Errorf("unsupported resource uri %q", uri)
	}
	return userID, nil
}

func parseISO(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
}
