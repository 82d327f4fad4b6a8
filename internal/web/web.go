package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"plancal/internal/chat"
	"plancal/internal/config"
	"plancal/internal/ics"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/store"
	"plancal/internal/view"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators the HTTP API serves from.
type Deps struct {
	Activities *store.ActivityStore
	Categories *store.CategoryStore
	Chat       *chat.Service
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server provides the calendar HTTP API.
type Server struct {
	cfg        *config.Config
	loc        *time.Location
	activities *store.ActivityStore
	categories *store.CategoryStore
	projector  *view.Projector
	chat       *chat.Service
	now        func() time.Time
	mux        *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}
	s := &Server{
		cfg:        cfg,
		loc:        loc,
		activities: deps.Activities,
		categories: deps.Categories,
		chat:       deps.Chat,
		now:        deps.Now,
		mux:        http.NewServeMux(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.chat == nil {
		s.chat = chat.NewService(nil)
	}
	s.projector = view.NewProjector(s.activities, s.categories,
		view.WithWeekStart(cfg.WeekStartDay()),
		view.WithMaxOccurrences(cfg.MaxOccurrences),
	)
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password leaves auth off.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="plancal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)

	s.mux.HandleFunc("GET /api/activities", s.handleListActivities)
	s.mux.HandleFunc("POST /api/activities", s.handleCreateActivity)
	s.mux.HandleFunc("GET /api/activities/{id}", s.handleGetActivity)
	s.mux.HandleFunc("PUT /api/activities/{id}", s.handleUpdateActivity)
	s.mux.HandleFunc("DELETE /api/activities/{id}", s.handleDeleteActivity)

	s.mux.HandleFunc("GET /api/categories", s.handleListCategories)
	s.mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	s.mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	s.mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleExport)
	s.mux.HandleFunc("GET /api/users/{userId}/upcoming", s.handleUpcoming)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleEvents projects one calendar view.
//
// GET /api/events?view=week&date=2025-05-13
//   - view: day | week | month | agenda (default week)
//   - date: anchor day, YYYY-MM-DD or RFC3339 (default today)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	g, err := view.ParseGranularity(q.Get("view"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	anchor, err := s.parseAnchor(q.Get("date"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	p := s.projector.Project(g, anchor)
	appLog.Debug("api events request",
		"view", g,
		"range_start", p.RangeStart.Format(time.RFC3339),
		"range_end", p.RangeEnd.Format(time.RFC3339),
		"entries", len(p.Entries),
	)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) parseAnchor(raw string) (time.Time, error) {
	if raw == "" {
		return s.now().In(s.loc), nil
	}
	if d, err := time.ParseInLocation(time.DateOnly, raw, s.loc); err == nil {
		return d, nil
	}
	t, err := chat.ParseTime(raw, s.loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(s.loc), nil
}

func (s *Server) handleListActivities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.activities.List())
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := s.activities.Get(r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var a model.Activity
	if err := decodeJSON(w, r, &a); err != nil {
		s.writeErr(w, err)
		return
	}
	a.Source = ""
	created, err := s.activities.Create(a)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	appLog.Info("activity created", "id", created.ID, "recurring", created.Recurring)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.checkEditable(id); err != nil {
		s.writeErr(w, err)
		return
	}
	var a model.Activity
	if err := decodeJSON(w, r, &a); err != nil {
		s.writeErr(w, err)
		return
	}
	a.Source = ""
	updated, err := s.activities.Update(id, a)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.checkEditable(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeErr(w, err)
		return
	}
	s.activities.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// checkEditable rejects changes to activities imported from a subscription;
// the next sync would overwrite them.
func (s *Server) checkEditable(id string) error {
	a, err := s.activities.Get(id)
	if err != nil {
		return err
	}
	if a.Source != "" {
		return fmt.Errorf("activity %q is imported from %q and read-only: %w", id, a.Source, store.ErrConflict)
	}
	return nil
}

func (s *Server) handleListCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.categories.List())
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c model.Category
	if err := decodeJSON(w, r, &c); err != nil {
		s.writeErr(w, err)
		return
	}
	if c.ID != "" {
		if _, exists := s.categories.Get(c.ID); exists {
			s.writeErr(w, fmt.Errorf("category %q: %w", c.ID, store.ErrConflict))
			return
		}
	}
	created, err := s.categories.Put(c)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var c model.Category
	if err := decodeJSON(w, r, &c); err != nil {
		s.writeErr(w, err)
		return
	}
	updated, err := s.categories.Update(r.PathValue("id"), c)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	s.categories.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	resp, err := s.chat.Reply(r.Context(), req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	body := ics.Encode(s.activities.List(), s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.activities.Upcoming(r.PathValue("userId"), s.now()))
}

// writeErr maps err onto a status code; unknown errors are logged and
// reported without detail.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		appLog.Error("api request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := strings.TrimPrefix(err.Error(), "json: ")
		return fmt.Errorf("%w: malformed request body: %s", model.ErrInvalid, msg)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
