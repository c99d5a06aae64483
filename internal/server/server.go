// Package server exposes the read-only query interface over HTTP for
// external reporting and automation scripts. It never writes: the sync
// path stays a single-writer CLI invocation.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/runnerr0/calwatch/internal/storage"
)

// Server wraps the HTTP query API around a store.
type Server struct {
	Server *http.Server
	log    *zerolog.Logger
	store  storage.Store
}

// New builds a Server listening on addr.
func New(addr string, store storage.Store, log *zerolog.Logger) *Server {
	s := &Server{
		Server: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log:   log,
		store: store,
	}

	r := mux.NewRouter()
	s.setupRoutes(r)
	s.Server.Handler = r

	return s
}

func (s *Server) setupRoutes(r *mux.Router) {
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/health", s.healthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/events", s.getEvents).Methods("GET")
	api.HandleFunc("/changes", s.getChanges).Methods("GET")
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("address", s.Server.Addr).Msg("starting query server")
	return s.Server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("shutting down query server")
	return s.Server.Shutdown(ctx)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// eventJSON mirrors the stable field order downstream renderers expect.
type eventJSON struct {
	UID         string `json:"uid"`
	Title       string `json:"title"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	MeetingLink string `json:"meeting_link"`
	FirstSeen   string `json:"first_seen"`
	LastSeen    string `json:"last_seen"`
}

type changeJSON struct {
	Seq         int64  `json:"seq"`
	Timestamp   string `json:"ts"`
	Action      string `json:"action"`
	UID         string `json:"uid"`
	Title       string `json:"title"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	MeetingLink string `json:"meeting_link"`
}

// getEvents handles GET /api/v1/events?date=YYYY-MM-DD or ?from=&to=.
// With no parameters it returns today's view.
func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	from := q.Get("from")
	to := q.Get("to")

	if date != "" && (from != "" || to != "") {
		writeError(w, http.StatusBadRequest, "date is mutually exclusive with from/to")
		return
	}

	switch {
	case date != "":
		from, to = date, date
	case from == "" && to == "":
		today := time.Now().Format("2006-01-02")
		from, to = today, today
	case from == "":
		from = to
	case to == "":
		to = from
	}

	for _, d := range []string{from, to} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			writeError(w, http.StatusBadRequest, "dates must be YYYY-MM-DD")
			return
		}
	}

	events, err := s.store.EventsOverlapping(r.Context(), from, to)
	if err != nil {
		s.log.Error().Err(err).Msg("events query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	out := make([]eventJSON, len(events))
	for i, e := range events {
		out[i] = eventJSON{
			UID:         e.UID,
			Title:       e.Title,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			MeetingLink: e.MeetingLink,
			FirstSeen:   e.FirstSeen.UTC().Format(time.RFC3339),
			LastSeen:    e.LastSeen.UTC().Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(out),
		"from":   from,
		"to":     to,
		"events": out,
	})
}

// getChanges handles GET /api/v1/changes?since=<RFC3339 | Go duration>.
// Omitting since returns the full audit log.
func (s *Server) getChanges(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := parseSince(raw, time.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339 or a duration like 48h")
			return
		}
		since = t
	}

	changes, err := s.store.Changes(r.Context(), since)
	if err != nil {
		s.log.Error().Err(err).Msg("changes query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	out := make([]changeJSON, len(changes))
	for i, c := range changes {
		out[i] = changeJSON{
			Seq:         c.Seq,
			Timestamp:   c.Timestamp.UTC().Format(time.RFC3339),
			Action:      string(c.Action),
			UID:         c.UID,
			Title:       c.Title,
			StartTime:   c.StartTime,
			EndTime:     c.EndTime,
			MeetingLink: c.MeetingLink,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(out),
		"changes": out,
	})
}

// parseSince accepts an absolute RFC3339 timestamp or a relative Go
// duration ("48h", "30m") measured back from now.
func parseSince(raw string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return now.Add(-d), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

// loggingMiddleware logs all incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
