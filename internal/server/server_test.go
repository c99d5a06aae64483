package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/calwatch/internal/storage"
)

var serverNow = time.Date(2025, 9, 21, 12, 0, 0, 0, time.UTC)

// newTestServer builds a Server over a seeded in-memory store.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).Run())

	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	set := storage.ApplySet{
		Now: serverNow,
		Adds: []storage.Event{
			{UID: "u1", Title: "Standup", StartTime: "2025-09-21T09:00:00", EndTime: "2025-09-21T09:15:00", MeetingLink: "https://zoom.us/j/1"},
			{UID: "u2", Title: "Planning", StartTime: "2025-09-22T14:00:00", EndTime: "2025-09-22T15:00:00"},
		},
	}
	require.NoError(t, store.Apply(context.Background(), set))

	log := zerolog.Nop()
	return New("127.0.0.1:0", store, &log)
}

func doRequest(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec, body := doRequest(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestGetEvents_ByDate(t *testing.T) {
	s := newTestServer(t)
	rec, body := doRequest(t, s, "/api/v1/events?date=2025-09-21")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, float64(1), body["count"])
	events := body["events"].([]interface{})
	require.Len(t, events, 1)
	first := events[0].(map[string]interface{})
	assert.Equal(t, "u1", first["uid"])
	assert.Equal(t, "Standup", first["title"])
	assert.Equal(t, "https://zoom.us/j/1", first["meeting_link"])
}

func TestGetEvents_Range(t *testing.T) {
	s := newTestServer(t)
	rec, body := doRequest(t, s, "/api/v1/events?from=2025-09-21&to=2025-09-22")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, "2025-09-21", body["from"])
	assert.Equal(t, "2025-09-22", body["to"])
}

func TestGetEvents_DateAndRangeAreExclusive(t *testing.T) {
	s := newTestServer(t)
	rec, body := doRequest(t, s, "/api/v1/events?date=2025-09-21&from=2025-09-20")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", body["status"])
}

func TestGetEvents_RejectsMalformedDate(t *testing.T) {
	s := newTestServer(t)
	rec, _ := doRequest(t, s, "/api/v1/events?date=21-09-2025")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChanges_All(t *testing.T) {
	s := newTestServer(t)
	rec, body := doRequest(t, s, "/api/v1/changes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])

	changes := body["changes"].([]interface{})
	first := changes[0].(map[string]interface{})
	assert.Equal(t, "added", first["action"])
	assert.Equal(t, "u1", first["uid"])
}

func TestGetChanges_SinceRFC3339(t *testing.T) {
	s := newTestServer(t)
	rec, body := doRequest(t, s, "/api/v1/changes?since=2026-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["count"])
}

func TestGetChanges_SinceDuration(t *testing.T) {
	s := newTestServer(t)
	// Everything in the store is newer than ten years ago.
	rec, body := doRequest(t, s, "/api/v1/changes?since=87600h")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])
}

func TestGetChanges_RejectsBadSince(t *testing.T) {
	s := newTestServer(t)
	rec, _ := doRequest(t, s, "/api/v1/changes?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownMethodRejected(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
