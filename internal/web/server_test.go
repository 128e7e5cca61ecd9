package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/fsrs"
	"github.com/conorfennell/knolsched/internal/review"
	"github.com/conorfennell/knolsched/internal/storage"
)

var t0 = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := fsrs.NewScheduler(fsrs.Parameters{})
	require.NoError(t, err)
	srv := NewServer(db, review.NewService(db, s), t.TempDir())
	srv.now = func() time.Time { return t0 }
	return srv, db
}

func do(t *testing.T, srv http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestReviewFlow(t *testing.T) {
	srv, db := newTestServer(t)
	card := domain.Card{Question: "Ping?", Answer: "Pong", Hash: "abc123"}
	require.NoError(t, db.InsertCard(context.Background(), card, fsrs.NewCard(t0), 0))

	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/deck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["due_count"])

	rec, body = do(t, srv, httptest.NewRequest(http.MethodGet, "/review/next", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	outcomes := body["outcomes"].(map[string]any)
	easy := outcomes["easy"].(map[string]any)["card"].(map[string]any)
	assert.Equal(t, "Review", easy["state"])
	assert.Equal(t, float64(5), easy["scheduled_days"])

	rec, _ = do(t, srv, httptest.NewRequest(http.MethodGet, "/review/abc/preview", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	form := strings.NewReader(url.Values{"rating": {"good"}}.Encode())
	req := httptest.NewRequest(http.MethodPost, "/review/abc123", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec, body = do(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	memory := body["card"].(map[string]any)["memory"].(map[string]any)
	assert.Equal(t, "Learning", memory["state"])

	req = httptest.NewRequest(http.MethodPost, "/review/abc123", strings.NewReader(`{"rating": 4}`))
	req.Header.Set("Content-Type", "application/json")
	rec, body = do(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	log := body["review_log"].(map[string]any)
	assert.Equal(t, "Easy", log["rating"])
	assert.Equal(t, "Learning", log["state"])

	rec, _ = do(t, srv, httptest.NewRequest(http.MethodGet, "/review/next", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/review/abc123/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 2)
}

func TestReviewErrors(t *testing.T) {
	srv, db := newTestServer(t)
	require.NoError(t, db.InsertCard(context.Background(), domain.Card{Question: "Q", Hash: "abc123"}, fsrs.NewCard(t0), 0))

	form := strings.NewReader(url.Values{"rating": {"perfect"}}.Encode())
	req := httptest.NewRequest(http.MethodPost, "/review/abc123", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec, body := do(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid rating")

	req = httptest.NewRequest(http.MethodPost, "/review/abc123", strings.NewReader(`{"rating":`))
	req.Header.Set("Content-Type", "application/json")
	rec, _ = do(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for name, body := range map[string]string{"json": `{}`, "null": `{"rating": null}`} {
		req = httptest.NewRequest(http.MethodPost, "/review/abc123", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec, resp := do(t, srv, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Equal(t, "rating is required", resp["error"], name)
	}
	req = httptest.NewRequest(http.MethodPost, "/review/abc123", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec, _ = do(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	logs, err := db.ReviewLogs(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Empty(t, logs, "rejected requests leave no review behind")
	card, err := db.FindCard(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, fsrs.New, card.Memory.State)
	assert.Zero(t, card.Memory.Lapses)

	rec, _ = do(t, srv, httptest.NewRequest(http.MethodGet, "/review/fff/preview", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, srv, httptest.NewRequest(http.MethodPut, "/review/abc123", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSourcesAndSync(t *testing.T) {
	srv, _ := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deck.md"), []byte("Q: One?\nA: 1\n\nQ: Two?\nA: 2\n"), 0o644))

	req := httptest.NewRequest(http.MethodPost, "/sources", strings.NewReader(`{"path": "`+filepath.ToSlash(dir)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, body := do(t, srv, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "local", sources[0].(map[string]any)["type"])

	req = httptest.NewRequest(http.MethodPost, "/sources", strings.NewReader(`{"path": "`+filepath.ToSlash(dir)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, body = do(t, srv, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, body["error"], "already exists")

	req = httptest.NewRequest(http.MethodPost, "/sources", strings.NewReader(`{"path": ""}`))
	req.Header.Set("Content-Type", "application/json")
	rec, _ = do(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, srv, httptest.NewRequest(http.MethodPost, "/sync", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["inserted"])

	rec, body = do(t, srv, httptest.NewRequest(http.MethodGet, "/deck", nil))
	assert.Equal(t, float64(2), body["due_count"])

	rec, _ = do(t, srv, httptest.NewRequest(http.MethodDelete, "/sources/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, body = do(t, srv, httptest.NewRequest(http.MethodGet, "/sources", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["sources"])

	rec, _ = do(t, srv, httptest.NewRequest(http.MethodDelete, "/sources/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, srv, httptest.NewRequest(http.MethodDelete, "/sources/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
