package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tunedeck/internal/model"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type mockMetricsRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (m *mockMetricsRecorder) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method: method, route: route, status: statusCode})
}

// newTestRouter はサーバーと同じ順序でミドルウェアを組んだルーターを返す。
func newTestRouter(buf *bytes.Buffer, rec *mockMetricsRecorder) http.Handler {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	verifier := acceptToken("good-token", model.Identity{UserID: "user-1", Username: "alice"})

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewMetricsMiddleware(rec))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewCORSMiddleware("http://localhost:3000"))

	r.Get("/api/songs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(NewSessionMiddleware(verifier))
		r.Delete("/api/playlists/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/api/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
	})
	return r
}

func TestMiddlewareChain_PublicRoute(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockMetricsRecorder{}
	router := newTestRouter(&buf, rec)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/songs", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := resp.Header.Get("Content-Security-Policy"); !strings.Contains(got, "default-src 'none'") {
		t.Errorf("Content-Security-Policy = %q", got)
	}
	if len(rec.requests) != 1 || rec.requests[0].route != "/api/songs" {
		t.Errorf("recorded = %+v, want one /api/songs entry", rec.requests)
	}
}

func TestMiddlewareChain_ProtectedRoute_RecordsPatternNotPath(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockMetricsRecorder{}
	router := newTestRouter(&buf, rec)

	req := httptest.NewRequest(http.MethodDelete, "/api/playlists/abc-123", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if len(rec.requests) != 1 {
		t.Fatalf("recorded %d requests, want 1", len(rec.requests))
	}
	got := rec.requests[0]
	if got.route != "/api/playlists/{id}" {
		t.Errorf("route = %q, want %q", got.route, "/api/playlists/{id}")
	}
	if got.method != http.MethodDelete || got.status != http.StatusOK {
		t.Errorf("recorded = %+v", got)
	}
	if !strings.Contains(buf.String(), `"user_id":"user-1"`) {
		t.Errorf("request log should include user_id, got %s", buf.String())
	}
}

func TestMiddlewareChain_ProtectedRoute_WithoutToken(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockMetricsRecorder{}
	router := newTestRouter(&buf, rec)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/playlists/abc-123", nil))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
	if len(rec.requests) != 1 || rec.requests[0].status != http.StatusUnauthorized {
		t.Errorf("recorded = %+v, want one 401 entry", rec.requests)
	}
}

func TestMiddlewareChain_UnknownRoute_RecordedAsUnmatched(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockMetricsRecorder{}
	router := newTestRouter(&buf, rec)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
	if len(rec.requests) != 1 {
		t.Fatalf("recorded %d requests, want 1", len(rec.requests))
	}
	if rec.requests[0].route != unmatchedRoute {
		t.Errorf("route = %q, want %q", rec.requests[0].route, unmatchedRoute)
	}
}

func TestMiddlewareChain_PanicReturns500(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockMetricsRecorder{}
	router := newTestRouter(&buf, rec)

	req := httptest.NewRequest(http.MethodGet, "/api/panic", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
	if code := decodeErrorCode(t, resp); code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInternal)
	}
}
