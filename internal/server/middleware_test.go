package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestIDMiddleware(t *testing.T) {
	var gotID string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if gotID == "" {
		t.Error("request ID missing from context")
	}
	if header := rec.Header().Get("X-Request-ID"); header != gotID {
		t.Errorf("X-Request-ID = %q, want %q", header, gotID)
	}
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea", nil))

	out := buf.String()
	if !strings.Contains(out, "status=418") {
		t.Errorf("log output missing status: %s", out)
	}
	if !strings.Contains(out, "path=/tea") {
		t.Errorf("log output missing path: %s", out)
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadlineSet bool
	handler := TimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadlineSet = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !deadlineSet {
		t.Error("expected a context deadline")
	}
}

func TestRecovererMiddleware_JSONEnvelope(t *testing.T) {
	handler := RecovererMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"error":"Internal server error"`) {
		t.Errorf("body = %q", body)
	}
}

func TestRecovererMiddleware_DoesNotOverwriteResponse(t *testing.T) {
	handler := RecovererMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("partial"))
		panic("late boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want the original 200", rec.Code)
	}
	if body := rec.Body.String(); body != "partial" {
		t.Errorf("body = %q, want %q", body, "partial")
	}
}

func TestServerStack(t *testing.T) {
	srv := New(0, discardLogger())
	srv.Router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Errorf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("middleware stack did not set X-Request-ID")
	}
}

func TestShutdown_NoServer(t *testing.T) {
	srv := New(0, discardLogger())
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown before Start should be a no-op, got %v", err)
	}
}
