package util

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestIDKeepsCallerSuppliedID(t *testing.T) {
	const supplied = "crm-7f3a"
	var seenInCtx string
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInCtx = RequestIDFromRequest(r)
	}))

	req := httptest.NewRequest(http.MethodPost, "/internal/generate/business-plan", nil)
	req.Header.Set("X-Request-Id", supplied)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenInCtx != supplied {
		t.Fatalf("context request id = %q, want %q", seenInCtx, supplied)
	}
	if got := rec.Header().Get("X-Request-Id"); got != supplied {
		t.Fatalf("response header = %q, want %q", got, supplied)
	}
}

func TestWithRequestIDMintsOneWhenAbsent(t *testing.T) {
	var seenInCtx string
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInCtx = RequestIDFromRequest(r)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if seenInCtx == "" {
		t.Fatal("no request id minted into context")
	}
	if rec.Header().Get("X-Request-Id") != seenInCtx {
		t.Fatalf("header %q does not match context id %q", rec.Header().Get("X-Request-Id"), seenInCtx)
	}
}

func TestWithRequestIDInjectsContextLogger(t *testing.T) {
	var logger *slog.Logger
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger = LoggerFromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if logger == nil || logger == slog.Default() {
		t.Fatal("handler context should carry a request-scoped logger")
	}
}

func TestLoggerFromContextFallsBackToDefault(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != slog.Default() {
		t.Fatal("bare context should yield the default logger")
	}
	custom := slog.Default().With("worker", "janitor")
	ctx := ContextWithLogger(context.Background(), custom)
	if got := LoggerFromContext(ctx); got != custom {
		t.Fatal("stored logger not returned")
	}
}

func TestRequestIDFromContextEmptyWhenUnset(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("unset context returned %q", got)
	}
}
