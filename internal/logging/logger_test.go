package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext_AttachesTraceID(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")
	t.Cleanup(func() { Setup("", "") })

	ctx := WithTraceID(context.Background(), "abc123")
	FromContext(ctx, Component("cache")).Info("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["trace_id"] != "abc123" {
		t.Errorf("expected trace_id abc123, got %v", rec["trace_id"])
	}
	if rec["component"] != "cache" {
		t.Errorf("expected component cache, got %v", rec["component"])
	}
}

func TestMiddleware_EchoesRequestID(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seen != "req-1" {
		t.Errorf("expected trace id req-1 in context, got %q", seen)
	}
	if got := w.Header().Get("X-Request-ID"); got != "req-1" {
		t.Errorf("expected echoed header req-1, got %q", got)
	}
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(w.Header().Get("X-Request-ID")) != 32 {
		t.Errorf("expected generated 32-char trace id, got %q", w.Header().Get("X-Request-ID"))
	}
}
