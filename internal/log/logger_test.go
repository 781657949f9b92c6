package log

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"loud", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelInfo, ComponentApp)
	if l.Component() != ComponentApp {
		t.Fatalf("Component() = %q", l.Component())
	}

	l.WithComponent(ComponentEngine).Info("computed", FieldRowsKept, 3)
	out := buf.String()
	if !strings.Contains(out, "component=engine") || !strings.Contains(out, "rows_kept=3") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestContextLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := NewText(&buf, slog.LevelInfo, ComponentHTTP)

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	})
	h = RequestIDMiddleware(func(*http.Request) string { return "req_abc" })(h)
	h = Middleware(base)(h)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	out := buf.String()
	if !strings.Contains(out, "request_id=req_abc") || !strings.Contains(out, "msg=handled") {
		t.Fatalf("request logger not propagated: %q", out)
	}
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("expected default logger, got %+v", l)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentReport).
		WithOperation(OpRender).
		WithClientIP("10.0.0.1").
		WithError(nil)

	if _, ok := f[FieldError]; ok {
		t.Fatalf("nil error should not add a field")
	}
	if len(f.ToSlice()) != 6 {
		t.Fatalf("ToSlice() = %v", f.ToSlice())
	}
}
