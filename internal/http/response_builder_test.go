package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func hxEvents(t *testing.T, w *httptest.ResponseRecorder) map[string]map[string]any {
	t.Helper()
	var events map[string]map[string]any
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &events); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %q: %v", w.Header().Get("HX-Trigger"), err)
	}
	return events
}

func TestReportResponseEvents(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		Status(http.StatusAccepted).
		TriggerReportRequested("3f0c8a52", true).
		TriggerSuccessNotification("Raport zlecony").
		BodyHTML(`<div class="success">ok</div>`).
		Write(w)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := hxEvents(t, w)
	want := map[string]map[string]any{
		"report:requested":  {"id": "3f0c8a52", "queued": true},
		"show-notification": {"type": "success", "message": "Raport zlecony", "duration": float64(3000)},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events mismatch:\n%s", spew.Sdump(events))
	}
}

func TestViewsResponseHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		Header("HX-Push-Url", "/?country=Polska&from=2010").
		TriggerSelectionChanged("country=Polska&from=2010").
		Write(w)

	if got := w.Header().Get("HX-Push-Url"); got != "/?country=Polska&from=2010" {
		t.Fatalf("HX-Push-Url = %q", got)
	}
	if got := hxEvents(t, w)["selection:changed"]["query"]; got != "country=Polska&from=2010" {
		t.Fatalf("selection query = %v", got)
	}
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
}

func TestJSONResponse(t *testing.T) {
	t.Run("encodes", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHTMXResponse().Status(http.StatusCreated).JSON(map[string]int{"filtered_rows": 30}).Write(w)

		if w.Code != http.StatusCreated || w.Header().Get("Content-Type") != "application/json" {
			t.Fatalf("unexpected response %d %v", w.Code, w.Header())
		}
		if w.Body.String() != "{\"filtered_rows\":30}\n" {
			t.Fatalf("body = %q", w.Body.String())
		}
		if w.Header().Get("HX-Trigger") != "" {
			t.Fatalf("no events were added")
		}
	})

	t.Run("unencodable value", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHTMXResponse().JSON(map[string]any{"score": make(chan int)}).Write(w)
		if w.Code != http.StatusInternalServerError || w.Body.String() != "encoding error" {
			t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
		}
	})
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("Nieprawidłowe żądanie"), http.StatusBadRequest, `<div class="error">Nieprawidłowe żądanie</div>`},
		{"not found", NotFoundError("Nie znaleziono wykresu"), http.StatusNotFound, `<div class="error">Nie znaleziono wykresu</div>`},
		{"internal", InternalServerError("Błąd"), http.StatusInternalServerError, `<div class="error">Błąd</div>`},
		{"escaped", ErrorResponse(http.StatusServiceUnavailable, `<b>"x"</b>`), http.StatusServiceUnavailable, `<div class="error">&lt;b&gt;&#34;x&#34;&lt;/b&gt;</div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.wantStatus || w.Body.String() != tt.wantBody {
				t.Fatalf("got %d %q, want %d %q", w.Code, w.Body.String(), tt.wantStatus, tt.wantBody)
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedError("POST").Write(w)
	if w.Code != http.StatusMethodNotAllowed || w.Header().Get("Allow") != "POST" {
		t.Fatalf("unexpected response %d Allow=%q", w.Code, w.Header().Get("Allow"))
	}
}
