package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Events the page listens for via HX-Trigger.
const (
	eventSelectionChanged = "selection:changed"
	eventReportRequested  = "report:requested"
	eventNotification     = "show-notification"
)

// HTMXResponseBuilder assembles a response with HX-Trigger events, extra
// headers and a body, written in one go by Write.
type HTMXResponseBuilder struct {
	status int
	header http.Header
	events map[string]any
	body   []byte
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status: http.StatusOK,
		header: http.Header{},
		events: map[string]any{},
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.header.Set(name, value)
	return b
}

// TriggerSelectionChanged carries the query the partial was computed for, so
// the form can follow back/forward navigation.
func (b *HTMXResponseBuilder) TriggerSelectionChanged(query string) *HTMXResponseBuilder {
	b.events[eventSelectionChanged] = map[string]string{"query": query}
	return b
}

func (b *HTMXResponseBuilder) TriggerReportRequested(id string, queued bool) *HTMXResponseBuilder {
	b.events[eventReportRequested] = map[string]any{"id": id, "queued": queued}
	return b
}

// TriggerSuccessNotification shows message in the page toast for 3 seconds.
func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	b.events[eventNotification] = map[string]any{"type": "success", "message": message, "duration": 3000}
	return b
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = []byte(html)
	return b
}

// JSON encodes v as the body. An encoding failure turns the response into a
// plain 500.
func (b *HTMXResponseBuilder) JSON(v any) *HTMXResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.status = http.StatusInternalServerError
		b.header.Set("Content-Type", "text/plain; charset=utf-8")
		b.body = []byte("encoding error")
		return b
	}
	b.header.Set("Content-Type", "application/json")
	b.body = append(data, '\n')
	return b
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, values := range b.header {
		w.Header()[name] = values
	}
	if len(b.events) > 0 {
		if events, err := json.Marshal(b.events); err == nil {
			w.Header().Set("HX-Trigger", string(events))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message as an escaped error fragment.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func MethodNotAllowedError(allow string) *HTMXResponseBuilder {
	return NewHTMXResponse().Status(http.StatusMethodNotAllowed).Header("Allow", allow)
}
