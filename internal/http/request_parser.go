// Package http provides HTTP server and handler implementations.
//
// This file turns query strings and request bodies into a Selection.
// Parameters that are absent keep the value of the base selection, so a
// bare URL reproduces the caller's last state.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ctalara/internal/core"
)

// Query parameters understood by the dashboard.
const (
	ParamCountry   = "country"
	ParamFrom      = "from"
	ParamTo        = "to"
	ParamView      = "view"
	ParamProfile   = "profile"
	ParamCompareA  = "h2h_a"
	ParamCompareB  = "h2h_b"
	ParamDose      = "dose"
	ParamSubmitted = "submitted"
)

// ParseSelection applies the parameters in q on top of base and normalizes
// the result against ds. A submitted form (submitted=1) replaces countries
// and views even when none are checked, since browsers omit unchecked
// boxes entirely.
func ParseSelection(q url.Values, base core.Selection, ds *core.Dataset) core.Selection {
	sel := base.Clone()
	submitted := q.Get(ParamSubmitted) == "1"

	if vs, ok := q[ParamCountry]; ok || submitted {
		sel.Countries = cleanValues(vs)
	}
	if v, ok := intParam(q, ParamFrom); ok {
		sel.Years.From = v
	}
	if v, ok := intParam(q, ParamTo); ok {
		sel.Years.To = v
	}
	if vs, ok := q[ParamView]; ok || submitted {
		views := core.ViewSet{}
		for _, v := range cleanValues(vs) {
			if view := core.View(v); view.Valid() {
				views[view] = true
			}
		}
		sel.Views = views
	}
	if v := sanitizeInput(q.Get(ParamProfile)); v != "" {
		sel.ProfileCountry = v
	}
	if v := sanitizeInput(q.Get(ParamCompareA)); v != "" {
		sel.CompareA = v
	}
	if v := sanitizeInput(q.Get(ParamCompareB)); v != "" {
		sel.CompareB = v
	}
	if v, ok := floatParam(q, ParamDose); ok {
		sel.DoseFactor = v
	}

	return sel.Normalize(ds)
}

// EncodeSelection renders sel as a query string ParseSelection reads back
// to the same selection.
func EncodeSelection(sel core.Selection) string {
	q := url.Values{}
	q.Set(ParamSubmitted, "1")
	for _, c := range sel.Countries {
		q.Add(ParamCountry, c)
	}
	q.Set(ParamFrom, strconv.Itoa(sel.Years.From))
	q.Set(ParamTo, strconv.Itoa(sel.Years.To))
	for _, v := range core.AllViews {
		if sel.Views.Enabled(v) {
			q.Add(ParamView, string(v))
		}
	}
	q.Set(ParamProfile, sel.ProfileCountry)
	q.Set(ParamCompareA, sel.CompareA)
	q.Set(ParamCompareB, sel.CompareB)
	q.Set(ParamDose, strconv.FormatFloat(sel.DoseFactor, 'f', -1, 64))
	return q.Encode()
}

func cleanValues(vs []string) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v = sanitizeInput(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func intParam(q url.Values, key string) (int, bool) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	return i, err == nil
}

// floatParam accepts both "8.5" and "8,5".
func floatParam(q url.Values, key string) (float64, bool) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	return f, err == nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

const maxBodyBytes = 64 << 10

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if vs := p.GetAll(key); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// GetAll returns every value of key. JSON arrays yield one value per
// element.
func (p *RequestBodyParser) GetAll(key string) []string {
	if p.jsonData != nil {
		val, ok := p.jsonData[key]
		if !ok {
			return nil
		}
		if arr, ok := val.([]interface{}); ok {
			out := make([]string, 0, len(arr))
			for _, el := range arr {
				out = append(out, sanitizeInput(stringValue(el)))
			}
			return out
		}
		return []string{sanitizeInput(stringValue(val))}
	}
	if p.formData != nil {
		return cleanValues(p.formData[key])
	}
	return nil
}

// Values returns the parsed body as url.Values, so JSON and form bodies
// feed ParseSelection alike.
func (p *RequestBodyParser) Values() url.Values {
	if p.jsonData == nil {
		if p.formData == nil {
			return url.Values{}
		}
		return p.formData
	}
	out := url.Values{}
	for key := range p.jsonData {
		out[key] = p.GetAll(key)
	}
	return out
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET is a convenience function for read-only handlers.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
