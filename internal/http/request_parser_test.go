package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"ctalara/internal/core"
	"ctalara/internal/loader"
	applog "ctalara/internal/log"
	"ctalara/internal/sheets/memory"
)

// testDataset goes through the loader so display names come from the
// country map, as they do in production.
func testDataset(t *testing.T) *core.Dataset {
	t.Helper()
	var rows []core.RawRow
	for year := 2005; year <= 2019; year++ {
		y := strconv.Itoa(year)
		rows = append(rows,
			core.RawRow{Area: "Poland", Period: y, Value: strconv.Itoa(10 + year - 2005)},
			core.RawRow{Area: "Germany", Period: y, Value: "30"},
			core.RawRow{Area: "France", Period: y, Value: "20"},
		)
	}
	rows = append(rows, core.RawRow{Area: "Italy", Period: "2010", Value: "25"})
	ds, _, err := loader.Load(context.Background(), memory.New(rows), applog.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestParseSelection(t *testing.T) {
	ds := testDataset(t)
	base := core.DefaultSelection(ds)

	tests := []struct {
		name  string
		query string
		check func(t *testing.T, sel core.Selection)
	}{
		{
			name:  "empty query keeps base",
			query: "",
			check: func(t *testing.T, sel core.Selection) {
				if !reflect.DeepEqual(sel.Countries, []string{"Polska", "Niemcy", "Francja"}) {
					t.Errorf("countries = %v", sel.Countries)
				}
				if !sel.Views.Enabled(core.ViewTrends) || sel.Views.Enabled(core.ViewRisk) {
					t.Errorf("views = %v", sel.Views)
				}
			},
		},
		{
			name:  "countries and years",
			query: "country=Niemcy&country=W%C5%82ochy&from=2008&to=2012",
			check: func(t *testing.T, sel core.Selection) {
				if !reflect.DeepEqual(sel.Countries, []string{"Niemcy", "Włochy"}) {
					t.Errorf("countries = %v", sel.Countries)
				}
				if sel.Years != (core.YearRange{From: 2008, To: 2012}) {
					t.Errorf("years = %+v", sel.Years)
				}
			},
		},
		{
			name:  "unknown country dropped",
			query: "country=Atlantyda&country=Polska",
			check: func(t *testing.T, sel core.Selection) {
				if !reflect.DeepEqual(sel.Countries, []string{"Polska"}) {
					t.Errorf("countries = %v", sel.Countries)
				}
			},
		},
		{
			name:  "years clamped to dataset",
			query: "from=1990&to=2030",
			check: func(t *testing.T, sel core.Selection) {
				if sel.Years != (core.YearRange{From: 2005, To: 2019}) {
					t.Errorf("years = %+v", sel.Years)
				}
			},
		},
		{
			name:  "invalid year ignored",
			query: "from=abc",
			check: func(t *testing.T, sel core.Selection) {
				if sel.Years.From != 2005 {
					t.Errorf("from = %d", sel.Years.From)
				}
			},
		},
		{
			name:  "dose with comma",
			query: "dose=12,5",
			check: func(t *testing.T, sel core.Selection) {
				if sel.DoseFactor != 12.5 {
					t.Errorf("dose = %v", sel.DoseFactor)
				}
			},
		},
		{
			name:  "dose clamped",
			query: "dose=50",
			check: func(t *testing.T, sel core.Selection) {
				if sel.DoseFactor != core.MaxDoseFactor {
					t.Errorf("dose = %v", sel.DoseFactor)
				}
			},
		},
		{
			name:  "unknown profile falls back",
			query: "profile=Atlantyda&h2h_a=Polska&h2h_b=Niemcy",
			check: func(t *testing.T, sel core.Selection) {
				if sel.ProfileCountry != "Francja" {
					t.Errorf("profile = %q", sel.ProfileCountry)
				}
				if sel.CompareA != "Polska" || sel.CompareB != "Niemcy" {
					t.Errorf("compare = %q/%q", sel.CompareA, sel.CompareB)
				}
			},
		},
		{
			name:  "views replace when given",
			query: "view=risk&view=bogus",
			check: func(t *testing.T, sel core.Selection) {
				if !sel.Views.Enabled(core.ViewRisk) || sel.Views.Enabled(core.ViewTrends) {
					t.Errorf("views = %v", sel.Views)
				}
			},
		},
		{
			name:  "submitted form with nothing checked",
			query: "submitted=1&from=2006",
			check: func(t *testing.T, sel core.Selection) {
				if len(sel.Countries) != 0 {
					t.Errorf("countries = %v", sel.Countries)
				}
				for _, v := range core.AllViews {
					if sel.Views.Enabled(v) {
						t.Errorf("view %s still enabled", v)
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			sel := ParseSelection(q, base, ds)
			tt.check(t, sel)
			if t.Failed() {
				t.Log(spew.Sdump(sel))
			}
		})
	}
}

func TestParseSelectionDoesNotMutateBase(t *testing.T) {
	ds := testDataset(t)
	base := core.DefaultSelection(ds)
	q := url.Values{"country": {"Włochy"}, "view": {"risk"}}

	_ = ParseSelection(q, base, ds)

	if !reflect.DeepEqual(base.Countries, []string{"Polska", "Niemcy", "Francja"}) {
		t.Fatalf("base countries changed: %v", base.Countries)
	}
	if base.Views.Enabled(core.ViewRisk) {
		t.Fatalf("base views changed: %v", base.Views)
	}
}

func TestEncodeSelectionRoundTrip(t *testing.T) {
	ds := testDataset(t)
	sel := core.DefaultSelection(ds).
		WithCountries("Włochy", "Polska").
		WithYears(2007, 2015).
		WithView(core.ViewStats, false).
		WithView(core.ViewRisk, true)
	sel.DoseFactor = 3.5
	sel.CompareA = "Niemcy"
	sel.CompareB = "Włochy"
	sel = sel.Normalize(ds)

	q, err := url.ParseQuery(EncodeSelection(sel))
	if err != nil {
		t.Fatal(err)
	}
	// Parse over a base that differs everywhere.
	other := core.DefaultSelection(ds).WithCountries("Francja").WithYears(2005, 2006)
	got := ParseSelection(q, other, ds)

	if !reflect.DeepEqual(got.Countries, sel.Countries) ||
		got.Years != sel.Years ||
		got.DoseFactor != sel.DoseFactor ||
		got.ProfileCountry != sel.ProfileCountry ||
		got.CompareA != sel.CompareA ||
		got.CompareB != sel.CompareB {
		t.Fatalf("round trip mismatch:\nwant %s\ngot  %s", spew.Sdump(sel), spew.Sdump(got))
	}
	for _, v := range core.AllViews {
		if got.Views.Enabled(v) != sel.Views.Enabled(v) {
			t.Errorf("view %s: got %v want %v", v, got.Views.Enabled(v), sel.Views.Enabled(v))
		}
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"country": ["Polska", "Niemcy"], "from": 2008, "dose": 12.5, "submitted": "1"}`
	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if got := parser.GetAll("country"); !reflect.DeepEqual(got, []string{"Polska", "Niemcy"}) {
		t.Errorf("GetAll('country') = %v", got)
	}
	if from := parser.Get("from"); from != "2008" {
		t.Errorf("Get('from') = %q, want '2008'", from)
	}
	if dose := parser.Get("dose"); dose != "12.5" {
		t.Errorf("Get('dose') = %q, want '12.5'", dose)
	}

	vals := parser.Values()
	if vals.Get("submitted") != "1" || len(vals["country"]) != 2 {
		t.Errorf("Values() = %v", vals)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "country=Polska&country=Niemcy&from=2010"
	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if got := parser.GetAll("country"); !reflect.DeepEqual(got, []string{"Polska", "Niemcy"}) {
		t.Errorf("GetAll('country') = %v", got)
	}
	if from := parser.Get("from"); from != "2010" {
		t.Errorf("Get('from') = %q", from)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
	if len(parser.Values()) != 0 {
		t.Errorf("Values() = %v", parser.Values())
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(`{"country": [`))
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestRequireMethod(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		allowed []string
		wantErr bool
	}{
		{"POST allowed", http.MethodPost, []string{http.MethodPost}, false},
		{"HEAD allowed with multiple", http.MethodHead, []string{http.MethodGet, http.MethodHead}, false},
		{"GET not allowed", http.MethodGet, []string{http.MethodPost}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireMethod(req, tt.allowed...)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func TestRequireGETAndPOST(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodHead} {
		if RequireGET(httptest.NewRequest(m, "/", nil)) != nil {
			t.Errorf("RequireGET should allow %s", m)
		}
	}
	if RequireGET(httptest.NewRequest(http.MethodPost, "/", nil)) == nil {
		t.Error("RequireGET should reject POST")
	}

	if RequirePOST(httptest.NewRequest(http.MethodPost, "/", nil)) != nil {
		t.Error("RequirePOST should allow POST requests")
	}
	rr := httptest.NewRecorder()
	resp := RequirePOST(httptest.NewRequest(http.MethodGet, "/", nil))
	if resp == nil {
		t.Fatal("RequirePOST should reject GET requests")
	}
	resp.Write(rr)
	if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != "POST" {
		t.Errorf("got %d Allow=%q", rr.Code, rr.Header().Get("Allow"))
	}
}
