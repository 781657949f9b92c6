package core

import (
	"fmt"
	"math"
	"slices"
)

// View identifies one panel of the dashboard.
type View string

const (
	ViewTrends     View = "trends"
	ViewStats      View = "stats"
	ViewProfile    View = "profile"
	ViewDose       View = "dose"
	ViewHeadToHead View = "h2h"
	ViewRisk       View = "risk"
	ViewExport     View = "export"
)

// AllViews lists every view in display order.
var AllViews = []View{ViewTrends, ViewStats, ViewProfile, ViewDose, ViewHeadToHead, ViewRisk, ViewExport}

const (
	DefaultDoseFactor = 8.0
	MinDoseFactor     = 1.0
	MaxDoseFactor     = 20.0

	DefaultYearFrom = 2005
	DefaultYearTo   = 2019
)

// DefaultCountries are preselected when they exist in the dataset.
var DefaultCountries = []string{"Polska", "Niemcy", "Francja"}

// Valid reports whether v names a known view.
func (v View) Valid() bool {
	return slices.Contains(AllViews, v)
}

// ViewSet holds the enabled state of every view.
type ViewSet map[View]bool

// DefaultViews enables trends, stats and profile.
func DefaultViews() ViewSet {
	return ViewSet{
		ViewTrends:  true,
		ViewStats:   true,
		ViewProfile: true,
	}
}

// Enabled reports whether v is switched on.
func (s ViewSet) Enabled(v View) bool { return s[v] }

// Selection is the user's current filter and view state. It is a value:
// every change produces a new Selection via the With* helpers.
type Selection struct {
	Countries      []string
	Years          YearRange
	Views          ViewSet
	ProfileCountry string
	CompareA       string
	CompareB       string
	DoseFactor     float64
}

// DefaultSelection returns the initial selection for ds.
func DefaultSelection(ds *Dataset) Selection {
	known := ds.Countries()

	var countries []string
	for _, c := range DefaultCountries {
		if ds.HasCountry(c) {
			countries = append(countries, c)
		}
	}

	sel := Selection{
		Countries:  countries,
		Years:      defaultYears(ds.YearSpan()),
		Views:      DefaultViews(),
		DoseFactor: DefaultDoseFactor,
	}
	if len(known) > 0 {
		sel.ProfileCountry = known[0]
		sel.CompareA = known[0]
	}
	if len(known) > 1 {
		sel.CompareB = known[1]
	} else {
		sel.CompareB = sel.CompareA
	}
	return sel
}

// defaultYears is the default range within span, or the whole span when the
// two do not overlap.
func defaultYears(span YearRange) YearRange {
	years := YearRange{From: DefaultYearFrom, To: DefaultYearTo}.Clamp(span)
	if years.Empty() {
		return span
	}
	return years
}

// Normalize returns a copy of s restricted to what ds can answer: unknown
// countries are removed, the year range is clamped to the dataset span,
// single-country selectors fall back to defaults and the dose factor is
// clamped to the slider bounds.
func (s Selection) Normalize(ds *Dataset) Selection {
	def := DefaultSelection(ds)
	out := s.Clone()

	out.Countries = out.Countries[:0]
	seen := make(map[string]struct{}, len(s.Countries))
	for _, c := range s.Countries {
		if _, dup := seen[c]; dup || !ds.HasCountry(c) {
			continue
		}
		seen[c] = struct{}{}
		out.Countries = append(out.Countries, c)
	}

	out.Years = s.Years.Clamp(ds.YearSpan())

	if !ds.HasCountry(out.ProfileCountry) {
		out.ProfileCountry = def.ProfileCountry
	}
	if !ds.HasCountry(out.CompareA) {
		out.CompareA = def.CompareA
	}
	if !ds.HasCountry(out.CompareB) {
		out.CompareB = def.CompareB
	}

	out.DoseFactor = ClampDoseFactor(s.DoseFactor)
	if out.Views == nil {
		out.Views = ViewSet{}
	}
	return out
}

// Clone returns a deep copy of s.
func (s Selection) Clone() Selection {
	out := s
	out.Countries = slices.Clone(s.Countries)
	if s.Views != nil {
		out.Views = make(ViewSet, len(s.Views))
		for k, v := range s.Views {
			out.Views[k] = v
		}
	}
	return out
}

// WithCountries returns a copy of s with a new country set.
func (s Selection) WithCountries(countries ...string) Selection {
	out := s.Clone()
	out.Countries = slices.Clone(countries)
	return out
}

// WithYears returns a copy of s with a new year range.
func (s Selection) WithYears(from, to int) Selection {
	out := s.Clone()
	out.Years = YearRange{From: from, To: to}
	return out
}

// WithView returns a copy of s with v switched on or off.
func (s Selection) WithView(v View, on bool) Selection {
	out := s.Clone()
	if out.Views == nil {
		out.Views = ViewSet{}
	}
	out.Views[v] = on
	return out
}

// ClampDoseFactor restricts f to the slider range. Non-finite input falls
// back to the default.
func ClampDoseFactor(f float64) float64 {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return DefaultDoseFactor
	case f < MinDoseFactor:
		return MinDoseFactor
	case f > MaxDoseFactor:
		return MaxDoseFactor
	}
	return f
}

// String renders a short description for logs.
func (s Selection) String() string {
	return fmt.Sprintf("countries=%v years=%d-%d dose=%.1f", s.Countries, s.Years.From, s.Years.To, s.DoseFactor)
}
