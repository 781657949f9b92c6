package core

import (
	"errors"
	"math"
	"sort"
	"strings"
)

type (
	// RawRow is one input row before normalization. Fields hold the text
	// exactly as read from the source.
	RawRow struct {
		Area   string
		Period string
		Value  string
	}

	// Record is one normalized observation: CT exams per 1000 inhabitants.
	Record struct {
		Country string // display name
		Year    int
		Value   float64
	}

	// Dataset is the working dataset. Built once at load time and shared
	// read-only afterwards.
	Dataset struct {
		records   []Record
		countries []string
		minYear   int
		maxYear   int
	}

	// YearRange is an inclusive [From, To] span of years.
	YearRange struct {
		From int
		To   int
	}
)

var (
	ErrEmptyDataset      = errors.New("dataset has no usable rows")
	ErrInvalidDoseFactor = errors.New("dose factor must be a positive finite number")
	ErrMissingColumn     = errors.New("missing required column")
)

// countryNames maps the source's English country names to the display names
// used throughout the dashboard. Rows for any other country are dropped.
var countryNames = map[string]string{
	"Poland":         "Polska",
	"Germany":        "Niemcy",
	"France":         "Francja",
	"United States":  "Stany Zjednoczone",
	"United Kingdom": "Wielka Brytania",
	"Italy":          "Włochy",
	"Spain":          "Hiszpania",
	"Netherlands":    "Holandia",
	"Finland":        "Finlandia",
	"Japan":          "Japonia",
	"Canada":         "Kanada",
	"Australia":      "Australia",
}

// DisplayName returns the display name for a raw country name.
func DisplayName(raw string) (string, bool) {
	name, ok := countryNames[strings.TrimSpace(raw)]
	return name, ok
}

// KnownDisplayNames lists every display name the name map can produce, sorted.
func KnownDisplayNames() []string {
	names := make([]string, 0, len(countryNames))
	for _, v := range countryNames {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}

// NewDataset builds a Dataset from already normalized records. The slice is
// copied so later changes by the caller are not visible.
func NewDataset(records []Record) (*Dataset, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	ds := &Dataset{
		records: make([]Record, len(records)),
		minYear: math.MaxInt,
		maxYear: math.MinInt,
	}
	copy(ds.records, records)

	seen := make(map[string]struct{})
	for _, r := range ds.records {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return nil, errors.New("dataset contains a non-finite value")
		}
		if _, ok := seen[r.Country]; !ok {
			seen[r.Country] = struct{}{}
			ds.countries = append(ds.countries, r.Country)
		}
		if r.Year < ds.minYear {
			ds.minYear = r.Year
		}
		if r.Year > ds.maxYear {
			ds.maxYear = r.Year
		}
	}
	sort.Strings(ds.countries)

	return ds, nil
}

// Records returns a copy of the dataset rows in load order.
func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// Each calls fn for every record in load order without copying.
func (d *Dataset) Each(fn func(Record)) {
	for _, r := range d.records {
		fn(r)
	}
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// Countries returns the sorted unique display names present in the dataset.
func (d *Dataset) Countries() []string {
	out := make([]string, len(d.countries))
	copy(out, d.countries)
	return out
}

// HasCountry reports whether the dataset holds at least one row for name.
func (d *Dataset) HasCountry(name string) bool {
	i := sort.SearchStrings(d.countries, name)
	return i < len(d.countries) && d.countries[i] == name
}

// YearSpan returns the smallest and largest year in the dataset.
func (d *Dataset) YearSpan() YearRange {
	return YearRange{From: d.minYear, To: d.maxYear}
}

// Contains reports whether year falls inside the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.From && year <= r.To
}

// Empty reports whether the range selects no year at all.
func (r YearRange) Empty() bool {
	return r.From > r.To
}

// Clamp intersects r with bounds. A range that does not overlap bounds, or
// was inverted to begin with, comes back inverted and so selects nothing.
func (r YearRange) Clamp(bounds YearRange) YearRange {
	return YearRange{From: max(r.From, bounds.From), To: min(r.To, bounds.To)}
}
