// Package engine computes every dashboard view from the working dataset.
//
// All functions are pure: they read the dataset and the selection and return
// new values. Grouping is explicit (key to collected values, then reduce) and
// every output is sorted, so the same input always yields the same output.
// Values are exact; rounding is left to whoever presents them.
package engine

import (
	"math"
	"sort"

	"ctalara/internal/core"
)

// Point is one (year, value) pair of a series.
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Series is a per-year series for one country.
type Series struct {
	Country string  `json:"country"`
	Points  []Point `json:"points"`
}

// Stat holds summary statistics for one country.
type Stat struct {
	Country string  `json:"country"`
	Mean    float64 `json:"mean"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"count"`
}

// CountryMean is the mean value of one country.
type CountryMean struct {
	Country string  `json:"country"`
	Mean    float64 `json:"mean"`
}

type countryYear struct {
	country string
	year    int
}

// accumulator keeps the running figures of one group. avg is a running mean
// used when sum overflows.
type accumulator struct {
	sum   float64
	avg   float64
	count int
	min   float64
	max   float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		a.min = math.Min(a.min, v)
		a.max = math.Max(a.max, v)
	}
	a.sum += v
	a.count++
	a.avg += v/float64(a.count) - a.avg/float64(a.count)
}

func (a *accumulator) mean() float64 {
	if a.count == 0 {
		return 0
	}
	if math.IsInf(a.sum, 0) {
		return a.avg
	}
	return a.sum / float64(a.count)
}

// Filter returns the records of ds whose country is in countries and whose
// year lies in years (inclusive). An empty country set or an inverted range
// gives an empty result.
func Filter(ds *core.Dataset, countries []string, years core.YearRange) []core.Record {
	if len(countries) == 0 || years.Empty() {
		return nil
	}

	wanted := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		wanted[c] = struct{}{}
	}

	var out []core.Record
	ds.Each(func(r core.Record) {
		if _, ok := wanted[r.Country]; ok && years.Contains(r.Year) {
			out = append(out, r)
		}
	})
	return out
}

// MeanByCountryYear groups records by (country, year) and averages each
// group. Series are ordered by country; points by year.
func MeanByCountryYear(records []core.Record) []Series {
	groups := make(map[countryYear]*accumulator)
	for _, r := range records {
		key := countryYear{r.Country, r.Year}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{}
			groups[key] = acc
		}
		acc.add(r.Value)
	}

	byCountry := make(map[string][]Point)
	for key, acc := range groups {
		byCountry[key.country] = append(byCountry[key.country], Point{Year: key.year, Value: acc.mean()})
	}

	out := make([]Series, 0, len(byCountry))
	for country, points := range byCountry {
		sortPoints(points)
		out = append(out, Series{Country: country, Points: points})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// MeanByCountry averages all records of each country, ordered by country.
func MeanByCountry(records []core.Record) []CountryMean {
	stats := SummaryStats(records)
	out := make([]CountryMean, len(stats))
	for i, s := range stats {
		out[i] = CountryMean{Country: s.Country, Mean: s.Mean}
	}
	return out
}

// MeanByYear averages all records of each year, ordered by year.
func MeanByYear(records []core.Record) []Point {
	groups := make(map[int]*accumulator)
	for _, r := range records {
		acc, ok := groups[r.Year]
		if !ok {
			acc = &accumulator{}
			groups[r.Year] = acc
		}
		acc.add(r.Value)
	}

	out := make([]Point, 0, len(groups))
	for year, acc := range groups {
		out = append(out, Point{Year: year, Value: acc.mean()})
	}
	sortPoints(out)
	return out
}

// SummaryStats returns mean, min and max of each country's values.
func SummaryStats(records []core.Record) []Stat {
	groups := make(map[string]*accumulator)
	for _, r := range records {
		acc, ok := groups[r.Country]
		if !ok {
			acc = &accumulator{}
			groups[r.Country] = acc
		}
		acc.add(r.Value)
	}

	out := make([]Stat, 0, len(groups))
	for country, acc := range groups {
		out = append(out, Stat{
			Country: country,
			Mean:    acc.mean(),
			Min:     acc.min,
			Max:     acc.max,
			Count:   acc.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// Profile returns the per-year means of one country over the whole dataset,
// ignoring any year range. Unknown countries yield an empty series.
func Profile(ds *core.Dataset, country string) Series {
	var records []core.Record
	ds.Each(func(r core.Record) {
		if r.Country == country {
			records = append(records, r)
		}
	})
	return Series{Country: country, Points: MeanByYear(records)}
}

// HeadToHead returns the full-history profiles of two countries.
func HeadToHead(ds *core.Dataset, a, b string) [2]Series {
	return [2]Series{Profile(ds, a), Profile(ds, b)}
}

// YearlyMeans averages the series values of each year across countries. A
// year missing from a country's series does not count for that country.
func YearlyMeans(series []Series) []Point {
	groups := make(map[int]*accumulator)
	for _, s := range series {
		for _, p := range s.Points {
			acc, ok := groups[p.Year]
			if !ok {
				acc = &accumulator{}
				groups[p.Year] = acc
			}
			acc.add(p.Value)
		}
	}

	out := make([]Point, 0, len(groups))
	for year, acc := range groups {
		out = append(out, Point{Year: year, Value: acc.mean()})
	}
	sortPoints(out)
	return out
}

// Dose scales yearly means by factor (mSv per exam). The factor must be a
// positive finite number.
func Dose(yearly []Point, factor float64) ([]Point, error) {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return nil, core.ErrInvalidDoseFactor
	}
	out := make([]Point, len(yearly))
	for i, p := range yearly {
		out[i] = Point{Year: p.Year, Value: p.Value * factor}
	}
	return out, nil
}

func sortPoints(points []Point) {
	sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })
}
