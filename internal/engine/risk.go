package engine

import (
	"math"
	"sort"

	"ctalara/internal/core"
)

// RiskRow is one country of the ALARA risk table.
type RiskRow struct {
	Country string  `json:"country"`
	Mean    float64 `json:"ct"`
	Score   float64 `json:"alara_score"`
}

// RiskTable ranks countries by their min-max normalized mean utilization.
//
// When every country has the same mean (which includes the single-country
// case) the normalization has no spread to work with: every score is 0 and
// Degenerate is set so the UI can say so.
type RiskTable struct {
	Rows       []RiskRow `json:"rows"`
	Degenerate bool      `json:"degenerate"`
}

// Scores returns the score of each country keyed by name.
func (t RiskTable) Scores() map[string]float64 {
	out := make(map[string]float64, len(t.Rows))
	for _, r := range t.Rows {
		out[r.Country] = r.Score
	}
	return out
}

// RiskScore computes the risk table from filtered records. Rows are sorted by
// score descending, ties by country name.
func RiskScore(records []core.Record) RiskTable {
	means := MeanByCountry(records)
	if len(means) == 0 {
		return RiskTable{Rows: []RiskRow{}}
	}

	lo, hi := means[0].Mean, means[0].Mean
	for _, m := range means[1:] {
		if m.Mean < lo {
			lo = m.Mean
		}
		if m.Mean > hi {
			hi = m.Mean
		}
	}

	// Halved so extreme but finite means cannot overflow the span.
	table := RiskTable{Rows: make([]RiskRow, len(means))}
	span := hi/2 - lo/2
	if !(span > 0) || math.IsInf(span, 0) {
		table.Degenerate = true
	}
	for i, m := range means {
		score := 0.0
		if !table.Degenerate {
			score = min(max((m.Mean/2-lo/2)/span, 0), 1)
		}
		table.Rows[i] = RiskRow{Country: m.Country, Mean: m.Mean, Score: score}
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		a, b := table.Rows[i], table.Rows[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Country < b.Country
	})
	return table
}
