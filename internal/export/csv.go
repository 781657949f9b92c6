// Package export serializes dashboard views into downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"ctalara/internal/engine"
)

const (
	// CSVFilename is the download name of the risk table export.
	CSVFilename = "alara_score.csv"
	// CSVContentType is sent with the CSV export.
	CSVContentType = "text/csv; charset=utf-8"
)

// CSVHeader is the fixed column order of the CSV export.
var CSVHeader = []string{"KRAJ_PL", "CT", "ALARA_SCORE"}

// Presentation precision.
const (
	MeanDecimals  = 2
	ScoreDecimals = 3
)

// FormatFixed renders v with a fixed number of decimals and a dot separator.
func FormatFixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// SerializeCSV writes the risk table as UTF-8 CSV: header first, then one
// row per country in table order.
func SerializeCSV(table engine.RiskTable) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV streams the CSV export to w.
func WriteCSV(w io.Writer, table engine.RiskTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range table.Rows {
		rec := []string{
			r.Country,
			FormatFixed(r.Mean, MeanDecimals),
			FormatFixed(r.Score, ScoreDecimals),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s: %w", r.Country, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseCSV reads a file produced by SerializeCSV back into risk rows.
func ParseCSV(r io.Reader) ([]engine.RiskRow, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("missing header")
	}
	if strings.Join(records[0], ",") != strings.Join(CSVHeader, ",") {
		return nil, fmt.Errorf("unexpected header %v", records[0])
	}

	rows := make([]engine.RiskRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		mean, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: CT: %w", i+2, err)
		}
		score, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: ALARA_SCORE: %w", i+2, err)
		}
		rows = append(rows, engine.RiskRow{Country: rec[0], Mean: mean, Score: score})
	}
	return rows, nil
}
