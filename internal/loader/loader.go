// Package loader turns raw input rows into the working dataset.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"ctalara/internal/core"
	applog "ctalara/internal/log"
)

// Source column names.
const (
	ColumnArea   = "Reference area"
	ColumnPeriod = "TIME_PERIOD"
	ColumnValue  = "OBS_VALUE"
)

// Drop reasons recorded in a Report.
const (
	DropYear    = "invalid_year"
	DropValue   = "invalid_value"
	DropCountry = "unknown_country"
)

// maxDropSamples bounds how many dropped rows a Report keeps for logging.
const maxDropSamples = 20

// Drop is one row rejected during normalization.
type Drop struct {
	Row    core.RawRow
	Reason string
}

// Report summarizes one normalization run.
type Report struct {
	Total   int
	Kept    int
	Dropped map[string]int
	Samples []Drop
}

func (r *Report) drop(row core.RawRow, reason string) {
	r.Dropped[reason]++
	if len(r.Samples) < maxDropSamples {
		r.Samples = append(r.Samples, Drop{Row: row, Reason: reason})
	}
}

// DroppedTotal returns the number of rows dropped for any reason.
func (r Report) DroppedTotal() int {
	n := 0
	for _, v := range r.Dropped {
		n += v
	}
	return n
}

// ReadCSV reads raw rows from r. Only the three source columns are used; the
// header must contain all of them, other columns are ignored.
func ReadCSV(r io.Reader) ([]core.RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.ErrEmptyDataset
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	cols := make([]int, 3)
	for i, name := range []string{ColumnArea, ColumnPeriod, ColumnValue} {
		pos, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrMissingColumn, name)
		}
		cols[i] = pos
	}

	var rows []core.RawRow
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		rows = append(rows, core.RawRow{
			Area:   field(rec, cols[0]),
			Period: field(rec, cols[1]),
			Value:  field(rec, cols[2]),
		})
	}
	return rows, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) ([]core.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// Normalize converts raw rows into the working dataset. Rows with a year that
// is not an integer, a value that is not a finite number or a country outside
// the name map are dropped and counted in the report. rows is not modified.
func Normalize(rows []core.RawRow) ([]core.Record, Report) {
	rep := Report{Total: len(rows), Dropped: map[string]int{}}
	out := make([]core.Record, 0, len(rows))

	for _, row := range rows {
		year, ok := parseYear(row.Period)
		if !ok {
			rep.drop(row, DropYear)
			continue
		}
		value, ok := parseValue(row.Value)
		if !ok {
			rep.drop(row, DropValue)
			continue
		}
		country, ok := core.DisplayName(row.Area)
		if !ok {
			rep.drop(row, DropCountry)
			continue
		}
		out = append(out, core.Record{Country: country, Year: year, Value: value})
	}
	rep.Kept = len(out)
	return out, rep
}

// Years outside this range are not calendar years in any dataset we read.
const (
	minYear = 1
	maxYear = 9999
)

func parseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if y, err := strconv.Atoi(s); err == nil {
		if y < minYear || y > maxYear {
			return 0, false
		}
		return y, true
	}
	// Spreadsheets hand years back as "2010.0"
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < minYear || f > maxYear {
		return 0, false
	}
	return int(f), true
}

func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Reader is anything that can produce raw rows: a file, a database table or
// a spreadsheet.
type Reader interface {
	ReadObservations(ctx context.Context) ([]core.RawRow, error)
}

// Load reads rows from src, normalizes them and builds the dataset. It fails
// when the source is unreadable or nothing survives normalization.
func Load(ctx context.Context, src Reader, logger *applog.Logger) (*core.Dataset, Report, error) {
	rows, err := src.ReadObservations(ctx)
	if err != nil {
		return nil, Report{}, fmt.Errorf("read observations: %w", err)
	}

	records, rep := Normalize(rows)
	if logger != nil {
		logger.Info("Dataset normalized",
			applog.FieldOperation, applog.OpLoad,
			applog.FieldRowsTotal, rep.Total,
			applog.FieldRowsKept, rep.Kept,
			applog.FieldRowsDropped, rep.DroppedTotal(),
			"dropped_year", rep.Dropped[DropYear],
			"dropped_value", rep.Dropped[DropValue],
			"dropped_country", rep.Dropped[DropCountry])
		for _, d := range rep.Samples {
			logger.Debug("Row dropped",
				"reason", d.Reason,
				"area", d.Row.Area,
				"period", d.Row.Period,
				"value", d.Row.Value)
		}
	}

	ds, err := core.NewDataset(records)
	if err != nil {
		return nil, rep, err
	}
	return ds, rep, nil
}

// FileReader reads observations from a CSV file on disk.
type FileReader struct {
	Path string
}

// NewFileReader returns a FileReader for path.
func NewFileReader(path string) *FileReader {
	return &FileReader{Path: path}
}

func (f *FileReader) ReadObservations(ctx context.Context) ([]core.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadCSVFile(f.Path)
}
