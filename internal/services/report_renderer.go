package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ctalara/internal/chart"
	"ctalara/internal/core"
	"ctalara/internal/engine"
	"ctalara/internal/export"
	applog "ctalara/internal/log"
)

// TrendsChartFilename is the chart written next to the tabular exports.
const TrendsChartFilename = "trends.png"

// ErrInvalidReportID is returned for ids that are not a single plain path
// segment.
var ErrInvalidReportID = errors.New("invalid report id")

// ValidReportID reports whether id can name a directory inside the report
// directory.
func ValidReportID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && filepath.Base(id) == id && filepath.IsLocal(id)
}

// Report describes a rendered report directory.
type Report struct {
	ID        string    `json:"id"`
	Dir       string    `json:"dir"`
	Files     []string  `json:"files"`
	Rows      int       `json:"filtered_rows"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportRenderer writes the downloadable artifacts of a selection to disk.
type ReportRenderer struct {
	logger *slog.Logger
}

func NewReportRenderer(logger *slog.Logger) *ReportRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportRenderer{logger: logger}
}

// Render computes the dashboard of sel with the trend, stats and export
// views forced on and writes the CSV export, the workbook and the trend
// chart into dir/id. The three files are written concurrently; the first
// failure cancels the others and the partial directory is removed.
func (r *ReportRenderer) Render(ctx context.Context, ds *core.Dataset, sel core.Selection, dir, id string) (*Report, error) {
	if !ValidReportID(id) {
		return nil, fmt.Errorf("render report %q: %w", id, ErrInvalidReportID)
	}
	start := time.Now()

	sel = sel.Clone().
		WithView(core.ViewTrends, true).
		WithView(core.ViewStats, true).
		WithView(core.ViewExport, true)
	d, err := engine.Compute(ds, sel)
	if err != nil {
		return nil, fmt.Errorf("compute report %s: %w", id, err)
	}

	out := filepath.Join(dir, id)
	if err := os.MkdirAll(out, 0755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	writers := map[string]func(io.Writer) error{
		export.CSVFilename: func(w io.Writer) error {
			return export.WriteCSV(w, *d.Risk)
		},
		export.XLSXFilename: func(w io.Writer) error {
			return export.WriteWorkbook(w, d)
		},
		TrendsChartFilename: func(w io.Writer) error {
			return chart.Lines(w, d.Trends, chart.DefaultOptions("Średnia liczba badań CT na 1000 mieszkańców", "CT / 1000"))
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, write := range writers {
		name, write := name, write
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return writeFile(filepath.Join(out, name), write)
		})
	}
	if err := g.Wait(); err != nil {
		os.RemoveAll(out)
		return nil, fmt.Errorf("render report %s: %w", id, err)
	}

	files := make([]string, 0, len(writers))
	for name := range writers {
		files = append(files, name)
	}
	sort.Strings(files)

	report := &Report{
		ID:        id,
		Dir:       out,
		Files:     files,
		Rows:      d.Filtered,
		CreatedAt: time.Now().UTC(),
	}

	r.logger.InfoContext(ctx, "Report rendered",
		applog.FieldComponent, applog.ComponentReport,
		applog.FieldOperation, applog.OpRender,
		applog.FieldReportID, id,
		applog.FieldCountries, d.Selection.Countries,
		applog.FieldYearFrom, d.Selection.Years.From,
		applog.FieldYearTo, d.Selection.Years.To,
		applog.FieldDuration, time.Since(start).Milliseconds())

	return report, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
