package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"ctalara/internal/engine"
)

const (
	// XLSXFilename is the download name of the workbook export.
	XLSXFilename = "alara_report.xlsx"
	// XLSXContentType is sent with the workbook export.
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Sheet names of the workbook.
const (
	SheetRisk   = "ALARA"
	SheetStats  = "Statystyki"
	SheetTrends = "Trendy"
)

// WriteWorkbook renders the risk table, the summary statistics and the trend
// series of d into an XLSX workbook, one sheet each. Views that d does not
// carry produce a sheet with headers only.
func WriteWorkbook(w io.Writer, d engine.Dashboard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRisk); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetStats, SheetTrends} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	var risk []engine.RiskRow
	if d.Risk != nil {
		risk = d.Risk.Rows
	}
	rows := make([][]any, 0, len(risk))
	for _, r := range risk {
		rows = append(rows, []any{r.Country, round(r.Mean, MeanDecimals), round(r.Score, ScoreDecimals)})
	}
	if err := writeTable(f, SheetRisk, CSVHeader, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, s := range d.Stats {
		rows = append(rows, []any{s.Country, round(s.Mean, MeanDecimals), round(s.Min, MeanDecimals), round(s.Max, MeanDecimals), s.Count})
	}
	if err := writeTable(f, SheetStats, []string{"KRAJ_PL", "SREDNIA", "MIN", "MAX", "N"}, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, s := range d.Trends {
		for _, p := range s.Points {
			rows = append(rows, []any{s.Country, p.Year, round(p.Value, MeanDecimals)})
		}
	}
	if err := writeTable(f, SheetTrends, []string{"KRAJ_PL", "ROK", "LICZBA_CT_NA_1000"}, rows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []string, rows [][]any) error {
	for i, h := range header {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, col+"1", h); err != nil {
			return fmt.Errorf("%s header: %w", sheet, err)
		}
		if err := f.SetColWidth(sheet, col, col, 20); err != nil {
			return fmt.Errorf("%s width: %w", sheet, err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("%s %s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
