package google

import (
	"fmt"
	"strings"

	"ctalara/internal/core"
	"ctalara/internal/loader"
)

// parseObservations converts a values matrix (as returned by the Sheets API)
// into raw rows. The first row is the header and must name the three source
// columns; their order does not matter.
func parseObservations(values [][]interface{}) ([]core.RawRow, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	colArea := indexOf(headers, loader.ColumnArea)
	colPeriod := indexOf(headers, loader.ColumnPeriod)
	colValue := indexOf(headers, loader.ColumnValue)
	if colArea == -1 || colPeriod == -1 || colValue == -1 {
		missing := make([]string, 0, 3)
		if colArea == -1 {
			missing = append(missing, loader.ColumnArea)
		}
		if colPeriod == -1 {
			missing = append(missing, loader.ColumnPeriod)
		}
		if colValue == -1 {
			missing = append(missing, loader.ColumnValue)
		}
		return nil, fmt.Errorf("%w: %s; got headers=%v", core.ErrMissingColumn, strings.Join(missing, ","), headers)
	}

	rows := make([]core.RawRow, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if len(row) == 0 {
			continue
		}
		rows = append(rows, core.RawRow{
			Area:   safeGet(row, colArea),
			Period: safeGet(row, colPeriod),
			Value:  safeGet(row, colValue),
		})
	}
	return rows, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

func safeGet(row []string, i int) string {
	if i >= 0 && i < len(row) {
		return row[i]
	}
	return ""
}
