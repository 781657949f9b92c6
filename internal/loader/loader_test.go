package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"ctalara/internal/core"
	applog "ctalara/internal/log"
	"ctalara/internal/sheets/memory"
)

const sampleCSV = `DATAFLOW,Reference area,Measure,TIME_PERIOD,OBS_VALUE,OBS_STATUS
OECD,Poland,CT,2010,5,A
OECD,Poland,CT,2010,7,A
OECD,Germany,CT,2010,9,A
OECD,Brazil,CT,2010,3,A
OECD,France,CT,n/a,4,A
OECD,France,CT,2011,,M
OECD,France,CT,2012.0,12.5,A
OECD,Japan,CT,2013,NaN,A
`

func TestReadCSV(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("expected 8 rows, got %d", len(rows))
	}
	want := core.RawRow{Area: "Poland", Period: "2010", Value: "5"}
	if rows[0] != want {
		t.Fatalf("rows[0] = %+v want %+v", rows[0], want)
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Reference area,TIME_PERIOD\nPoland,2010\n"))
	if !errors.Is(err, core.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("")); !errors.Is(err, core.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset for empty input, got %v", err)
	}
}

func TestReadCSVByteOrderMark(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("\ufeffReference area,TIME_PERIOD,OBS_VALUE\nItaly,2015,30.5\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 1 || rows[0].Area != "Italy" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestNormalize(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	before := append([]core.RawRow(nil), rows...)

	records, rep := Normalize(rows)

	want := []core.Record{
		{Country: "Polska", Year: 2010, Value: 5},
		{Country: "Polska", Year: 2010, Value: 7},
		{Country: "Niemcy", Year: 2010, Value: 9},
		{Country: "Francja", Year: 2012, Value: 12.5},
	}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("records mismatch:\n%s", spew.Sdump(records))
	}
	if rep.Total != 8 || rep.Kept != 4 || rep.DroppedTotal() != 4 {
		t.Fatalf("report mismatch: %s", spew.Sdump(rep))
	}
	if rep.Dropped[DropYear] != 1 || rep.Dropped[DropValue] != 2 || rep.Dropped[DropCountry] != 1 {
		t.Fatalf("drop reasons mismatch: %v", rep.Dropped)
	}
	if len(rep.Samples) != 4 {
		t.Fatalf("expected 4 drop samples, got %d", len(rep.Samples))
	}
	if !reflect.DeepEqual(rows, before) {
		t.Fatalf("Normalize modified its input")
	}
}

func TestParseYear(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"2010", 2010, true},
		{" 2011 ", 2011, true},
		{"2012.0", 2012, true},
		{"2012.5", 0, false},
		{"", 0, false},
		{"2010-Q1", 0, false},
		{"Inf", 0, false},
		{"NaN", 0, false},
		{"1e300", 0, false},
		{"-1e300", 0, false},
		{"99999999999", 0, false},
		{"-2010", 0, false},
		{"2.01e3", 2010, true},
		{"9999", 9999, true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := parseYear(tc.in)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("parseYear(%q) = %d,%v want %d,%v", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}

type staticReader struct {
	rows []core.RawRow
	err  error
}

func (s staticReader) ReadObservations(context.Context) ([]core.RawRow, error) {
	return s.rows, s.err
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	logger := applog.Discard()

	t.Run("builds dataset", func(t *testing.T) {
		ds, rep, err := Load(ctx, staticReader{rows: []core.RawRow{
			{Area: "Poland", Period: "2010", Value: "5"},
			{Area: "Narnia", Period: "2010", Value: "5"},
		}}, logger)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if ds.Len() != 1 || rep.Dropped[DropCountry] != 1 {
			t.Fatalf("unexpected result len=%d report=%+v", ds.Len(), rep)
		}
	})

	t.Run("memory store", func(t *testing.T) {
		store := memory.New([]core.RawRow{
			{Area: "Germany", Period: "2011", Value: "9"},
			{Area: "Poland", Period: "2010", Value: "abc"},
		})
		ds, rep, err := Load(ctx, store, logger)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !reflect.DeepEqual(ds.Countries(), []string{"Niemcy"}) || rep.Dropped[DropValue] != 1 {
			t.Fatalf("unexpected result %s", spew.Sdump(ds.Records(), rep))
		}

		store.Replace(nil)
		if _, _, err := Load(ctx, store, logger); !errors.Is(err, core.ErrEmptyDataset) {
			t.Fatalf("expected ErrEmptyDataset after Replace(nil), got %v", err)
		}
	})

	t.Run("nothing usable", func(t *testing.T) {
		_, _, err := Load(ctx, staticReader{rows: []core.RawRow{{Area: "Narnia", Period: "2010", Value: "1"}}}, logger)
		if !errors.Is(err, core.ErrEmptyDataset) {
			t.Fatalf("expected ErrEmptyDataset, got %v", err)
		}
	})

	t.Run("source error", func(t *testing.T) {
		boom := errors.New("boom")
		_, _, err := Load(ctx, staticReader{err: boom}, logger)
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped source error, got %v", err)
		}
	})
}

func TestFileReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ct.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	rows, err := NewFileReader(path).ReadObservations(context.Background())
	if err != nil {
		t.Fatalf("ReadObservations: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("expected 8 rows, got %d", len(rows))
	}

	if _, err := NewFileReader(filepath.Join(t.TempDir(), "missing.csv")).ReadObservations(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
