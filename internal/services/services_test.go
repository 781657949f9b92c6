package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"ctalara/internal/amqp"
	"ctalara/internal/core"
	"ctalara/internal/export"
)

func sampleDataset(t *testing.T) *core.Dataset {
	t.Helper()
	ds, err := core.NewDataset([]core.Record{
		{Country: "Polska", Year: 2010, Value: 10},
		{Country: "Polska", Year: 2011, Value: 20},
		{Country: "Niemcy", Year: 2010, Value: 30},
		{Country: "Niemcy", Year: 2011, Value: 40},
		{Country: "Francja", Year: 2010, Value: 25},
	})
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

type fakePublisher struct {
	err    error
	sent   []*amqp.ReportRequestMessage
	closed bool
}

func (f *fakePublisher) PublishReportRequest(_ context.Context, msg *amqp.ReportRequestMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestReportRenderer_Render(t *testing.T) {
	ds := sampleDataset(t)
	dir := t.TempDir()

	report, err := NewReportRenderer(nil).Render(context.Background(), ds, core.DefaultSelection(ds), dir, "r1")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	want := []string{export.CSVFilename, export.XLSXFilename, TrendsChartFilename}
	if len(report.Files) != len(want) {
		t.Fatalf("files = %s", spew.Sdump(report.Files))
	}
	for _, name := range want {
		info, err := os.Stat(filepath.Join(dir, "r1", name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", name)
		}
	}
	if report.Rows != 5 {
		t.Fatalf("Rows = %d, want 5", report.Rows)
	}

	csv, err := os.ReadFile(filepath.Join(dir, "r1", export.CSVFilename))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(csv, []byte("KRAJ_PL,CT,ALARA_SCORE\nNiemcy,35.00,1.000")) {
		t.Fatalf("unexpected csv:\n%s", csv)
	}
}

func TestReportRenderer_RenderEmptySelection(t *testing.T) {
	ds := sampleDataset(t)
	dir := t.TempDir()

	sel := core.DefaultSelection(ds).WithCountries()
	report, err := NewReportRenderer(nil).Render(context.Background(), ds, sel, dir, "empty")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if report.Rows != 0 {
		t.Fatalf("Rows = %d", report.Rows)
	}
	csv, err := os.ReadFile(filepath.Join(dir, "empty", export.CSVFilename))
	if err != nil {
		t.Fatal(err)
	}
	if string(bytes.TrimSpace(csv)) != "KRAJ_PL,CT,ALARA_SCORE" {
		t.Fatalf("expected header only, got %q", csv)
	}
}

func TestReportRenderer_RejectsInvalidID(t *testing.T) {
	ds := sampleDataset(t)
	root := t.TempDir()
	dir := filepath.Join(root, "reports")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(keep, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"", ".", "..", "../escaped", "a/b", `a\b`, "/abs"} {
		t.Run(id, func(t *testing.T) {
			_, err := NewReportRenderer(nil).Render(context.Background(), ds, core.DefaultSelection(ds), dir, id)
			if !errors.Is(err, ErrInvalidReportID) {
				t.Fatalf("Render(%q) err = %v, want ErrInvalidReportID", id, err)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(root, "escaped")); !os.IsNotExist(err) {
		t.Fatalf("report written outside the report directory, stat err = %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("report directory contents were removed: %v", err)
	}
}

func TestValidReportID(t *testing.T) {
	for id, want := range map[string]bool{
		"3f0c8a52-1b7e-4d8e-9a55-0c2d7e1f4b6a": true,
		"snapshot-20240101T060000Z":            true,
		"r1":                                   true,
		"..":                                   false,
		"x/..":                                 false,
	} {
		if got := ValidReportID(id); got != want {
			t.Errorf("ValidReportID(%q) = %v want %v", id, got, want)
		}
	}
}

func TestReportRenderer_CancelledContext(t *testing.T) {
	ds := sampleDataset(t)
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewReportRenderer(nil).Render(ctx, ds, core.DefaultSelection(ds), dir, "c1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "c1")); !os.IsNotExist(err) {
		t.Fatalf("partial report directory should be removed, stat err = %v", err)
	}
}

func TestReportService_RequestReport(t *testing.T) {
	ds := sampleDataset(t)

	t.Run("inline without publisher", func(t *testing.T) {
		dir := t.TempDir()
		svc := NewReportService(NewReportRenderer(nil), nil, dir, nil)
		svc.newID = func() string { return "fixed" }

		ticket, err := svc.RequestReport(context.Background(), ds, core.DefaultSelection(ds))
		if err != nil {
			t.Fatalf("RequestReport: %v", err)
		}
		if ticket.Queued || ticket.Report == nil || ticket.ID != "fixed" {
			t.Fatalf("unexpected ticket %s", spew.Sdump(ticket))
		}
		if svc.Async() {
			t.Fatal("service without publisher should not be async")
		}
	})

	t.Run("queued with publisher", func(t *testing.T) {
		pub := &fakePublisher{}
		svc := NewReportService(NewReportRenderer(nil), pub, t.TempDir(), nil)

		sel := core.DefaultSelection(ds).WithCountries("Polska", "Atlantyda")
		ticket, err := svc.RequestReport(context.Background(), ds, sel)
		if err != nil {
			t.Fatalf("RequestReport: %v", err)
		}
		if !ticket.Queued || ticket.Report != nil || ticket.ID == "" {
			t.Fatalf("unexpected ticket %s", spew.Sdump(ticket))
		}
		if len(pub.sent) != 1 {
			t.Fatalf("expected one message, got %d", len(pub.sent))
		}
		msg := pub.sent[0]
		if msg.ID != ticket.ID {
			t.Fatalf("message id %q != ticket id %q", msg.ID, ticket.ID)
		}
		if len(msg.Countries) != 1 || msg.Countries[0] != "Polska" {
			t.Fatalf("selection should be normalized before queueing: %v", msg.Countries)
		}
	})

	t.Run("falls back to inline when publishing fails", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("circuit breaker is open")}
		svc := NewReportService(NewReportRenderer(nil), pub, t.TempDir(), nil)

		ticket, err := svc.RequestReport(context.Background(), ds, core.DefaultSelection(ds))
		if err != nil {
			t.Fatalf("RequestReport: %v", err)
		}
		if ticket.Queued || ticket.Report == nil {
			t.Fatalf("expected inline report, got %s", spew.Sdump(ticket))
		}
	})
}

func TestReportService_Close(t *testing.T) {
	if err := NewReportService(NewReportRenderer(nil), nil, "", nil).Close(); err != nil {
		t.Fatalf("Close without publisher: %v", err)
	}

	pub := &fakePublisher{}
	if err := NewReportService(NewReportRenderer(nil), pub, "", nil).Close(); err != nil {
		t.Fatal(err)
	}
	if !pub.closed {
		t.Fatal("publisher should be closed")
	}
}
