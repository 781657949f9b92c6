package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"ctalara/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "ct.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestImportAndRead(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, ok, err := repo.LastImport(ctx); err != nil || ok {
		t.Fatalf("LastImport on empty db = %v, %v", ok, err)
	}

	first := []core.RawRow{
		{Area: "Poland", Period: "2010", Value: "5"},
		{Area: "Germany", Period: "2010", Value: ""},
	}
	if _, err := repo.ImportRows(ctx, "first.csv", first); err != nil {
		t.Fatalf("ImportRows: %v", err)
	}

	second := []core.RawRow{
		{Area: "France", Period: "2011", Value: "80.1"},
		{Area: "Japan", Period: "2012", Value: "111"},
		{Area: "Poland", Period: "x", Value: "1"},
	}
	info, err := repo.ImportRows(ctx, "second.csv", second)
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if info.RowCount != 3 || info.ID == 0 {
		t.Fatalf("unexpected import info %+v", info)
	}

	got, err := repo.ReadObservations(ctx)
	if err != nil {
		t.Fatalf("ReadObservations: %v", err)
	}
	if !reflect.DeepEqual(got, second) {
		t.Fatalf("ReadObservations = %+v want %+v", got, second)
	}

	last, ok, err := repo.LastImport(ctx)
	if err != nil || !ok {
		t.Fatalf("LastImport = %v, %v", ok, err)
	}
	if last.Source != "second.csv" || last.RowCount != 3 {
		t.Fatalf("LastImport = %+v", last)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ct.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
	version, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 2 || dirty {
		t.Fatalf("version=%d dirty=%v", version, dirty)
	}
}
