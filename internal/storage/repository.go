package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ctalara/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores raw observation rows so the dashboard can be
// started from a database instead of a CSV file.
type SQLiteRepository struct {
	db *sql.DB
}

// ImportInfo describes one completed import.
type ImportInfo struct {
	ID         int64
	Source     string
	RowCount   int
	ImportedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ImportRows replaces every stored observation with rows and records the
// import. Rows are stored as read; normalization happens when they are loaded.
func (r *SQLiteRepository) ImportRows(ctx context.Context, source string, rows []core.RawRow) (ImportInfo, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportInfo{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return ImportInfo{}, fmt.Errorf("clear observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (reference_area, time_period, obs_value) VALUES (?, ?, ?)`)
	if err != nil {
		return ImportInfo{}, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Area, row.Period, row.Value); err != nil {
			return ImportInfo{}, fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	info := ImportInfo{Source: source, RowCount: len(rows), ImportedAt: time.Now().UTC()}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO imports (source, row_count, imported_at) VALUES (?, ?, ?)`,
		info.Source, info.RowCount, info.ImportedAt)
	if err != nil {
		return ImportInfo{}, fmt.Errorf("record import: %w", err)
	}
	if info.ID, err = res.LastInsertId(); err != nil {
		return ImportInfo{}, fmt.Errorf("import id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ImportInfo{}, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Observations imported",
		"import_id", info.ID,
		"source", source,
		"rows", info.RowCount)

	return info, nil
}

// ReadObservations returns every stored row in insertion order.
func (r *SQLiteRepository) ReadObservations(ctx context.Context) ([]core.RawRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT reference_area, time_period, obs_value FROM observations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []core.RawRow
	for rows.Next() {
		var row core.RawRow
		if err := rows.Scan(&row.Area, &row.Period, &row.Value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return out, nil
}

// LastImport returns the most recent import, or false when nothing has been
// imported yet.
func (r *SQLiteRepository) LastImport(ctx context.Context) (ImportInfo, bool, error) {
	var info ImportInfo
	err := r.db.QueryRowContext(ctx,
		`SELECT id, source, row_count, imported_at FROM imports ORDER BY id DESC LIMIT 1`).
		Scan(&info.ID, &info.Source, &info.RowCount, &info.ImportedAt)
	if err == sql.ErrNoRows {
		return ImportInfo{}, false, nil
	}
	if err != nil {
		return ImportInfo{}, false, fmt.Errorf("query last import: %w", err)
	}
	return info, true, nil
}
