// Command ctalara-import copies the observation CSV into the SQLite
// database used by DATA_BACKEND=sqlite. The CSV path is the first argument,
// or DATASET_PATH when no argument is given.
package main

import (
	"context"
	"os"
	"time"

	"ctalara/internal/cli"
	"ctalara/internal/config"
	"ctalara/internal/loader"
	applog "ctalara/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentStorage)

	cfg := config.Load()
	path := cfg.DatasetPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	rows, err := loader.ReadCSVFile(path)
	if err != nil {
		logger.Error("Failed to read dataset", applog.FieldError, err, "path", path)
		os.Exit(1)
	}

	// Rows are stored as read; this only reports what the dashboard will keep.
	_, rep := loader.Normalize(rows)
	if rep.Kept == 0 {
		logger.Error("No usable rows in dataset", "path", path, applog.FieldRowsTotal, rep.Total)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	info, err := repo.ImportRows(ctx, path, rows)
	if err != nil {
		logger.Error("Import failed", applog.FieldError, err, "path", path)
		os.Exit(1)
	}

	logger.Info("Import complete",
		"import_id", info.ID,
		"db_path", cfg.SQLiteDBPath,
		applog.FieldRowsTotal, rep.Total,
		applog.FieldRowsKept, rep.Kept,
		applog.FieldRowsDropped, rep.DroppedTotal())
}
