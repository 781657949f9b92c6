package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ctalara/internal/amqp"
	"ctalara/internal/cli"
	applog "ctalara/internal/log"
	"ctalara/internal/services"
	"ctalara/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.AMQPEnabled() && cfg.ReportCron == "" {
		logger.Error("Nothing to do: set AMQP_URL, REPORT_CRON or both")
		os.Exit(1)
	}

	ds, err := cli.LoadDataset(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to load dataset", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	renderer := services.NewReportRenderer(logger.WithComponent(applog.ComponentReport).Logger)
	workerLogger := logger.WithComponent(applog.ComponentWorker).Logger

	var scheduler *worker.SnapshotScheduler
	if cfg.ReportCron != "" {
		scheduler = worker.NewSnapshotScheduler(ds, renderer, cfg.ReportDir, cfg.ReportCron, workerLogger)
	}
	var client *amqp.Client
	if cfg.AMQPEnabled() {
		client, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if scheduler != nil {
			if err := scheduler.Stop(ctx); err != nil {
				logger.Warn("Scheduler stop", applog.FieldError, err)
			}
		}
		if client != nil {
			if err := client.Close(); err != nil {
				logger.Warn("AMQP close", applog.FieldError, err)
			}
		}
	})

	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start snapshot scheduler", applog.FieldError, err, "schedule", cfg.ReportCron)
			os.Exit(1)
		}
		logger.Info("Snapshot scheduler started", "schedule", cfg.ReportCron)
	}

	if client != nil {
		handler := worker.NewReportWorker(ds, renderer, cfg.ReportDir, workerLogger)
		go func() {
			err := client.ConsumeReportRequests(ctx, handler.HandleReportRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Report consumption failed", applog.FieldError, err)
			}
		}()
		logger.Info("Consuming report requests", "queue", cfg.AMQPQueue)
	}

	logger.Info("Starting ctalara-worker", "report_dir", cfg.ReportDir, "rows", ds.Len())
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
