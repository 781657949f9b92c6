package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"golang.org/x/text/language"

	"ctalara/internal/amqp"
	"ctalara/internal/cli"
	apphttp "ctalara/internal/http"
	applog "ctalara/internal/log"
	"ctalara/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ds, err := cli.LoadDataset(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to load dataset", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	// Reports are queued when a broker is configured, rendered inline otherwise
	var publisher services.ReportPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, reports will be rendered inline", applog.FieldError, err)
		} else {
			publisher = client
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	renderer := services.NewReportRenderer(logger.WithComponent(applog.ComponentReport).Logger)
	reports := services.NewReportService(renderer, publisher, cfg.ReportDir, logger.WithComponent(applog.ComponentReport).Logger)

	locale, _ := language.Parse(cfg.DisplayLocale)
	srv := apphttp.NewServer(apphttp.Options{
		Addr:       ":" + cfg.Port,
		Dataset:    ds,
		Reports:    reports,
		Locale:     locale,
		SessionTTL: cfg.SessionTTL,
		SessionMax: cfg.SessionMax,
		Logger:     logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := reports.Close(); err != nil {
			logger.Error("Report service close error", applog.FieldError, err)
		}
	})

	logger.Info("Starting ctalara server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"rows", ds.Len(),
		"reports_async", reports.Async())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
