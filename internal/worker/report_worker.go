package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ctalara/internal/amqp"
	"ctalara/internal/core"
	applog "ctalara/internal/log"
	"ctalara/internal/services"
)

// Renderer writes a report for a selection.
type Renderer interface {
	Render(ctx context.Context, ds *core.Dataset, sel core.Selection, dir, id string) (*services.Report, error)
}

// ReportWorker renders report requests received from AMQP against the
// dataset loaded at worker startup.
type ReportWorker struct {
	dataset  *core.Dataset
	renderer Renderer
	dir      string
	logger   *slog.Logger
}

func NewReportWorker(ds *core.Dataset, renderer Renderer, dir string, logger *slog.Logger) *ReportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWorker{
		dataset:  ds,
		renderer: renderer,
		dir:      dir,
		logger:   logger,
	}
}

// HandleReportRequest processes a single report request message from AMQP
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	w.logger.InfoContext(ctx, "Processing report request",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldReportID, msg.ID,
		"requested_at", msg.RequestedAt)

	sel := msg.Selection().Normalize(w.dataset)
	report, err := w.renderer.Render(ctx, w.dataset, sel, w.dir, msg.ID)
	if err != nil {
		return fmt.Errorf("render report %s: %w", msg.ID, err)
	}

	w.logger.InfoContext(ctx, "Report request completed",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldReportID, report.ID,
		"dir", report.Dir,
		"files", report.Files)
	return nil
}
