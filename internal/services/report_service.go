package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ctalara/internal/amqp"
	"ctalara/internal/core"
	applog "ctalara/internal/log"
)

// ReportPublisher hands report requests to a worker.
type ReportPublisher interface {
	PublishReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error
	Close() error
}

// ReportTicket is returned to the client that requested a report.
type ReportTicket struct {
	ID     string  `json:"id"`
	Queued bool    `json:"queued"`
	Report *Report `json:"report,omitempty"`
}

// ReportService turns a selection into a report, either by queueing it for
// the worker or by rendering it in the request.
type ReportService struct {
	renderer  *ReportRenderer
	publisher ReportPublisher
	dir       string
	logger    *slog.Logger
	newID     func() string
}

// NewReportService builds the service. publisher may be nil, in which case
// every report is rendered inline.
func NewReportService(renderer *ReportRenderer, publisher ReportPublisher, dir string, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		renderer:  renderer,
		publisher: publisher,
		dir:       dir,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// RequestReport assigns an id to the report of sel. With a publisher the
// request is queued; if publishing fails the report is rendered inline
// instead so the caller still gets its files.
func (s *ReportService) RequestReport(ctx context.Context, ds *core.Dataset, sel core.Selection) (ReportTicket, error) {
	sel = sel.Normalize(ds)
	id := s.newID()

	if s.publisher != nil {
		err := s.publisher.PublishReportRequest(ctx, amqp.NewReportRequestMessage(id, sel))
		if err == nil {
			return ReportTicket{ID: id, Queued: true}, nil
		}
		if ctx.Err() != nil {
			return ReportTicket{}, ctx.Err()
		}
		s.logger.WarnContext(ctx, "Failed to queue report, rendering inline",
			applog.FieldComponent, applog.ComponentReport,
			applog.FieldOperation, applog.OpPublish,
			applog.FieldReportID, id,
			applog.FieldError, err)
	}

	report, err := s.renderer.Render(ctx, ds, sel, s.dir, id)
	if err != nil {
		return ReportTicket{}, err
	}
	return ReportTicket{ID: id, Report: report}, nil
}

// Async reports whether requests are queued for a worker.
func (s *ReportService) Async() bool {
	return s.publisher != nil
}

// Close closes the publisher, if any.
func (s *ReportService) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close report service: %w", err)
		}
	}
	return nil
}
