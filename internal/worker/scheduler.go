package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ctalara/internal/core"
	applog "ctalara/internal/log"
)

// SnapshotScheduler renders the default selection on a cron schedule so a
// current report is always on disk.
type SnapshotScheduler struct {
	dataset  *core.Dataset
	renderer Renderer
	dir      string
	spec     string
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewSnapshotScheduler(ds *core.Dataset, renderer Renderer, dir, spec string, logger *slog.Logger) *SnapshotScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotScheduler{
		dataset:  ds,
		renderer: renderer,
		dir:      dir,
		spec:     spec,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the snapshot job and starts the cron runner. Returns an
// error if already running or if the schedule does not parse.
func (s *SnapshotScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("snapshot scheduler is already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule snapshot '%s': %w", s.spec, err)
	}
	c.Start()

	s.cron = c
	s.running = true

	s.logger.InfoContext(ctx, "Snapshot scheduler started",
		applog.FieldComponent, applog.ComponentWorker,
		"schedule", s.spec)
	return nil
}

// Stop stops the runner and waits for a running snapshot to finish or ctx
// to expire.
func (s *SnapshotScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	done := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.logger.InfoContext(ctx, "Snapshot scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Snapshot scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *SnapshotScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce renders one snapshot of the default selection with every view on.
// Failures are logged; the next tick tries again.
func (s *SnapshotScheduler) RunOnce(ctx context.Context) string {
	sel := core.DefaultSelection(s.dataset)
	for _, v := range core.AllViews {
		sel = sel.WithView(v, true)
	}

	id := "snapshot-" + s.now().UTC().Format("20060102T150405Z")
	if _, err := s.renderer.Render(ctx, s.dataset, sel, s.dir, id); err != nil {
		s.logger.ErrorContext(ctx, "Snapshot failed",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldReportID, id,
			applog.FieldError, err)
		return ""
	}
	return id
}
