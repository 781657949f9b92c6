package sheets

import (
	"context"

	"ctalara/internal/core"
)

// Ports for dataset adapters.
type (
	// ObservationReader returns the raw observation rows of a source. Rows are
	// returned as read; the loader normalizes them.
	ObservationReader interface {
		ReadObservations(ctx context.Context) ([]core.RawRow, error)
	}
)
