// Package memory keeps observation rows in process memory. It backs tests
// and lets a dataset be served without any file or database.
package memory

import (
	"context"
	"sync"

	"ctalara/internal/core"
	ports "ctalara/internal/sheets"
)

var _ ports.ObservationReader = (*Store)(nil)

type Store struct {
	mu   sync.RWMutex
	rows []core.RawRow
}

func New(rows []core.RawRow) *Store {
	s := &Store{}
	s.Replace(rows)
	return s
}

// Replace swaps the stored rows for a copy of rows.
func (s *Store) Replace(rows []core.RawRow) {
	cp := make([]core.RawRow, len(rows))
	copy(cp, rows)
	s.mu.Lock()
	s.rows = cp
	s.mu.Unlock()
}

// ReadObservations returns a copy of the stored rows.
func (s *Store) ReadObservations(ctx context.Context) ([]core.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.RawRow, len(s.rows))
	copy(out, s.rows)
	return out, nil
}
