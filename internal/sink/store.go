package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/store"
)

// Store persists batches to the SQLite store.
type Store struct {
	st     *store.Store
	logger *slog.Logger
}

// NewStore creates a sink on an open store. The caller owns the store.
func NewStore(st *store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{st: st, logger: logger}
}

// Deliver implements engine.Sink. Redelivering a stored batch succeeds
// without writing it twice.
func (s *Store) Deliver(ctx context.Context, b *engine.Batch) error {
	id, inserted, err := s.st.WriteBatch(ctx, b)
	if err != nil {
		return fmt.Errorf("store sink: %w", err)
	}
	if !inserted {
		s.logger.Debug("batch already stored", "batch_id", id, "request_id", b.RequestID, "seq", b.Seq)
	}
	return nil
}
