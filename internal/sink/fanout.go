package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/tplscope/internal/engine"
)

// Fanout delivers every batch to each of its sinks in order. A failing sink
// does not stop delivery to the rest; all failures are joined.
type Fanout []engine.Sink

// Deliver implements engine.Sink.
func (f Fanout) Deliver(ctx context.Context, b *engine.Batch) error {
	var errs []error
	for i, s := range f {
		if err := s.Deliver(ctx, b); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
