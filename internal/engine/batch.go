package engine

import (
	"context"

	"github.com/roach88/tplscope/internal/record"
)

// Batch is everything one request logged, handed to a Sink at FinishRequest.
type Batch struct {
	RequestID string
	Seq       int64
	Release   string
	// Attempts counts records offered to the buffer after deduplication,
	// including those dropped because the buffer was full.
	Attempts int
	Records  []record.LogRecord
	// Payload is the concatenated wire encoding of Records.
	Payload []byte
	Stats   Stats
}

// Line renders the batch in the single-line text form.
func (b *Batch) Line() (string, error) {
	return record.EncodeLine(record.Line{
		Release:  b.Release,
		Attempts: b.Attempts,
		Payload:  b.Payload,
	})
}

// Sink receives at most one batch per request.
type Sink interface {
	Deliver(ctx context.Context, b *Batch) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, b *Batch) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, b *Batch) error {
	return f(ctx, b)
}
