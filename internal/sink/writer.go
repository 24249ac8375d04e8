package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/roach88/tplscope/internal/engine"
)

// Writer writes each batch as one newline-terminated text line.
//
// Thread-safety: safe for concurrent use; lines are never interleaved.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a sink writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Deliver implements engine.Sink.
func (s *Writer) Deliver(_ context.Context, b *engine.Batch) error {
	line, err := b.Line()
	if err != nil {
		return fmt.Errorf("writer sink: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		return fmt.Errorf("writer sink: %w", err)
	}
	return nil
}
