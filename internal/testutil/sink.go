package testutil

import (
	"context"
	"sync"

	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/record"
)

// RecordingSink captures delivered batches in memory.
//
// Thread-safety: safe for concurrent use via internal mutex.
type RecordingSink struct {
	mu      sync.Mutex
	batches []*engine.Batch
	calls   int
	err     error
}

// NewRecordingSink creates an empty sink that accepts every batch.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// FailWith makes every following delivery return err. Nil restores success.
func (s *RecordingSink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Deliver implements engine.Sink. Failed deliveries are counted but not kept.
func (s *RecordingSink) Deliver(_ context.Context, b *engine.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, b)
	return nil
}

// Calls is the number of Deliver calls, successful or not.
func (s *RecordingSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Batches returns the accepted batches in delivery order.
func (s *RecordingSink) Batches() []*engine.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*engine.Batch, len(s.batches))
	copy(out, s.batches)
	return out
}

// Records returns the records of every accepted batch, concatenated.
func (s *RecordingSink) Records() []record.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []record.LogRecord
	for _, b := range s.batches {
		out = append(out, b.Records...)
	}
	return out
}

// Reset forgets every batch and call.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = nil
	s.calls = 0
}
