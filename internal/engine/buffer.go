package engine

import (
	"fmt"

	"github.com/roach88/tplscope/internal/record"
)

// DefaultBufferCapacity holds a heavy page's worth of distinct records after
// deduplication with room to spare.
const DefaultBufferCapacity = 20000

// LogBuffer is a fixed-capacity, append-only record store.
//
// Insert never fails: once full, records are dropped and only counted, so
// consumers can detect loss as Attempts() - Stored().
type LogBuffer struct {
	items    []record.LogRecord
	stored   int
	attempts int
}

// NewLogBuffer allocates a buffer for capacity records.
func NewLogBuffer(capacity int) (*LogBuffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("engine: buffer capacity must be positive, got %d", capacity)
	}
	return &LogBuffer{items: make([]record.LogRecord, capacity)}, nil
}

// Insert counts the attempt and stores r if there is room.
func (b *LogBuffer) Insert(r record.LogRecord) bool {
	b.attempts++
	if b.stored == len(b.items) {
		return false
	}
	b.items[b.stored] = r
	b.stored++
	return true
}

// Records returns the stored records. The slice aliases the buffer and is
// only valid until the next Reset.
func (b *LogBuffer) Records() []record.LogRecord {
	return b.items[:b.stored]
}

// Reset empties the buffer and zeroes both counters.
func (b *LogBuffer) Reset() {
	b.stored = 0
	b.attempts = 0
}

// Stored is the number of records held.
func (b *LogBuffer) Stored() int { return b.stored }

// Attempts is the number of Insert calls since the last Reset.
func (b *LogBuffer) Attempts() int { return b.attempts }

// Dropped is the number of records lost to overflow.
func (b *LogBuffer) Dropped() int { return b.attempts - b.stored }

// Capacity is the maximum number of records held.
func (b *LogBuffer) Capacity() int { return len(b.items) }
