package engine

import "sync/atomic"

// Clock stamps delivered batches with a monotonic sequence number so
// consumers can order batches from one worker without wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use, which lets several
// per-request controllers on one worker share it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start, e.g. the highest sequence
// number already persisted.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
