package testutil

import "sync"

// FixedRequestID returns the same request id every time, so scenarios that
// start any number of requests keep golden snapshots byte-identical.
//
// Thread-safety: FixedRequestID is stateless and safe for concurrent use.
type FixedRequestID struct {
	id string
}

// NewFixedRequestID creates a generator for id. An empty id becomes
// "test-request-default".
func NewFixedRequestID(id string) *FixedRequestID {
	if id == "" {
		id = "test-request-default"
	}
	return &FixedRequestID{id: id}
}

// Generate implements engine.RequestIDGenerator.
func (g *FixedRequestID) Generate() string {
	return g.id
}

// RequestIDSequence returns predetermined request ids in order.
//
// Thread-safety: RequestIDSequence is safe for concurrent use via internal mutex.
type RequestIDSequence struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewRequestIDSequence creates a generator that returns ids in order.
func NewRequestIDSequence(ids ...string) *RequestIDSequence {
	return &RequestIDSequence{ids: ids}
}

// Generate implements engine.RequestIDGenerator.
//
// Panics if all ids have been consumed, which signals a test that started
// more requests than it planned for.
func (g *RequestIDSequence) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("RequestIDSequence: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
