// Package sink provides engine.Sink implementations for delivered batches.
//
//   - Writer: one text line per batch on any io.Writer (files, stderr)
//   - Redis: RPUSH the same line onto a bounded Redis list
//   - Store: persist to the SQLite store for later inspection
//   - Metered: OpenTelemetry counters around any sink
//   - Fanout: deliver one batch to several sinks
//
// Every sink receives at most one batch per request and must not retain the
// batch's slices beyond Deliver unless it owns them; the controller hands
// out fresh copies per batch.
package sink
