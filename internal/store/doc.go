// Package store provides SQLite-backed durable storage for delivered
// instrumentation batches.
//
// Each batch keeps its wire payload verbatim alongside the decoded records,
// so stored batches can be re-emitted as log lines and also queried per
// placeholder:
//   - batches: one row per delivered request, idempotent on (request_id, seq)
//   - records: the batch's records, one row each, in buffer order
//
// # Ordering
//
// Listing queries order by seq ASC, id ASC so results are stable regardless
// of insertion timing.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
