// Package harness runs instrumentation scenarios against a simulated host
// call stack.
//
// A scenario is a script of host events (frames entered, returned from or
// unwound by an exception) interleaved with the calls a template resolver
// makes on the controller. The harness replays it against a real Controller,
// captures every delivered batch, stores it in an in-memory SQLite store and
// checks the assertions.
//
// # Scenario Format
//
//	name: exception_in_partial
//	description: "A failure raised past its evaluation is finalized on the next mismatch"
//	steps:
//	  - op: start_request
//	  - {op: start, id: 1}
//	  - {op: enter, frame: partial, template: templates/partial.tmpl}
//	  - {op: start, id: 10}
//	  - {op: unwind, frame: root}
//	  - {op: matches, id: 1, expect: true}
//	  - {op: finish, id: 1}
//	  - op: finish_request
//	assertions:
//	  - {type: record, id: 10, failed: true}
//	  - {type: record_order, ids: [10, 1]}
//	  - type: frames_balanced
//
// # Step Operations
//
//   - start_request, finish_request: request boundaries
//   - enter, leave, unwind: host call stack events
//   - start, lookup, namespace, finish, abort, matches: resolver calls
//   - repeat: run nested steps a number of times
//
// # Assertion Types
//
//   - delivery_count: number of batches delivered
//   - record: a delivered record with the given fields exists
//   - record_count: number of records in one batch
//   - record_order: evaluation ids of one batch, in order
//   - stats: subset match on one batch's request statistics
//   - frames_balanced: every frame reference was released exactly once
//
// # Deterministic Testing
//
// Request ids are fixed (scenario request_id, or "test-request-default") and
// batch sequence numbers start at 1 per run, so snapshots are byte-identical
// across runs for golden file comparison. WithClock replaces the per-run
// clock when several runs deliver into one durable store.
package harness
