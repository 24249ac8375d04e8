// Package engine implements the placeholder instrumentation core.
//
// A template renderer resolves placeholders such as "$biz.name.title" through
// a chain of attribute and mapping lookups. The resolver reports each step to
// a Controller, which records how the resolution happened, suppresses
// near-identical repeats, and hands one batch per request to a telemetry Sink.
//
// ARCHITECTURE:
//
// Single-Threaded, In-Line:
// The controller is driven synchronously by the resolver on the rendering
// goroutine. It schedules nothing, spawns nothing, and only blocks inside
// Sink.Deliver at FinishRequest. Each request (or worker) owns its own
// Controller; there is no shared global state and no locking.
//
// Event Flow:
//  1. StartRequest resets the stack, filter group and buffer.
//  2. StartEvaluation pushes an EvaluationContext bound to the caller's frame.
//  3. RecordLookupStep / RecordNamespaceIndex mutate the stack top, but only
//     when (frame, id) matches it.
//  4. FinishEvaluation / AbortEvaluation pop and finalize contexts.
//  5. Finalized contexts become LogRecords, pass through the FilterGroup, and
//     novel ones are copied into the LogBuffer.
//  6. FinishRequest flushes what is left as failures and delivers the buffer.
//
// Implicit Cleanup:
// When an exception unwinds through a frame that was evaluating a placeholder
// and is caught higher up, no finish or abort call arrives for that context.
// The stack detects this lazily: whenever the top context's owning frame is no
// longer an ancestor of the caller's frame, a cleanup sweep finalizes every
// dead context on top as failed. The ancestry walk only runs on a mismatch,
// never per lookup step.
//
// Bounded Memory:
// The stack, filter bit arrays and log buffer are sized once at construction.
// Overflowing any of them degrades to an untracked evaluation, a possible
// false duplicate, or a dropped-but-counted record. None is an error.
package engine
