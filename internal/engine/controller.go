package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/tplscope/internal/dedup"
	"github.com/roach88/tplscope/internal/record"
)

// Controller instruments one request at a time.
//
// State machine:
//
//	disabled --StartRequest--> active --FinishRequest--> disabled
//
// Per-evaluation calls are no-ops while disabled. StartRequest while active
// discards the in-flight request without delivering it.
//
// Thread-safety model: none. A Controller belongs to a single request or
// worker and must be driven from one goroutine. Run one Controller per
// concurrent request.
type Controller struct {
	frames     Frames
	sink       Sink
	logger     *slog.Logger
	normalizer record.PathNormalizer
	release    string
	clock      *Clock
	ids        RequestIDGenerator

	stackCapacity  int
	bufferCapacity int
	groupSize      int
	rotateEvery    int

	stack   *EvaluationStack
	filters *dedup.FilterGroup
	buffer  *LogBuffer

	active    bool
	requestID string
	stats     Stats
	last      Stats
}

// Option configures a Controller.
type Option func(*Controller)

// WithStackCapacity bounds the number of concurrently active evaluations.
//
// Default: 64 (DefaultStackCapacity)
func WithStackCapacity(n int) Option {
	return func(c *Controller) { c.stackCapacity = n }
}

// WithBufferCapacity bounds the number of records delivered per request.
//
// Default: 20000 (DefaultBufferCapacity)
func WithBufferCapacity(n int) Option {
	return func(c *Controller) { c.bufferCapacity = n }
}

// WithFilterGroup sets the number of Bloom filters and the rotation interval.
//
// Default: 2 filters rotated every 1000 insertions.
func WithFilterGroup(size, rotateEvery int) Option {
	return func(c *Controller) {
		c.groupSize = size
		c.rotateEvery = rotateEvery
	}
}

// WithLogger sets the logger for request-level events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithRelease tags batches with a release or deploy identifier.
func WithRelease(release string) Option {
	return func(c *Controller) { c.release = release }
}

// WithPathNormalizer sets how template file names are reduced before hashing.
func WithPathNormalizer(p record.PathNormalizer) Option {
	return func(c *Controller) { c.normalizer = p }
}

// WithClock sets the batch sequence clock, e.g. to resume after persisted
// batches or to share one clock between controllers on a worker.
func WithClock(clock *Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithRequestIDGenerator overrides the UUIDv7 request id generator.
func WithRequestIDGenerator(g RequestIDGenerator) Option {
	return func(c *Controller) { c.ids = g }
}

// NewController allocates every fixed-capacity structure up front; nothing
// on the per-evaluation path allocates afterwards.
func NewController(frames Frames, sink Sink, opts ...Option) (*Controller, error) {
	if frames == nil {
		return nil, errors.New("engine: frames provider is required")
	}
	if sink == nil {
		return nil, ErrNoSink
	}

	c := &Controller{
		frames:         frames,
		sink:           sink,
		logger:         slog.Default(),
		clock:          NewClock(),
		ids:            UUIDv7Generator{},
		stackCapacity:  DefaultStackCapacity,
		bufferCapacity: DefaultBufferCapacity,
		groupSize:      dedup.DefaultGroupSize,
		rotateEvery:    dedup.DefaultRotateEvery,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	if c.stack, err = NewEvaluationStack(frames, c.stackCapacity, c.finalize); err != nil {
		return nil, err
	}
	if c.filters, err = dedup.NewFilterGroup(c.groupSize, c.rotateEvery); err != nil {
		return nil, err
	}
	if c.buffer, err = NewLogBuffer(c.bufferCapacity); err != nil {
		return nil, err
	}
	return c, nil
}

// StartRequest resets all per-request state and enables instrumentation.
// Anything left over from an unfinished request is discarded.
func (c *Controller) StartRequest() {
	if c.active {
		c.logger.Warn("instrumented request restarted before finishing",
			"request_id", c.requestID,
			"open_evaluations", c.stack.Depth(),
			"buffered", c.buffer.Stored(),
		)
	}
	c.stack.Discard()
	c.filters.Reset()
	c.buffer.Reset()
	c.stats = Stats{}
	c.requestID = c.ids.Generate()
	c.active = true
}

// Active reports whether a request is being instrumented.
func (c *Controller) Active() bool { return c.active }

// RequestID returns the id of the current or most recent request.
func (c *Controller) RequestID() string { return c.requestID }

// StartEvaluation begins tracking placeholder id in the caller's frame.
func (c *Controller) StartEvaluation(id uint16) {
	if !c.active {
		return
	}
	c.stack.Start(id, c.frames.Current())
}

// Matches reports whether id in the caller's frame is the evaluation being
// tracked. Resolvers call it once per lookup chain to decide whether to
// report steps.
func (c *Controller) Matches(id uint16) bool {
	if !c.active {
		return false
	}
	return c.stack.Matches(id, c.frames.Current())
}

// RecordLookupStep records one resolution step and how it was satisfied.
func (c *Controller) RecordLookupStep(id uint16, flags record.StepFlags) {
	if !c.active {
		return
	}
	c.stack.RecordLookupStep(id, c.frames.Current(), flags)
}

// RecordNamespaceIndex records where the first lookup step succeeded.
func (c *Controller) RecordNamespaceIndex(id uint16, idx record.NamespaceIndex) {
	if !c.active {
		return
	}
	c.stack.RecordNamespaceIndex(id, c.frames.Current(), idx)
}

// FinishEvaluation marks id as successfully resolved.
func (c *Controller) FinishEvaluation(id uint16) {
	if !c.active {
		return
	}
	c.stack.Finish(id, c.frames.Current())
}

// AbortEvaluation marks id as failed, along with every enclosing evaluation
// in the same frame that the failure propagates through.
func (c *Controller) AbortEvaluation(id uint16) {
	if !c.active {
		return
	}
	c.stack.Abort(id, c.frames.Current())
}

// finalize converts a popped context to a record and buffers it if novel.
func (c *Controller) finalize(ctx EvaluationContext, failed bool) {
	rec := record.LogRecord{
		TemplateHash: c.normalizer.Hash(c.frames.Template(ctx.Owner)),
		EvaluationID: ctx.EvaluationID,
		Namespace:    ctx.Namespace,
		LookupCount:  ctx.LookupCount,
		Flags:        ctx.Flags,
	}
	if failed {
		rec.LookupCount |= record.FailureBit
		c.stats.Failed++
	}
	c.stats.Finalized++

	if c.filters.Contains(rec) {
		c.stats.Duplicates++
		return
	}
	c.filters.Insert(rec)
	c.buffer.Insert(rec)
}

// FinishRequest finalizes every open evaluation as failed and delivers the
// buffered records as one batch. The sink is not called when nothing was
// stored. Otherwise it is always called, with ctx, and its error is returned
// as a DeliveryError: CANCELED when the sink gave up because ctx ended,
// SINK_FAILED for anything else. The controller is disabled afterwards
// whatever the outcome.
func (c *Controller) FinishRequest(ctx context.Context) error {
	if !c.active {
		return nil
	}
	c.active = false

	c.stats.Flushed = c.stack.FlushAll()
	c.collectStats()

	logger := c.logger.With("request_id", c.requestID)
	if c.stats.Untracked > 0 {
		logger.Warn("evaluation stack overflowed", "untracked", c.stats.Untracked, "capacity", c.stack.Capacity())
	}
	if c.stats.Dropped > 0 {
		logger.Warn("log buffer overflowed", "dropped", c.stats.Dropped, "capacity", c.buffer.Capacity())
	}
	if c.stats.FilterSaturated {
		logger.Warn("dedup filter saturated, duplicates may be over-suppressed",
			"filters", c.filters.Size(), "rotate_every", c.filters.RotateEvery())
	}

	if c.buffer.Stored() == 0 {
		logger.Debug("request finished with nothing to deliver", "finalized", c.stats.Finalized)
		return nil
	}

	records := make([]record.LogRecord, c.buffer.Stored())
	copy(records, c.buffer.Records())
	batch := &Batch{
		RequestID: c.requestID,
		Seq:       c.clock.Next(),
		Release:   c.release,
		Attempts:  c.buffer.Attempts(),
		Records:   records,
		Payload:   record.EncodeBatch(records),
		Stats:     c.stats,
	}

	if err := c.sink.Deliver(ctx, batch); err != nil {
		code := ErrCodeSinkFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			code = ErrCodeCanceled
		}
		logger.Error("batch delivery failed", "seq", batch.Seq, "records", len(records), "code", code, "error", err)
		return &DeliveryError{Code: code, RequestID: c.requestID, Records: len(records), Err: err}
	}

	logger.Info("batch delivered",
		"seq", batch.Seq,
		"records", len(records),
		"attempts", batch.Attempts,
		"duplicates", c.stats.Duplicates,
		"swept", c.stats.Swept,
		"flushed", c.stats.Flushed,
	)
	return nil
}

func (c *Controller) collectStats() {
	c.stats.Evaluations = c.stack.pushed
	c.stats.Untracked = c.stack.overflows
	c.stats.CleanupSweeps = c.stack.sweeps
	c.stats.Swept = c.stack.swept
	c.stats.Attempts = c.buffer.Attempts()
	c.stats.Stored = c.buffer.Stored()
	c.stats.Dropped = c.buffer.Dropped()
	c.stats.Rotations = c.filters.Rotations()
	c.stats.FilterSaturated = c.filters.Saturated()
	c.last = c.stats
}

// LastStats returns the statistics of the most recently finished request.
func (c *Controller) LastStats() Stats { return c.last }

// Depth is the number of evaluations currently tracked.
func (c *Controller) Depth() int { return c.stack.Depth() }
