package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/tplscope/internal/dedup"
	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/record"
	"github.com/roach88/tplscope/internal/sink"
	"github.com/roach88/tplscope/internal/store"
	"github.com/roach88/tplscope/internal/testutil"
)

// runConfig collects Run options.
type runConfig struct {
	logger     *slog.Logger
	sink       engine.Sink
	normalizer record.PathNormalizer
	clock      *engine.Clock
	options    []engine.Option
}

// Option configures Run.
type Option func(*runConfig)

// WithLogger sets the controller's logger. Default discards logs.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithSink delivers every batch to s as well as to the harness's own
// recording and store sinks. A failing extra sink fails the delivery.
func WithSink(s engine.Sink) Option {
	return func(c *runConfig) { c.sink = s }
}

// WithPathNormalizer sets the template name normalizer used both by the
// controller and to resolve record hashes back to names.
func WithPathNormalizer(p record.PathNormalizer) Option {
	return func(c *runConfig) { c.normalizer = p }
}

// WithClock numbers batches from clock instead of a fresh clock per run.
// Runs that deliver into one durable store share a clock so their batches
// never collide on (request id, seq).
func WithClock(clock *engine.Clock) Option {
	return func(c *runConfig) { c.clock = clock }
}

// WithControllerOptions applies base controller options, e.g. from a config
// file. Scenario limits are applied after them.
func WithControllerOptions(opts ...engine.Option) Option {
	return func(c *runConfig) { c.options = append(c.options, opts...) }
}

// runner holds the state of one scenario execution.
type runner struct {
	ctx        context.Context
	scenario   *Scenario
	frames     *testutil.FrameStack
	labels     map[string]engine.FrameID
	names      map[uint32]string
	normalizer record.PathNormalizer
	controller *engine.Controller
	recording  *testutil.RecordingSink
	result     *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh simulated call stack, a fresh
// controller and a fresh in-memory database, so runs are isolated and
// deterministic. An error is returned only when the scenario cannot be
// executed at all; step and assertion failures are reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	rootTemplate := scenario.RootTemplate
	if rootTemplate == "" {
		rootTemplate = DefaultRootTemplate
	}
	frames := testutil.NewFrameStack(rootTemplate)

	recording := testutil.NewRecordingSink()
	if scenario.SinkError != "" {
		recording.FailWith(errors.New(scenario.SinkError))
	}
	sinks := sink.Fanout{recording, sink.NewStore(st, cfg.logger)}
	if cfg.sink != nil {
		sinks = append(sinks, cfg.sink)
	}

	clock := cfg.clock
	if clock == nil {
		clock = engine.NewClock()
	}

	controllerOpts := append([]engine.Option{}, cfg.options...)
	controllerOpts = append(controllerOpts,
		engine.WithLogger(cfg.logger),
		engine.WithPathNormalizer(cfg.normalizer),
		engine.WithClock(clock),
		engine.WithRequestIDGenerator(testutil.NewFixedRequestID(scenario.RequestID)),
	)
	controllerOpts = append(controllerOpts, scenario.Limits.options()...)
	if scenario.Release != "" {
		controllerOpts = append(controllerOpts, engine.WithRelease(scenario.Release))
	}

	controller, err := engine.NewController(frames, sinks, controllerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	r := &runner{
		ctx:        ctx,
		scenario:   scenario,
		frames:     frames,
		labels:     map[string]engine.FrameID{RootFrame: frames.Current()},
		names:      map[uint32]string{},
		normalizer: cfg.normalizer,
		controller: controller,
		recording:  recording,
		result:     NewResult(),
	}
	r.remember(rootTemplate)

	if err := r.runSteps("steps", scenario.Steps); err != nil {
		return nil, err
	}
	if controller.Active() {
		r.result.AddError("request still active at end of scenario")
	}

	for _, b := range recording.Batches() {
		r.result.Deliveries = append(r.result.Deliveries, r.delivery(b))
	}
	if r.result.Summary, err = st.PlaceholderSummary(ctx); err != nil {
		return nil, fmt.Errorf("failed to summarize stored records: %w", err)
	}
	r.result.LeakedFrames = r.leakedLabels()
	r.result.OverReleased = frames.OverReleased()

	for _, msg := range EvaluateAssertions(r.result, scenario.Assertions) {
		r.result.AddError(msg)
	}
	return r.result, nil
}

func (l Limits) options() []engine.Option {
	var opts []engine.Option
	if l.StackCapacity > 0 {
		opts = append(opts, engine.WithStackCapacity(l.StackCapacity))
	}
	if l.BufferCapacity > 0 {
		opts = append(opts, engine.WithBufferCapacity(l.BufferCapacity))
	}
	if l.FilterCount > 0 || l.RotateEvery > 0 {
		count, every := l.FilterCount, l.RotateEvery
		if count == 0 {
			count = dedup.DefaultGroupSize
		}
		if every == 0 {
			every = dedup.DefaultRotateEvery
		}
		opts = append(opts, engine.WithFilterGroup(count, every))
	}
	return opts
}

// remember maps a template's hash back to its normalized name for display.
func (r *runner) remember(fileName string) {
	name, _ := r.normalizer.TemplateName(fileName)
	r.names[record.HashString(name)] = name
}

// runSteps executes steps in order. Host stack errors abort the run since
// every later step would be meaningless.
func (r *runner) runSteps(prefix string, steps []Step) error {
	c := r.controller
	for i, step := range steps {
		where := fmt.Sprintf("%s[%d]", prefix, i)
		switch step.Op {
		case OpStartRequest:
			c.StartRequest()
		case OpFinishRequest:
			r.finishRequest(where, step)
		case OpEnter:
			r.labels[step.Frame] = r.frames.Enter(step.Template)
			r.remember(step.Template)
		case OpLeave:
			if err := r.frames.Leave(); err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
		case OpUnwind:
			if err := r.frames.Unwind(r.labels[step.Frame]); err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
		case OpStart:
			c.StartEvaluation(step.ID)
		case OpLookup:
			var flags record.StepFlags
			if step.Flags != "" {
				flags, _ = record.ParseStepFlags(step.Flags)
			}
			c.RecordLookupStep(step.ID, flags)
		case OpNamespace:
			ns, _ := record.ParseNamespace(step.Namespace)
			c.RecordNamespaceIndex(step.ID, ns)
		case OpFinish:
			c.FinishEvaluation(step.ID)
		case OpAbort:
			c.AbortEvaluation(step.ID)
		case OpMatches:
			if got := c.Matches(step.ID); got != *step.Expect {
				r.result.AddError(fmt.Sprintf("%s: matches(%d) = %v, expected %v", where, step.ID, got, *step.Expect))
			}
		case OpRepeat:
			for n := 0; n < step.Times; n++ {
				if err := r.runSteps(fmt.Sprintf("%s#%d", where, n), step.Steps); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%s: unknown op %q", where, step.Op)
		}
	}
	return nil
}

func (r *runner) finishRequest(where string, step Step) {
	err := r.controller.FinishRequest(r.ctx)
	switch {
	case step.ExpectError != "":
		if !engine.IsDeliveryError(err, engine.DeliveryErrorCode(step.ExpectError)) {
			r.result.AddError(fmt.Sprintf("%s: expected %s delivery error, got %v", where, step.ExpectError, err))
		}
	case err != nil:
		r.result.AddError(fmt.Sprintf("%s: %v", where, err))
	}
}

func (r *runner) delivery(b *engine.Batch) Delivery {
	d := Delivery{
		RequestID: b.RequestID,
		Seq:       b.Seq,
		Release:   b.Release,
		Attempts:  b.Attempts,
		Records:   make([]RecordView, len(b.Records)),
		Stats:     b.Stats,
	}
	for i, rec := range b.Records {
		d.Records[i] = newRecordView(rec, r.names)
	}
	return d
}

func (r *runner) leakedLabels() []string {
	byID := make(map[engine.FrameID]string, len(r.labels))
	for label, id := range r.labels {
		byID[id] = label
	}
	leaked := []string{}
	for _, id := range r.frames.Leaked() {
		leaked = append(leaked, byID[id])
	}
	sort.Strings(leaked)
	return leaked
}
