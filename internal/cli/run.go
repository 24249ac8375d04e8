package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/tplscope/internal/config"
	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/harness"
	"github.com/roach88/tplscope/internal/record"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config string
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Name    string   `json:"name"`
	Pass    bool     `json:"pass"`
	Batches int      `json:"batches"`
	Records int      `json:"records"`
	Errors  []string `json:"errors,omitempty"`
}

// RunSummary is the output of the run command.
type RunSummary struct {
	Scenarios []RunResult      `json:"scenarios"`
	Metrics   map[string]int64 `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios and deliver their batches to configured sinks",
		Long: `Run instrumentation scenarios against a controller built from a
configuration file, delivering every batch to the configured sinks.

Without --config the default limits are used and batches only reach the
command's own summary. A writer sink with path "-" prints log lines to
standard output.

Example:
  tplscope run --config tplscope.yaml ./scenarios/checkout.yaml
  tplscope run --config tplscope.yaml --verbose ./scenarios/*.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to configuration file")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		logger.Debug("config loaded", "path", opts.Config, "sinks", len(cfg.Sinks))
	}

	sinks, err := buildSinks(cfg, cmd.OutOrStdout(), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open sinks", err)
	}
	defer func() {
		if closeErr := sinks.Close(); closeErr != nil {
			logger.Error("error closing sinks", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One clock for the whole invocation, resumed after anything already
	// stored, so every delivered batch gets its own sequence number.
	lastSeq, err := sinks.maxSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read stored sequence", err)
	}
	logger.Debug("batch clock resumed", "seq", lastSeq)

	runOpts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithClock(engine.NewClockAt(lastSeq)),
		harness.WithControllerOptions(cfg.Options()...),
		harness.WithPathNormalizer(record.PathNormalizer{RootMarkers: cfg.RootMarkers}),
	}
	if len(sinks.sink) > 0 {
		runOpts = append(runOpts, harness.WithSink(sinks.sink))
	}

	summary := RunSummary{Scenarios: make([]RunResult, 0, len(paths))}
	failed := 0
	for _, path := range paths {
		res := runOne(ctx, path, runOpts, logger)
		if !res.Pass {
			failed++
		}
		summary.Scenarios = append(summary.Scenarios, res)
	}

	if summary.Metrics, err = sinks.collectMetrics(ctx); err != nil {
		logger.Warn("metrics unavailable", "error", err)
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		status := "ok"
		if failed > 0 {
			status = "error"
		}
		if err := encoder.Encode(CLIResponse{Status: status, Data: summary}); err != nil {
			return err
		}
	} else {
		outputRunText(cmd, summary)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}

func runOne(ctx context.Context, path string, opts []harness.Option, logger *slog.Logger) RunResult {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return RunResult{Name: path, Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)}}
	}

	logger.Debug("running scenario", "name", scenario.Name, "path", path)
	result, err := harness.Run(ctx, scenario, opts...)
	if err != nil {
		return RunResult{Name: scenario.Name, Errors: []string{fmt.Sprintf("execution failed: %v", err)}}
	}

	res := RunResult{
		Name:    scenario.Name,
		Pass:    result.Pass,
		Batches: len(result.Deliveries),
		Errors:  result.Errors,
	}
	for _, d := range result.Deliveries {
		res.Records += len(d.Records)
	}
	return res
}

func outputRunText(cmd *cobra.Command, summary RunSummary) {
	w := cmd.OutOrStdout()
	for _, r := range summary.Scenarios {
		if r.Pass {
			fmt.Fprintf(w, "✓ %s: %d batch(es), %d record(s)\n", r.Name, r.Batches, r.Records)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if len(summary.Metrics) > 0 {
		names := make([]string, 0, len(summary.Metrics))
		for name := range summary.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "Metrics:")
		for _, name := range names {
			fmt.Fprintf(w, "  %s = %d\n", name, summary.Metrics[name])
		}
	}
}
