package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tplscope/internal/record"
	"github.com/roach88/tplscope/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database string
	Batch    int64 // show one batch's records when > 0
	Summary  bool  // show the per-placeholder summary
	Limit    int
}

// RecordInfo is one record rendered for output.
type RecordInfo struct {
	TemplateHash string                `json:"template_hash"`
	EvaluationID uint16                `json:"evaluation_id"`
	Namespace    record.NamespaceIndex `json:"namespace"`
	Lookups      int                   `json:"lookups"`
	Failed       bool                  `json:"failed"`
	Flags        []string              `json:"flags,omitempty"`
}

func newRecordInfo(r record.LogRecord) RecordInfo {
	return RecordInfo{
		TemplateHash: fmt.Sprintf("%08x", r.TemplateHash),
		EvaluationID: r.EvaluationID,
		Namespace:    r.Namespace,
		Lookups:      r.Steps(),
		Failed:       r.Failed(),
		Flags:        r.StepFlagNames(),
	}
}

func recordInfos(records []record.LogRecord) []RecordInfo {
	out := make([]RecordInfo, len(records))
	for i, r := range records {
		out[i] = newRecordInfo(r)
	}
	return out
}

// BatchDetail is one stored batch with its records and log line.
type BatchDetail struct {
	store.BatchInfo
	Line    string       `json:"line"`
	Records []RecordInfo `json:"records"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Query batches persisted by a store sink",
		Long: `Query the SQLite database written by a store sink.

Without flags, lists stored batches in delivery order. --batch shows the
records of one batch along with its log line. --summary groups every
stored record by placeholder, showing which namespaces satisfied it and
whether it ever relied on a searchlist position, mapping fallback or
auto-invocation.

Examples:
  tplscope inspect --db ./tplscope.db
  tplscope inspect --db ./tplscope.db --batch 3
  tplscope inspect --db ./tplscope.db --summary --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.Batch, "batch", 0, "show the records of one batch")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "summarize records per placeholder")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of batches to list (0 = all)")
	cmd.MarkFlagsMutuallyExclusive("batch", "summary")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	switch {
	case opts.Batch > 0:
		return inspectBatch(ctx, st, opts.Batch, formatter)
	case opts.Summary:
		return inspectSummary(ctx, st, formatter)
	default:
		return inspectList(ctx, st, opts.Limit, formatter)
	}
}

func inspectList(ctx context.Context, st *store.Store, limit int, f *OutputFormatter) error {
	batches, err := st.ListBatches(ctx, limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list batches", err)
	}
	if f.Format == "json" {
		return f.Success(batches)
	}

	w := f.Writer
	if len(batches) == 0 {
		fmt.Fprintln(w, "No batches stored.")
		return nil
	}
	fmt.Fprintf(w, "%-6s %-6s %-38s %-12s %8s %8s %8s\n", "ID", "SEQ", "REQUEST", "RELEASE", "STORED", "ATTEMPTS", "DUPES")
	for _, b := range batches {
		release := b.Release
		if release == "" {
			release = "-"
		}
		fmt.Fprintf(w, "%-6d %-6d %-38s %-12s %8d %8d %8d\n",
			b.ID, b.Seq, b.RequestID, release, b.Stored, b.Attempts, b.Stats.Duplicates)
	}

	last, err := st.MaxSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sequence", err)
	}
	fmt.Fprintf(w, "\n%d batch(es) shown, highest seq %d\n", len(batches), last)
	return nil
}

func inspectBatch(ctx context.Context, st *store.Store, id int64, f *OutputFormatter) error {
	line, err := st.ReadLine(ctx, id)
	if errors.Is(err, store.ErrBatchNotFound) {
		if err := f.Error(ErrCodeBatchNotFound, err.Error(), nil); err != nil {
			return err
		}
		return WrapExitError(ExitCommandError, "batch not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read batch", err)
	}
	records, err := st.ReadRecords(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read records", err)
	}
	f.VerboseLog("batch %d: %d records", id, len(records))

	info, err := st.GetBatch(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read batch", err)
	}
	detail := BatchDetail{BatchInfo: info, Line: line, Records: recordInfos(records)}

	if f.Format == "json" {
		return f.Success(detail)
	}

	w := f.Writer
	fmt.Fprintf(w, "Batch %d (seq %d, request %s)\n", detail.ID, detail.Seq, detail.RequestID)
	fmt.Fprintf(w, "  attempts=%d stored=%d dropped=%d duplicates=%d swept=%d flushed=%d\n",
		detail.Stats.Attempts, detail.Stats.Stored, detail.Stats.Dropped,
		detail.Stats.Duplicates, detail.Stats.Swept, detail.Stats.Flushed)
	fmt.Fprintln(w)
	writeRecords(w, records)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Line: %s\n", line)
	return nil
}

func inspectSummary(ctx context.Context, st *store.Store, f *OutputFormatter) error {
	summary, err := st.PlaceholderSummary(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize records", err)
	}
	if f.Format == "json" {
		return f.Success(summary)
	}

	w := f.Writer
	if len(summary) == 0 {
		fmt.Fprintln(w, "No records stored.")
		return nil
	}
	fmt.Fprintf(w, "%-8s %5s %7s %8s  %-24s %s\n", "TEMPLATE", "ID", "RECORDS", "FAILURES", "NAMESPACES", "USES")
	for _, p := range summary {
		names := make([]string, len(p.Namespaces))
		for i, ns := range p.Namespaces {
			names[i] = ns.String()
		}
		var uses []string
		if p.SearchList {
			uses = append(uses, "searchlist")
		}
		if p.MappingFallback {
			uses = append(uses, "mapping_fallback")
		}
		if p.AutoInvoked {
			uses = append(uses, "auto_invoked")
		}
		fmt.Fprintf(w, "%08x %5d %7d %8d  %-24s %s\n",
			p.TemplateHash, p.EvaluationID, p.Records, p.Failures,
			strings.Join(names, ","), strings.Join(uses, ","))
	}
	return nil
}

// writeRecords prints records one per line.
func writeRecords(w io.Writer, records []record.LogRecord) {
	for _, r := range records {
		fmt.Fprintf(w, "  %s\n", r)
	}
}
