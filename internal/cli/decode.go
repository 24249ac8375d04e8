package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tplscope/internal/record"
)

// DecodedLine is one log line expanded into its records.
type DecodedLine struct {
	Release  string       `json:"release,omitempty"`
	Attempts int          `json:"attempts"`
	Dropped  int          `json:"dropped"`
	Records  []RecordInfo `json:"records"`
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [line]",
		Short: "Decode log lines produced by writer and Redis sinks",
		Long: `Decode log lines of the form

  <release> <attempts> <base64(zlib(records))>

into their records. With no argument, or "-", lines are read from standard
input, one batch per line; blank lines are skipped.

Examples:
  tplscope decode "9f1c2e7 3 eJxjYGBgZGBg..."
  redis-cli LRANGE tplscope:batches 0 -1 | tplscope decode --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runDecode(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var lines []string
	if len(args) == 1 && args[0] != "-" {
		lines = []string{args[0]}
	} else {
		var err error
		if lines, err = readLines(cmd.InOrStdin()); err != nil {
			return WrapExitError(ExitCommandError, "failed to read input", err)
		}
	}

	decoded := make([]DecodedLine, 0, len(lines))
	for i, line := range lines {
		d, err := decodeLine(line)
		if err != nil {
			msg := fmt.Sprintf("line %d: %v", i+1, err)
			if err := formatter.Error(ErrCodeDecode, msg, nil); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		formatter.VerboseLog("line %d: %d records", i+1, len(d.Records))
		decoded = append(decoded, d)
	}

	if opts.Format == "json" {
		return formatter.Success(decoded)
	}

	w := cmd.OutOrStdout()
	for i, d := range decoded {
		release := d.Release
		if release == "" {
			release = "-"
		}
		fmt.Fprintf(w, "Line %d: release=%s attempts=%d records=%d dropped=%d\n",
			i+1, release, d.Attempts, len(d.Records), d.Dropped)
		for _, r := range d.Records {
			status := "ok"
			if r.Failed {
				status = "failed"
			}
			fmt.Fprintf(w, "  template=%s id=%d ns=%s lookups=%d %s",
				r.TemplateHash, r.EvaluationID, r.Namespace, r.Lookups, status)
			if len(r.Flags) > 0 {
				fmt.Fprintf(w, " flags=%s", strings.Join(r.Flags, ","))
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

func decodeLine(s string) (DecodedLine, error) {
	l, err := record.DecodeLine(s)
	if err != nil {
		return DecodedLine{}, err
	}
	records, err := l.Records()
	if err != nil {
		return DecodedLine{}, err
	}
	return DecodedLine{
		Release:  l.Release,
		Attempts: l.Attempts,
		Dropped:  max(l.Attempts-len(records), 0),
		Records:  recordInfos(records),
	}, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	// A full buffer encodes to well over the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
