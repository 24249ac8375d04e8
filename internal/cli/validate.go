package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tplscope/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Config *config.Config           `json:"config,omitempty"`
	Errors []config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file against the configuration schema
without opening any sink.

Every violation is reported, not only the first. In JSON mode a valid
file is echoed back with defaults filled in.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "config file not found", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(formatter, verrs)
		}
		if err := formatter.Error(ErrCodeInvalidConfig, err.Error(), nil); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}

	formatter.VerboseLog("%s: %d sink(s), stack %d, buffer %d, %d filters rotated every %d",
		path, len(cfg.Sinks), cfg.Stack.Capacity, cfg.Buffer.Capacity,
		cfg.Filters.Count, cfg.Filters.RotateEvery)

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Config: cfg})
	}
	return formatter.Success(fmt.Sprintf("✓ %s is valid (%d sink(s))", path, len(cfg.Sinks)))
}

func outputValidationErrors(f *OutputFormatter, errs config.ValidationErrors) error {
	if f.Format == "json" {
		if err := f.Error(ErrCodeInvalidConfig, fmt.Sprintf("%d validation error(s)", len(errs)),
			ValidationResult{Valid: false, Errors: errs}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ %d validation error(s):\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(f.Writer, "  %s\n", e.Error())
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
}
