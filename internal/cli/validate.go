package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pagechain/internal/config"
)

// ValidationError is one problem found in a config file.
type ValidationError struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Config *config.File      `json:"config,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// RenderText prints the effective settings or the errors with their
// positions.
func (r ValidationResult) RenderText(w io.Writer, verbose bool) {
	if !r.Valid {
		fmt.Fprintf(w, "✗ Validation failed with %d error(s):\n", len(r.Errors))
		for _, e := range r.Errors {
			loc := ""
			if e.File != "" {
				loc = fmt.Sprintf("%s:%d:%d: ", e.File, e.Line, e.Column)
			}
			if e.Path != "" {
				fmt.Fprintf(w, "  %s%s: %s\n", loc, e.Path, e.Message)
			} else {
				fmt.Fprintf(w, "  %s%s\n", loc, e.Message)
			}
		}
		return
	}

	fmt.Fprintln(w, "✓ Config is valid")
	if !verbose || r.Config == nil {
		return
	}
	c := r.Config
	fmt.Fprintf(w, "  page_size: %d\n", c.PageSize)
	fmt.Fprintf(w, "  max_items: %d\n", c.MaxItems)
	fmt.Fprintf(w, "  max_cached_pages: %d\n", c.MaxCachedPages)
	fmt.Fprintf(w, "  placeholders_on_evict: %t\n", c.PlaceholdersOnEvict)
	fmt.Fprintf(w, "  collect_only_latest: %t\n", c.CollectOnlyLatest)
	fmt.Fprintf(w, "  store_page_items: %t\n", c.StorePageItems)
	fmt.Fprintf(w, "  max_backfill_pages: %d\n", c.MaxBackfillPages)
	if c.DefaultKey != nil {
		fmt.Fprintf(w, "  default_key: %d\n", *c.DefaultKey)
	}
	fmt.Fprintf(w, "  log_level: %s\n", c.LogLevel)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue|dir>",
		Short: "Validate an engine config file",
		Long: `Validate a CUE engine configuration against the built-in schema.

The file (or every .cue file of a directory) is unified with the schema,
which fills in defaults and rejects unknown fields and out-of-range values.
With --verbose the effective settings are printed.

Exit codes:
  0 - Config is valid
  1 - Config has errors
  2 - Config not found`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeConfig, fmt.Sprintf("config not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "config not found", err)
	}

	cfg, err := config.Load(path)
	if err == nil {
		return formatter.Success(ValidationResult{Valid: true, Config: cfg})
	}

	var list config.Errors
	var single *config.Error
	switch {
	case errors.As(err, &list):
	case errors.As(err, &single):
		list = config.Errors{single}
	default:
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	result := ValidationResult{Errors: make([]ValidationError, 0, len(list))}
	for _, e := range list {
		ve := ValidationError{Path: e.Path, Message: e.Message}
		if e.Pos.IsValid() {
			ve.File = e.Pos.Filename()
			ve.Line = e.Pos.Line()
			ve.Column = e.Pos.Column()
		}
		result.Errors = append(result.Errors, ve)
	}

	msg := fmt.Sprintf("%d validation error(s)", len(result.Errors))
	if err := formatter.Failure(ErrCodeConfig, msg, result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}
