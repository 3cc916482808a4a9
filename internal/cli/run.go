package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/pagechain/internal/config"
	"github.com/roach88/pagechain/internal/harness"
	"github.com/roach88/pagechain/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Trace    bool

	// Sessions overrides the journal session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Sessions journal.SessionGenerator
}

// RunReport is the output of the run command.
type RunReport struct {
	Scenario     string                `json:"scenario"`
	Pass         bool                  `json:"pass"`
	Items        []int                 `json:"items"`
	Placeholders int                   `json:"placeholders"`
	Steps        []harness.StepOutcome `json:"steps"`
	Errors       []string              `json:"errors,omitempty"`
	Session      string                `json:"session,omitempty"`
	Trace        []string              `json:"trace,omitempty"`
}

// RenderText prints the trace (when requested), a pass/fail line and the
// failed expectations.
func (r RunReport) RenderText(w io.Writer, verbose bool) {
	for _, line := range r.Trace {
		fmt.Fprintln(w, line)
	}
	if verbose {
		for _, s := range r.Steps {
			fmt.Fprintf(w, "step %d %s: outcome=%s loads=%d\n", s.Step, s.Action, s.Outcome, s.Loads)
		}
	}

	status := "✓"
	verdict := "passed"
	if !r.Pass {
		status = "✗"
		verdict = "failed"
	}
	fmt.Fprintf(w, "%s %s %s (%d steps, %d items, %d placeholders)\n",
		status, r.Scenario, verdict, len(r.Steps), len(r.Items), r.Placeholders)
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "  %s\n", msg)
	}
	if r.Session != "" {
		fmt.Fprintf(w, "recorded session %s\n", r.Session)
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a paging scenario",
		Long: `Run a paging scenario against a fresh engine and check its expectations.

The scenario declares in-memory sources and a list of steps (loads, drains,
invalidations, source edits and live pushes). Settings come from the
scenario's config section unless --config names a CUE file. With --db every
published batch is recorded into a new journal session.

Exit codes:
  0 - All expectations held
  1 - At least one expectation failed
  2 - Command error (unreadable scenario, invalid config, journal error)

Examples:
  pagechain run testdata/scenarios/four_sources.yaml
  pagechain run scenario.yaml --config engine.cue --db ./journal.db --trace`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE config file or directory (overrides the scenario config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite journal to record the run into")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the batch trace")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	level := slog.LevelWarn
	var runOpts []harness.Option
	if opts.Config != "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		level = cfg.Level()
		runOpts = append(runOpts, harness.WithConfig(cfg))
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose, level)
	runOpts = append(runOpts, harness.WithLogger(logger))

	if opts.Database != "" {
		logger.Info("opening journal", "path", opts.Database)
		j, err := journal.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithJournal(j, opts.Sessions))
	}

	formatter.VerboseLog("Running scenario %s (%d steps)", scenario.Name, len(scenario.Steps))
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario did not run", err)
	}

	report := RunReport{
		Scenario:     scenario.Name,
		Pass:         result.Pass,
		Items:        result.Items,
		Placeholders: result.Placeholders,
		Steps:        result.Outcomes,
		Errors:       result.Errors,
		Session:      result.Session,
	}
	if opts.Trace || opts.Format == "json" {
		report.Trace = result.Trace
	}

	if !result.Pass {
		msg := fmt.Sprintf("%d expectation(s) failed", len(result.Errors))
		if err := formatter.Failure(ErrCodeFailed, msg, report); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(report)
}
