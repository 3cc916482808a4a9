package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pagechain/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
	Latest   bool
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session      string            `json:"session"`
	Name         string            `json:"name"`
	Batches      int               `json:"batches"`
	Events       int               `json:"events"`
	Pages        []int             `json:"pages"`
	Items        []json.RawMessage `json:"items"`
	Placeholders int               `json:"placeholders"`
	Consistent   bool              `json:"consistent"`
	Error        string            `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	AllConsistent bool                  `json:"all_consistent"`
}

// RenderText prints one block per session and a summary line.
func (r ReplayResult) RenderText(w io.Writer, verbose bool) {
	if r.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", r.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range r.Sessions {
		status := "✓"
		if !s.Consistent {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s (%s)\n", status, s.Session, s.Name)
		fmt.Fprintf(w, "  Batches: %d, Events: %d\n", s.Batches, s.Events)
		fmt.Fprintf(w, "  Pages: %d, Items: %d, Placeholders: %d\n", len(s.Pages), len(s.Items), s.Placeholders)
		if verbose {
			fmt.Fprintf(w, "  Page indices: %v\n", s.Pages)
			fmt.Fprintf(w, "  Items: %s\n", joinRaw(s.Items))
		}
		if s.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", s.Error)
		}
		fmt.Fprintln(w)
	}

	if r.AllConsistent {
		fmt.Fprintln(w, "✓ All sessions fold into a consistent list")
		return
	}
	fmt.Fprintln(w, "✗ Replay found inconsistent sessions")
}

func joinRaw(items []json.RawMessage) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = string(item)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded sessions and check they fold",
		Long: `Replay journal sessions and rebuild the list each one describes.

Every recorded batch is applied in order to an empty list. A session whose
events do not fit the list built so far (a change for a page never added,
a page added twice) is reported as inconsistent.

Exit codes:
  0 - All sessions are consistent
  1 - At least one session is inconsistent
  2 - Command error (journal not found, unknown session, etc.)

Examples:
  pagechain replay --db ./journal.db
  pagechain replay --db ./journal.db --session 0190f3a2-...
  pagechain replay --db ./journal.db --latest --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "replay the most recent session only")
	cmd.MarkFlagsMutuallyExclusive("session", "latest")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	// Open would create an empty journal.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeJournal, fmt.Sprintf("journal not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	sessions, err := selectSessions(ctx, j, opts)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions: len(sessions),
		AllConsistent: true,
	}
	for _, s := range sessions {
		formatter.VerboseLog("Replaying session %s", s.ID)
		sr, err := replaySession(ctx, j, s)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", s.ID), err)
		}
		result.Sessions = append(result.Sessions, sr)
		if !sr.Consistent {
			result.AllConsistent = false
		}
	}

	if !result.AllConsistent {
		if err := formatter.Failure(ErrCodeReplay, "inconsistent sessions", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "replay found inconsistent sessions")
	}
	return formatter.Success(result)
}

func selectSessions(ctx context.Context, j *journal.Journal, opts *ReplayOptions) ([]journal.Session, error) {
	if opts.Latest {
		s, err := j.LatestSession(ctx)
		if errors.Is(err, journal.ErrSessionNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []journal.Session{s}, nil
	}

	all, err := j.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Session == "" {
		return all, nil
	}
	for _, s := range all {
		if s.ID == opts.Session {
			return []journal.Session{s}, nil
		}
	}
	return nil, fmt.Errorf("session %s: %w", opts.Session, journal.ErrSessionNotFound)
}

// replaySession folds one session. A fold error marks the session
// inconsistent; only read errors are returned.
func replaySession(ctx context.Context, j *journal.Journal, s journal.Session) (ReplaySessionResult, error) {
	out := ReplaySessionResult{
		Session: s.ID,
		Name:    s.Name,
		Batches: s.Batches,
		Events:  s.Events,
	}

	records, err := j.ReadSession(ctx, s.ID)
	if err != nil {
		return out, err
	}
	state, err := journal.Fold(s.ID, records)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}

	out.Consistent = true
	out.Pages = state.Pages
	out.Items = state.Items
	out.Placeholders = state.Placeholders
	if out.Pages == nil {
		out.Pages = []int{}
	}
	if out.Items == nil {
		out.Items = []json.RawMessage{}
	}
	return out, nil
}
