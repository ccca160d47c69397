package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/provcheck/internal/report"
	"github.com/roach88/provcheck/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
	Limit    int
}

// HistoryEntry is one run in a history listing.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Suite     string    `json:"suite"`
	Digest    string    `json:"suite_digest,omitempty"`
	Group     string    `json:"group"`
	Target    string    `json:"target,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Score     int       `json:"score"`
	Maximum   int       `json:"maximum"`
}

// HistoryRun is one run with its records.
type HistoryRun struct {
	HistoryEntry
	Report  string          `json:"report"`
	Records []report.Record `json:"records"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `List runs recorded with run --history-db, newest first, or print the
records of a single run.

Example:
  provcheck history --db runs.db
  provcheck history --db runs.db --run 01929e1c-7c4e-7d3a-9f0e-3a3f5b0c2d11`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the records of this run")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.Fail(ErrCodeHistory, fmt.Sprintf("history database not found: %s", opts.Database),
			WrapExitError(ExitCommandError, "history database not found", err))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ErrCodeHistory, err.Error(),
			WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.RunID != "" {
		return showRun(ctx, formatter, st, opts.RunID)
	}
	return listRuns(ctx, formatter, st, opts.Limit)
}

func listRuns(ctx context.Context, f *OutputFormatter, st *store.Store, limit int) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return f.Fail(ErrCodeHistory, err.Error(),
			WrapExitError(ExitCommandError, "failed to list runs", err))
	}

	entries := make([]HistoryEntry, len(runs))
	for i, run := range runs {
		entries[i] = historyEntry(run)
	}

	if f.Format == "json" {
		return f.Success(entries)
	}
	if len(entries) == 0 {
		return f.Success("No runs recorded.")
	}
	for _, e := range entries {
		fmt.Fprintf(f.Writer, "%4d  %s  %-20s %-12s %3d/%-3d  %s\n",
			e.Seq, e.ID, e.Suite, e.Group, e.Score, e.Maximum, e.StartedAt.Format(time.RFC3339))
	}
	return nil
}

func showRun(ctx context.Context, f *OutputFormatter, st *store.Store, id string) error {
	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return f.Fail(ErrCodeRunNotFound, err.Error(),
			WrapExitError(ExitFailure, "run not found", err))
	}
	if err != nil {
		return f.Fail(ErrCodeHistory, err.Error(),
			WrapExitError(ExitCommandError, "failed to read run", err))
	}

	if f.Format == "json" {
		return f.Success(HistoryRun{
			HistoryEntry: historyEntry(run),
			Report:       run.ReportPath,
			Records:      run.Records,
		})
	}

	fmt.Fprintf(f.Writer, "Run %s (#%d) %s on %s at %s\n",
		run.ID, run.Seq, run.Suite, run.Group, run.StartedAt.Format(time.RFC3339))
	report.Aggregate(run.Records).WriteSummary(f.Writer)
	return nil
}

func historyEntry(run store.Run) HistoryEntry {
	return HistoryEntry{
		ID:        run.ID,
		Seq:       run.Seq,
		Suite:     run.Suite,
		Digest:    run.SuiteDigest,
		Group:     run.Group,
		Target:    run.Target,
		StartedAt: run.StartedAt,
		Score:     run.Score,
		Maximum:   run.Maximum,
	}
}
