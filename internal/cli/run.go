package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/provcheck/internal/compare"
	"github.com/roach88/provcheck/internal/engine"
	"github.com/roach88/provcheck/internal/executor"
	"github.com/roach88/provcheck/internal/fault"
	"github.com/roach88/provcheck/internal/harness"
	"github.com/roach88/provcheck/internal/inventory"
	"github.com/roach88/provcheck/internal/provision"
	"github.com/roach88/provcheck/internal/report"
	"github.com/roach88/provcheck/internal/store"
)

// RemoteRunner is a closable remote executor.
type RemoteRunner interface {
	executor.Runner
	Close() error
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Report        string
	Inventory     string
	Group         string
	Workers       int
	SkipProvision bool
	Policy        string
	HistoryDB     string
	Strict        bool

	// RemoteFactory allows overriding the SSH transport (for testing).
	// If nil, defaults to executor.NewSSH.
	RemoteFactory func(inventory.Connection, executor.SSHOptions) RemoteRunner

	// IDGenerator allows overriding history run IDs (for testing).
	// If nil, the store generates UUIDv7 IDs.
	IDGenerator store.IDGenerator
}

// RunSummary is the data payload of a completed run.
type RunSummary struct {
	Suite   string          `json:"suite"`
	Report  string          `json:"report"`
	Target  string          `json:"target,omitempty"`
	Score   int             `json:"score"`
	Maximum int             `json:"maximum"`
	Passed  int             `json:"passed"`
	Failed  int             `json:"failed"`
	Records []report.Record `json:"records"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite>",
		Short: "Provision the target and run a check suite",
		Long: `Resolve the suite's host group from the inventory, run the provisioning
command once, evaluate every check and write the scored JSON report.

The report is always written, including when the host group cannot be
resolved. The exit code is 0 once the report is written; use --strict to
exit 1 when any check failed.

Example:
  provcheck run suites/webserver.yaml
  provcheck run --group dbservers --report out/evaluate.json suites/db.cue
  provcheck run --skip-provision --workers 4 --history-db runs.db suite.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Report, "report", "", "report path (overrides suite report.path)")
	cmd.Flags().StringVar(&opts.Inventory, "inventory", "", "inventory path (overrides suite inventory.path)")
	cmd.Flags().StringVar(&opts.Group, "group", "", "host group (overrides suite inventory.group)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent checks (overrides suite workers)")
	cmd.Flags().BoolVar(&opts.SkipProvision, "skip-provision", false, "do not run the provisioning command")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "provisioning failure policy (proceed|abort)")
	cmd.Flags().StringVar(&opts.HistoryDB, "history-db", "", "append the run to this SQLite history database")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when any check failed")

	return cmd
}

// runPlan is a suite with command-line overrides applied.
type runPlan struct {
	suite   *harness.Suite
	checks  []engine.Check
	policy  provision.Policy
	workers int
}

func runSuite(opts *RunOptions, suitePath string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose, cmd.ErrOrStderr())
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	plan, err := planRun(opts, suitePath, cmd)
	if err != nil {
		code := ErrCodeSuiteInvalid
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeSuiteNotFound
		}
		return formatter.Fail(code, err.Error(),
			WrapExitError(ExitCommandError, "failed to load suite", err))
	}
	slog.Info("suite loaded", "suite", plan.suite.Name, "checks", len(plan.checks), "group", plan.suite.Inventory.Group)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now().UTC()
	rep, target := execute(ctx, opts, plan)

	reportPath := plan.suite.Report.Path
	if err := report.Persist(rep, reportPath); err != nil {
		return formatter.Fail(ErrCodeReportWrite, err.Error(),
			WrapExitError(ExitCommandError, "failed to write report", err))
	}
	slog.Info("report written", "path", reportPath, "score", rep.Score(), "maximum", rep.Maximum())

	var runID string
	if opts.HistoryDB != "" {
		runID = recordHistory(ctx, opts, plan.suite, target, reportPath, started, rep)
	}

	if err := outputRun(formatter, plan.suite, target, reportPath, runID, rep); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	if opts.Strict && rep.Failed() > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d checks failed", rep.Failed(), len(rep.Records)))
	}
	return nil
}

// planRun loads the suite, applies flag overrides and compiles its checks.
func planRun(opts *RunOptions, suitePath string, cmd *cobra.Command) (*runPlan, error) {
	suite, err := harness.LoadSuite(suitePath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("report") {
		if suite.Report.Path, err = filepath.Abs(opts.Report); err != nil {
			return nil, err
		}
	}
	if flags.Changed("inventory") {
		if suite.Inventory.Path, err = filepath.Abs(opts.Inventory); err != nil {
			return nil, err
		}
	}
	if flags.Changed("group") {
		if opts.Group == "" {
			return nil, fmt.Errorf("--group must not be empty")
		}
		suite.Inventory.Group = opts.Group
	}

	plan := &runPlan{suite: suite, policy: suite.Policy(), workers: suite.Workers}
	if flags.Changed("workers") {
		if opts.Workers < 0 {
			return nil, fmt.Errorf("--workers must be non-negative")
		}
		plan.workers = opts.Workers
	}
	if flags.Changed("policy") {
		if plan.policy, err = provision.ParsePolicy(opts.Policy); err != nil {
			return nil, err
		}
	}

	if plan.checks, err = harness.Compile(suite); err != nil {
		return nil, fmt.Errorf("compile suite: %w", err)
	}
	return plan, nil
}

// execute resolves the target, provisions it and runs every check. It
// always returns a report; the target is empty when resolution failed.
func execute(ctx context.Context, opts *RunOptions, plan *runPlan) (report.Report, string) {
	suite := plan.suite

	conn, err := inventory.LoadAndResolve(suite.Inventory.Path, suite.Inventory.Group)
	if err != nil {
		slog.Error("inventory resolution failed",
			"code", fault.CodeOf(err),
			"inventory", suite.Inventory.Path,
			"group", suite.Inventory.Group,
			"error", err,
		)
		return report.Synthetic(suite.ConfigurationCheckID(), "Inventory error: "+err.Error()), ""
	}
	conn.KeyPath = suite.KeyPath(conn.KeyPath)
	slog.Info("target resolved", "target", conn.String(), "key", conn.KeyPath)

	if opts.SkipProvision {
		slog.Info("provisioning skipped")
	} else {
		out := provision.Trigger{
			Command: suite.Provision.Command,
			Dir:     suite.Provision.Dir,
			Env:     suite.ProvisionEnv(),
		}.Run(ctx)
		if abort, msg := plan.policy.Abort(out); abort {
			slog.Warn("checks skipped by provisioning policy", "policy", plan.policy, "checks", len(plan.checks))
			return report.Aggregate(engine.FailAll(plan.checks, msg)), conn.String()
		}
	}

	factory := opts.RemoteFactory
	if factory == nil {
		factory = func(c inventory.Connection, o executor.SSHOptions) RemoteRunner {
			return executor.NewSSH(c, o)
		}
	}
	remote := factory(conn, executor.SSHOptions{DialTimeout: suite.DialTimeoutDuration()})
	defer func() {
		if closeErr := remote.Close(); closeErr != nil {
			slog.Warn("error closing remote connection", "error", closeErr)
		}
	}()

	env := engine.Env{
		Conn:   conn,
		Remote: remote,
		HTTP:   compare.NewHTTPClient(suite.HTTPTimeoutDuration()),
	}
	records := engine.Run(ctx, plan.checks, env, engine.Options{Workers: plan.workers})
	return report.Aggregate(records), conn.String()
}

// recordHistory appends the run to the history database. Failures are
// logged; the report on disk remains authoritative.
func recordHistory(ctx context.Context, opts *RunOptions, suite *harness.Suite, target, reportPath string, started time.Time, rep report.Report) string {
	var storeOpts []store.Option
	if opts.IDGenerator != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDGenerator))
	}

	st, err := store.Open(opts.HistoryDB, storeOpts...)
	if err != nil {
		slog.Error("failed to open history database", "path", opts.HistoryDB, "error", err)
		return ""
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing history database", "error", closeErr)
		}
	}()

	run := store.NewRun(suite.Name, suite.Inventory.Group, target, reportPath, rep)
	run.StartedAt = started
	run.SuiteDigest = suite.Digest
	written, err := st.WriteRun(ctx, run)
	if err != nil {
		slog.Error("failed to record run history", "path", opts.HistoryDB, "error", err)
		return ""
	}
	slog.Info("run recorded", "run_id", written.ID, "seq", written.Seq)
	return written.ID
}

func outputRun(f *OutputFormatter, suite *harness.Suite, target, reportPath, runID string, rep report.Report) error {
	if f.Format == "json" {
		return f.SuccessWithRunID(RunSummary{
			Suite:   suite.Name,
			Report:  reportPath,
			Target:  target,
			Score:   rep.Score(),
			Maximum: rep.Maximum(),
			Passed:  rep.Passed(),
			Failed:  rep.Failed(),
			Records: rep.Records,
		}, runID)
	}

	rep.WriteSummary(f.Writer)
	fmt.Fprintf(f.Writer, "Report written to %s\n", reportPath)
	if runID != "" {
		fmt.Fprintf(f.Writer, "Run recorded as %s\n", runID)
	}
	return nil
}
