package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/provcheck/internal/fault"
	"github.com/roach88/provcheck/internal/report"
)

// defaultFailureMessage replaces an empty failure message so every failed
// record explains itself.
const defaultFailureMessage = "check failed without a message"

// Options controls scheduling.
type Options struct {
	// Workers bounds concurrently running checks. Values <= 1 run checks
	// strictly sequentially.
	Workers int
}

// Run executes every check with full isolation and returns one record per
// check, in registration order.
func Run(ctx context.Context, checks []Check, env Env, opts Options) []report.Record {
	start := time.Now()
	records := make([]report.Record, len(checks))

	slog.Info("running checks", "count", len(checks), "workers", max(opts.Workers, 1), "target", env.Conn.String())

	if opts.Workers <= 1 {
		for i, c := range checks {
			records[i] = invoke(ctx, c, env)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for i, c := range checks {
			i, c := i, c
			g.Go(func() error {
				records[i] = invoke(ctx, c, env)
				return nil
			})
		}
		_ = g.Wait() // invoke never fails
	}

	slog.Info("checks completed", "count", len(records), "duration", time.Since(start))
	return records
}

// invoke runs a single predicate and converts every outcome, error or panic
// into a record.
func invoke(ctx context.Context, c Check, env Env) (rec report.Record) {
	start := time.Now()

	defer func() {
		if v := recover(); v != nil {
			err := fault.Unexpected(&PanicError{Value: v})
			slog.Error("check panicked", "testid", c.ID, "panic", v)
			rec = report.Failure(c.ID, c.Weight, "Verification error: "+err.Err.Error())
		}
	}()

	if c.Predicate == nil {
		return report.Failure(c.ID, c.Weight, "Verification error: check has no predicate")
	}

	out, err := c.Predicate(ctx, env)
	if err != nil {
		slog.Warn("check errored", "testid", c.ID, "code", fault.CodeOf(err), "error", err)
		return report.Failure(c.ID, c.Weight, fmt.Sprintf("Verification error: %v", err))
	}

	slog.Debug("check completed",
		"testid", c.ID,
		"passed", out.Passed,
		"code", out.Code,
		"duration", time.Since(start),
	)

	if out.Passed {
		return report.Success(c.ID, c.Weight, out.Message)
	}
	msg := out.Message
	if msg == "" {
		msg = defaultFailureMessage
	}
	return report.Failure(c.ID, c.Weight, msg)
}

// FailAll records every check as failed with message, without running any
// predicate. Used when a run is abandoned before checks start.
func FailAll(checks []Check, message string) []report.Record {
	if message == "" {
		message = defaultFailureMessage
	}
	records := make([]report.Record, len(checks))
	for i, c := range checks {
		records[i] = report.Failure(c.ID, c.Weight, message)
	}
	return records
}
