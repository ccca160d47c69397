// Package provision invokes the external orchestrator once before any check
// runs, and decides what its failure means for the run.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/roach88/provcheck/internal/executor"
)

// Policy decides how a failed provisioning step affects the checks.
type Policy string

const (
	// PolicyProceed runs every check regardless; provisioning failures
	// surface as whatever state the checks observe.
	PolicyProceed Policy = "proceed"

	// PolicyAbort skips the checks and records each one as failed with the
	// provisioning diagnostic.
	PolicyAbort Policy = "abort"
)

// ParsePolicy parses a policy name. Empty means PolicyProceed.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyProceed:
		return PolicyProceed, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown provisioning policy %q (want %s or %s)", s, PolicyProceed, PolicyAbort)
	}
}

// ArgsRunner runs an argv without a shell.
type ArgsRunner interface {
	RunArgs(ctx context.Context, argv []string) executor.Result
}

// Trigger is a one-shot orchestrator invocation.
type Trigger struct {
	// Command is the orchestrator command line, split with shell rules.
	// Empty means there is nothing to run.
	Command string

	// Dir is the working directory of the orchestrator process only.
	Dir string

	// Env is appended to the inherited environment.
	Env []string

	// Runner overrides the local executor. Tests only.
	Runner ArgsRunner
}

// Outcome is the result of a provisioning step.
type Outcome struct {
	// Skipped is true when no command was configured.
	Skipped bool

	Result   executor.Result
	Duration time.Duration
}

// Failed reports whether the orchestrator ran and failed.
func (o Outcome) Failed() bool {
	return !o.Skipped && o.Result.Failed
}

// Message describes the failure for check records.
func (o Outcome) Message() string {
	if !o.Failed() {
		return ""
	}
	return "Provisioning failed: " + o.Result.Describe()
}

// Run executes the command once and blocks until it exits. The calling
// process's working directory is never changed.
func (t Trigger) Run(ctx context.Context) Outcome {
	if strings.TrimSpace(t.Command) == "" {
		slog.Debug("no provisioning command configured")
		return Outcome{Skipped: true}
	}

	start := time.Now()
	assigns, argv, err := splitCommand(t.Command)
	if err != nil {
		return Outcome{Result: executor.TransportFailed(fmt.Errorf("parse provisioning command: %w", err))}
	}

	runner := t.Runner
	if runner == nil {
		runner = executor.Local{Dir: t.Dir, Env: append(append([]string(nil), t.Env...), assigns...)}
	}

	slog.Info("provisioning started", "command", argv[0], "args", len(argv)-1, "dir", t.Dir)
	res := runner.RunArgs(ctx, argv)
	out := Outcome{Result: res, Duration: time.Since(start)}

	if res.Failed {
		slog.Warn("provisioning failed", "exit", res.ExitCode, "diagnostic", res.Describe(), "duration", out.Duration)
	} else {
		slog.Info("provisioning completed", "duration", out.Duration)
	}
	return out
}

// splitCommand splits a command line with shell rules. Leading NAME=value
// words are returned as environment assignments, as a shell would apply them.
func splitCommand(command string) (assigns, argv []string, err error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return nil, nil, err
	}
	for len(words) > 0 && isAssignment(words[0]) {
		assigns = append(assigns, words[0])
		words = words[1:]
	}
	if len(words) == 0 {
		return nil, nil, fmt.Errorf("no program after environment assignments in %q", command)
	}
	return assigns, words, nil
}

func isAssignment(word string) bool {
	name, _, ok := strings.Cut(word, "=")
	if !ok || name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Abort reports whether the checks should be skipped under p, and the
// message to record against each of them.
func (p Policy) Abort(out Outcome) (bool, string) {
	if p != PolicyAbort || !out.Failed() {
		return false, ""
	}
	return true, out.Message()
}
