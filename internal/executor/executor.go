// Package executor runs shell commands against a resolved connection (SSH)
// or the local machine, and classifies the outcome.
//
// Executors never return errors: every failure mode, from a non-zero exit
// to a refused TCP connection, is folded into a Result with Failed set.
package executor

import (
	"context"
	"fmt"
	"strings"
)

const (
	// maxOutputSize bounds captured stdout/stderr per command.
	maxOutputSize = 64 * 1024

	// maxLogLength bounds output echoed into debug logs.
	maxLogLength = 200
)

// Result is the outcome of one command invocation.
type Result struct {
	// Output is stdout with trailing whitespace trimmed.
	// Empty and meaningless when Failed is true.
	Output string

	// Failed is true on non-zero exit or transport failure.
	Failed bool

	// Diagnostic carries the captured error text when Failed is true.
	Diagnostic string

	// ExitCode is the remote exit status, or -1 for transport failures.
	ExitCode int
}

// Runner executes a command and returns its classified result.
type Runner interface {
	Run(ctx context.Context, command string) Result
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, command string) Result

// Run calls f(ctx, command).
func (f RunnerFunc) Run(ctx context.Context, command string) Result {
	return f(ctx, command)
}

// Succeeded builds a successful Result from raw stdout.
func Succeeded(stdout string) Result {
	return Result{Output: normalize(stdout)}
}

// DiagnosticPrefix starts the Diagnostic of a command that exited non-zero.
const DiagnosticPrefix = "Error: "

// Exited builds a Result for a command that exited with a non-zero status.
func Exited(code int, stderr string) Result {
	return ExitedOutput(code, "", stderr)
}

// ExitedOutput is Exited for a command that also wrote stdout. Stderr is
// the diagnostic; stdout stands in when stderr is empty, since some tools
// report state on stdout and signal it through the exit status.
func ExitedOutput(code int, stdout, stderr string) Result {
	text := strings.TrimSpace(stderr)
	if text == "" {
		text = strings.TrimSpace(stdout)
	}
	return Result{
		Failed:     true,
		Diagnostic: DiagnosticPrefix + text,
		ExitCode:   code,
	}
}

// TransportFailed builds a Result for a command that never completed.
func TransportFailed(err error) Result {
	return Result{
		Failed:     true,
		Diagnostic: err.Error(),
		ExitCode:   -1,
	}
}

// Describe renders a failed result for messages.
func (r Result) Describe() string {
	if !r.Failed {
		return "ok"
	}
	if r.Diagnostic == "" || r.Diagnostic == DiagnosticPrefix {
		return fmt.Sprintf("exit status %d", r.ExitCode)
	}
	return r.Diagnostic
}

// normalize trims trailing whitespace from captured output.
func normalize(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}

// limitOutput truncates output if it exceeds maxSize.
func limitOutput(data []byte, maxSize int) string {
	if len(data) > maxSize {
		return string(data[:maxSize]) + "\n[output truncated]"
	}
	return string(data)
}

// logSnippet shortens output for log lines.
func logSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLogLength {
		return s[:maxLogLength] + "..."
	}
	return s
}
