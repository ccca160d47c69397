package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Local runs commands through bash on the local machine.
// Used for the one-time provisioning hook.
type Local struct {
	// Dir is the working directory of the child process.
	// The parent's working directory is never changed.
	Dir string

	// Env is appended to the current environment.
	Env []string
}

// Run executes command with bash -c and captures both streams.
func (l Local) Run(ctx context.Context, command string) Result {
	return l.exec(ctx, command, "bash", "-c", command)
}

// RunArgs executes argv directly, without a shell.
func (l Local) RunArgs(ctx context.Context, argv []string) Result {
	if len(argv) == 0 {
		return TransportFailed(errors.New("empty command"))
	}
	return l.exec(ctx, fmt.Sprint(argv), argv[0], argv[1:]...)
}

func (l Local) exec(ctx context.Context, label, name string, args ...string) Result {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = l.Dir
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout := limitOutput(stdoutBuf.Bytes(), maxOutputSize)
	stderr := limitOutput(stderrBuf.Bytes(), maxOutputSize)

	var result Result
	switch {
	case err == nil:
		result = Succeeded(stdout)
	case ctx.Err() != nil:
		result = TransportFailed(fmt.Errorf("command interrupted after %v: %w", time.Since(start), ctx.Err()))
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result = ExitedOutput(exitErr.ExitCode(), stdout, stderr)
		} else {
			result = TransportFailed(err)
		}
	}

	slog.Debug("local command completed",
		"command", label,
		"dir", l.Dir,
		"exit", result.ExitCode,
		"duration", time.Since(start),
		"stdout", logSnippet(stdout),
		"stderr", logSnippet(stderr),
	)

	return result
}
