// Package compare implements the stateless comparators used by checks.
//
// A comparator issues one or more commands through an executor.Runner (or an
// HTTP GET), inspects the classified results and returns an Outcome. No
// comparator returns an error or panics: a missing file, a refused
// connection and a wrong value all resolve to a failed Outcome whose message
// says what was expected and what was found.
package compare

import (
	"fmt"

	"github.com/kballard/go-shellquote"

	"github.com/roach88/provcheck/internal/executor"
	"github.com/roach88/provcheck/internal/fault"
)

// Outcome is the (passed, message) result of a comparator.
type Outcome struct {
	Passed  bool
	Message string

	// Code classifies a failure (MISMATCH or TRANSPORT). Empty on success.
	Code fault.Code
}

// Pass returns a passing outcome.
func Pass(format string, args ...any) Outcome {
	return Outcome{Passed: true, Message: fmt.Sprintf(format, args...)}
}

// Fail returns a MISMATCH outcome.
func Fail(format string, args ...any) Outcome {
	return Outcome{Message: fmt.Sprintf(format, args...), Code: fault.CodeMismatch}
}

// commandFail describes a failed command. Commands that never completed
// are TRANSPORT failures; non-zero exits are MISMATCH.
func commandFail(what string, res executor.Result) Outcome {
	code := fault.CodeMismatch
	if res.ExitCode < 0 {
		code = fault.CodeTransport
	}
	return Outcome{
		Message: fmt.Sprintf("%s: %s", what, res.Describe()),
		Code:    code,
	}
}

// quote shell-quotes a single argument for remote command lines.
func quote(arg string) string {
	return shellquote.Join(arg)
}
