package compare

import (
	"context"
	"strings"

	"github.com/roach88/provcheck/internal/executor"
)

// Default expected service states.
const (
	DefaultActiveState  = "active"
	DefaultEnabledState = "enabled"
)

// ServiceState issues independent is-active and is-enabled queries for unit
// and passes only when both match. Partial state (active but disabled) fails
// with both observed values in the message.
func ServiceState(ctx context.Context, r executor.Runner, unit, wantActive, wantEnabled string) Outcome {
	if wantActive == "" {
		wantActive = DefaultActiveState
	}
	if wantEnabled == "" {
		wantEnabled = DefaultEnabledState
	}

	active := observedState(r.Run(ctx, "systemctl is-active "+quote(unit)))
	enabled := observedState(r.Run(ctx, "systemctl is-enabled "+quote(unit)))

	if active == wantActive && enabled == wantEnabled {
		return Pass("Service %s is %s and %s", unit, active, enabled)
	}
	return Fail("Service %s state: active=%s, enabled=%s (expected active=%s, enabled=%s)",
		unit, active, enabled, wantActive, wantEnabled)
}

// observedState renders a status query result. systemctl exits non-zero for
// inactive or disabled units and prints the state word; anything else is
// reported as unknown with its diagnostic.
func observedState(res executor.Result) string {
	if !res.Failed {
		return res.Output
	}
	if res.ExitCode > 0 {
		if word, ok := strings.CutPrefix(res.Diagnostic, executor.DiagnosticPrefix); ok && isStateWord(word) {
			return word
		}
	}
	return "unknown (" + res.Describe() + ")"
}

func isStateWord(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if (c < 'a' || c > 'z') && c != '-' {
			return false
		}
	}
	return true
}
