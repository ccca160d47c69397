package compare

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/provcheck/internal/executor"
	"github.com/roach88/provcheck/internal/fault"
)

// Match selects how Version compares captured output with the expected literal.
type Match string

const (
	MatchExact    Match = "exact"
	MatchPrefix   Match = "prefix"
	MatchContains Match = "contains"
)

// ParseMatch validates a match mode. Empty means exact.
func ParseMatch(s string) (Match, error) {
	switch m := Match(s); m {
	case "":
		return MatchExact, nil
	case MatchExact, MatchPrefix, MatchContains:
		return m, nil
	default:
		return "", fmt.Errorf("unknown match mode %q (want exact, prefix or contains)", s)
	}
}

func (m Match) matches(output, expected string) bool {
	switch m {
	case MatchPrefix:
		return strings.HasPrefix(output, expected)
	case MatchContains:
		return strings.Contains(output, expected)
	default:
		return output == expected
	}
}

// Version runs command and compares its output with expected.
// Prefix matching accommodates patch drift ("v22." matches "v22.14.0").
func Version(ctx context.Context, r executor.Runner, command, expected string, match Match) Outcome {
	res := r.Run(ctx, command)
	if res.Failed {
		return commandFail(command, res)
	}
	if !match.matches(res.Output, expected) {
		return Fail("%s: expected %s %q, found %q", command, match, expected, firstLine(res.Output))
	}
	return Pass("%s: %s", command, firstLine(res.Output))
}

// Connectivity passes iff an echo round-trips over the transport.
func Connectivity(ctx context.Context, r executor.Runner) Outcome {
	res := r.Run(ctx, "echo ok")
	if !res.Failed && res.Output == "ok" {
		return Pass("SSH connection successful using inventory details.")
	}
	return Outcome{
		Message: fmt.Sprintf("SSH connection failed: %s", res.Describe()),
		Code:    fault.CodeTransport,
	}
}

// installedStatus is the dpkg status line of an installed package.
const installedStatus = "Status: install ok installed"

// PackagesInstalled passes iff dpkg reports every package as installed.
// Packages are checked in the given order; the first missing one is reported.
func PackagesInstalled(ctx context.Context, r executor.Runner, packages []string) Outcome {
	for _, pkg := range packages {
		res := r.Run(ctx, "dpkg -s "+quote(pkg))
		if res.Failed && res.ExitCode < 0 {
			return commandFail("dpkg -s "+pkg, res)
		}
		if res.Failed || !strings.Contains(res.Output, installedStatus) {
			return Fail("%s not installed", pkg)
		}
	}
	return Pass("All packages installed: %s", strings.Join(packages, ", "))
}

// PackageVersions passes iff apt reports each package's installed version
// containing the expected version. Packages are checked in sorted order.
func PackageVersions(ctx context.Context, r executor.Runner, versions map[string]string) Outcome {
	names := make([]string, 0, len(versions))
	for name := range versions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, pkg := range names {
		want := versions[pkg]
		res := r.Run(ctx, fmt.Sprintf("apt-cache policy %s | grep Installed", quote(pkg)))
		if res.Failed && res.ExitCode < 0 {
			return commandFail("apt-cache policy "+pkg, res)
		}
		if res.Failed {
			return Fail("%s version mismatch: expected %s, package not found", pkg, want)
		}
		if !strings.Contains(res.Output, want) {
			found := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(res.Output), "Installed:"))
			return Fail("%s version mismatch: expected %s, found %s", pkg, want, found)
		}
	}
	return Pass("All packages installed at expected versions")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
