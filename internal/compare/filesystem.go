package compare

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/roach88/provcheck/internal/executor"
)

// DefaultStatFormat renders "owner:group mode", e.g. "ubuntu:ubuntu 644".
const DefaultStatFormat = "%U:%G %a"

// existsMarker is echoed by the remote test when the path is present.
const existsMarker = "exists"

// PathKind selects the test(1) operator used by Exists.
type PathKind string

const (
	PathAny  PathKind = "any"
	PathFile PathKind = "file"
	PathDir  PathKind = "dir"
)

func (k PathKind) flag() string {
	switch k {
	case PathFile:
		return "-f"
	case PathDir:
		return "-d"
	default:
		return "-e"
	}
}

// Exists passes iff path exists on the remote host with the given kind.
func Exists(ctx context.Context, r executor.Runner, path string, kind PathKind) Outcome {
	res := r.Run(ctx, fmt.Sprintf("[ %s %s ] && echo %s", kind.flag(), quote(path), existsMarker))
	if res.Failed && res.ExitCode < 0 {
		return commandFail("check "+path, res)
	}
	if !res.Failed && res.Output == existsMarker {
		return Pass("%s exists", path)
	}
	return Fail("%s not found", path)
}

// Ownership passes iff `stat -c format path` prints exactly expected.
// An empty format uses DefaultStatFormat.
func Ownership(ctx context.Context, r executor.Runner, path, format, expected string) Outcome {
	if format == "" {
		format = DefaultStatFormat
	}

	res := r.Run(ctx, fmt.Sprintf("stat -c %s %s", quote(format), quote(path)))
	if res.Failed {
		return commandFail("stat "+path, res)
	}
	if res.Output != expected {
		return Fail("Incorrect ownership or permissions for %s: %s. Expected %s.", path, res.Output, expected)
	}
	return Pass("%s has %s", path, expected)
}

// NormalizeLines splits s into lines, trims surrounding whitespace from each
// and drops blank lines.
func NormalizeLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// TemplateDiff compares a local reference file with a remote file after
// NormalizeLines on both. Line counts must match before lines are compared;
// the first differing pair is reported.
func TemplateDiff(ctx context.Context, r executor.Runner, localPath, remotePath string) Outcome {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return Fail("Local template error: %v", err)
	}
	expected := NormalizeLines(string(data))

	res := r.Run(ctx, "cat "+quote(remotePath))
	if res.Failed {
		return commandFail("Failed to read "+remotePath, res)
	}
	found := NormalizeLines(res.Output)

	if len(expected) != len(found) {
		msg := fmt.Sprintf("Content length mismatch for %s: expected %d lines, found %d",
			remotePath, len(expected), len(found))
		if diff := unifiedDiff(expected, found, localPath, remotePath); diff != "" {
			msg += "\n" + diff
		}
		return Fail("%s", msg)
	}

	for i := range expected {
		if expected[i] != found[i] {
			return Fail("Content mismatch in %s at line %d:\nExpected: %s\nFound: %s",
				remotePath, i+1, expected[i], found[i])
		}
	}

	return Pass("%s matches template %s", remotePath, filepath.Base(localPath))
}

// unifiedDiff renders normalised line slices as a unified diff.
func unifiedDiff(expected, found []string, from, to string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(expected, "\n")),
		B:        difflib.SplitLines(strings.Join(found, "\n")),
		FromFile: from,
		ToFile:   to,
		Context:  1,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return strings.TrimRight(text, "\n")
}
