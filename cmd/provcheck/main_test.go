package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provcheck/internal/cli"
)

func TestRun_ReportedErrorPrintedOnce(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	code := run([]string{"validate", missing}, &stdout, &stderr)

	assert.Equal(t, cli.ExitCommandError, code)
	assert.Equal(t, 1, strings.Count(stdout.String()+stderr.String(), "absent.yaml"),
		"stdout=%q stderr=%q", stdout.String(), stderr.String())
	assert.Contains(t, stdout.String(), "Error [E001]")
	assert.NotContains(t, stderr.String(), "suite not found")
}

func TestRun_UnreportedErrorGoesToStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"--format", "xml", "validate", "suite.yaml"}, &stdout, &stderr)

	assert.Equal(t, cli.ExitFailure, code)
	assert.Contains(t, stderr.String(), `invalid format "xml"`)
}

func TestRun_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: smoke
inventory:
  group: web
checks:
  - id: SSH Connectivity
    assert:
      - kind: connectivity
`), 0644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"validate", path}, &stdout, &stderr)

	assert.Equal(t, cli.ExitSuccess, code, stderr.String())
	assert.Contains(t, stdout.String(), "Suite smoke is valid: 1 checks, 1 marks")
}
