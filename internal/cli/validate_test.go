package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeValidate(t *testing.T, format, suitePath string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--format", format, "validate", suitePath})
	err := cmd.Execute()
	return stdout.String(), err
}

func TestValidate_ValidSuiteText(t *testing.T) {
	suitePath := writeRunFixture(t, "web", `""`)

	out, err := executeValidate(t, "text", suitePath)
	require.NoError(t, err)
	assert.Contains(t, out, "  SSH Connectivity (1)")
	assert.Contains(t, out, "  Home Page (3)")
	assert.Contains(t, out, "Suite webserver is valid: 3 checks, 6 marks")
}

func TestValidate_ValidSuiteJSON(t *testing.T) {
	suitePath := writeRunFixture(t, "web", `""`)

	out, err := executeValidate(t, "json", suitePath)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "web", resp.Data.Group)
	assert.Equal(t, 6, resp.Data.MaximumMarks)
	require.Len(t, resp.Data.Checks, 3)
	assert.Equal(t, CheckEntry{ID: "Nginx Config Present", MaximumMarks: 2}, resp.Data.Checks[1])
}

func TestValidate_InvalidSuite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: broken
inventory:
  group: web
checks:
  - id: a
    assert:
      - kind: service
`), 0644))

	out, err := executeValidate(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
	assert.Contains(t, out, "unit is required for service")
}

func TestValidate_MissingSuite(t *testing.T) {
	out, err := executeValidate(t, "json", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `"code":"E001"`)
}
