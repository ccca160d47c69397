package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provcheck/internal/report"
	"github.com/roach88/provcheck/internal/store"
	"github.com/roach88/provcheck/internal/testutil"
)

func executeHistory(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--format", format, "history"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func seedHistory(t *testing.T, runs int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	st, err := store.Open(path, store.WithClock(testutil.NewFixedClock(time.Time{})))
	require.NoError(t, err)
	defer st.Close()

	for i := 0; i < runs; i++ {
		rep := report.Aggregate([]report.Record{
			report.Success("SSH Connectivity", 1, "ok"),
			report.Failure("MongoDB Service", 2, "Service mongod state: active=inactive, enabled=enabled (expected active=active, enabled=enabled)"),
		})
		_, err := st.WriteRun(context.Background(), store.NewRun("database", "db", "ubuntu@203.0.113.20:22", "/srv/evaluate.json", rep))
		require.NoError(t, err)
	}
	return path
}

func TestHistory_ListText(t *testing.T) {
	db := seedHistory(t, 3)

	out, err := executeHistory(t, "text", "--db", db, "--limit", "2")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "   3  ")
	assert.Contains(t, string(lines[0]), "database")
	assert.Contains(t, string(lines[0]), "1/3")
	assert.Contains(t, string(lines[0]), "2024-01-01T00:00:00Z")
	assert.Contains(t, string(lines[1]), "   2  ")
}

func TestHistory_Empty(t *testing.T) {
	db := seedHistory(t, 0)

	out, err := executeHistory(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestHistory_MissingDatabase(t *testing.T) {
	out, err := executeHistory(t, "text", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestHistory_RunNotFound(t *testing.T) {
	db := seedHistory(t, 1)

	out, err := executeHistory(t, "json", "--db", db, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"code":"E005"`)
}

func TestHistory_RequiresDB(t *testing.T) {
	_, err := executeHistory(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}
