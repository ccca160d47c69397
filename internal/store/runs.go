package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/provcheck/internal/report"
)

// ErrRunNotFound is returned by ReadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one persisted verification run.
type Run struct {
	// ID is assigned by the store's IDGenerator when empty.
	ID string

	// Seq orders runs by insertion. Assigned by WriteRun.
	Seq int64

	Suite string

	// SuiteDigest identifies the suite content the run was evaluated from.
	SuiteDigest string

	Group      string
	Target     string
	ReportPath string

	// StartedAt defaults to the store clock when zero.
	StartedAt time.Time

	Score   int
	Maximum int

	// Records is populated by ReadRun and ignored by ListRuns.
	Records []report.Record
}

// NewRun builds a Run from a report, computing its totals.
func NewRun(suite, group, target, reportPath string, r report.Report) Run {
	return Run{
		Suite:      suite,
		Group:      group,
		Target:     target,
		ReportPath: reportPath,
		Score:      r.Score(),
		Maximum:    r.Maximum(),
		Records:    append([]report.Record(nil), r.Records...),
	}
}

// WriteRun stores run and its records in a single transaction and returns
// the stored run with ID, Seq and StartedAt filled in.
func (s *Store) WriteRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = s.ids.Generate()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.clock.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
		return Run{}, fmt.Errorf("write run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, suite, suite_digest, host_group, target, report_path, started_at, score, maximum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		run.Suite,
		run.SuiteDigest,
		run.Group,
		run.Target,
		run.ReportPath,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Score,
		run.Maximum,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (run_id, position, testid, status, score, maximum, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Run{}, fmt.Errorf("write run %s: prepare records: %w", run.ID, err)
	}
	defer stmt.Close()

	for i, rec := range run.Records {
		if _, err := stmt.ExecContext(ctx, run.ID, i, rec.TestID, string(rec.Status), rec.Score, rec.Maximum, rec.Message); err != nil {
			return Run{}, fmt.Errorf("write run %s: record %d (%s): %w", run.ID, i, rec.TestID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run %s: commit: %w", run.ID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first, without records.
// A non-positive limit returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, seq, suite, suite_digest, host_group, target, report_path, started_at, score, maximum
		FROM runs
		ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run with its records in report order.
// Returns ErrRunNotFound if id is unknown.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, suite, suite_digest, host_group, target, report_path, started_at, score, maximum
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT testid, status, score, maximum, message
		FROM records
		WHERE run_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s records: %w", id, err)
	}
	defer rows.Close()

	run.Records = []report.Record{}
	for rows.Next() {
		var rec report.Record
		var status string
		if err := rows.Scan(&rec.TestID, &status, &rec.Score, &rec.Maximum, &rec.Message); err != nil {
			return Run{}, fmt.Errorf("read run %s records: %w", id, err)
		}
		rec.Status = report.Status(status)
		run.Records = append(run.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("read run %s records: %w", id, err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var startedAt string
	if err := sc.Scan(
		&run.ID,
		&run.Seq,
		&run.Suite,
		&run.SuiteDigest,
		&run.Group,
		&run.Target,
		&run.ReportPath,
		&startedAt,
		&run.Score,
		&run.Maximum,
	); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	run.StartedAt = t
	return run, nil
}
