package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	reportDirPerm  = 0o755
	reportFilePerm = 0o644
)

// Marshal serializes a report with the fixed schema.
//
// Differences from a plain json.Marshal:
//  1. Four-space indentation
//  2. No HTML escaping (messages quote markup such as "<h1>")
//  3. Messages are NFC normalized with invalid UTF-8 replaced, so captured
//     remote output cannot make two otherwise identical reports differ
func Marshal(r Report) ([]byte, error) {
	out := Report{Records: make([]Record, len(r.Records))}
	for i, rec := range r.Records {
		rec.TestID = normalizeText(rec.TestID)
		rec.Message = normalizeText(rec.Message)
		out.Records[i] = rec
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return buf.Bytes(), nil
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.ToValidUTF8(s, "\uFFFD"))
}

// Persist writes the report to path atomically: the document is written to a
// temporary file in the destination directory, synced, then renamed over
// path. Readers observe either the previous report or the complete new one.
func Persist(r Report, path string) (err error) {
	data, err := Marshal(r)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, reportDirPerm); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary report: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync report: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err = os.Chmod(tmpPath, reportFilePerm); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}

	return nil
}

// Read loads a persisted report.
func Read(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("failed to parse report: %w", err)
	}
	if r.Records == nil {
		r.Records = []Record{}
	}
	return r, nil
}
