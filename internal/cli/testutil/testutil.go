// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/collineage/internal/cli/output"
	"github.com/leapstack-labs/collineage/internal/export"
)

// Queries are the SQL files written by SetupTestWorkspace.
var Queries = map[string]string{
	"simple.sql": "SELECT a.x AS X, COUNT(a.y) AS CNT FROM tbl a",
	"nested.sql": `SELECT t0.goods_id, SUM(t0.amount) AS total
FROM (
    SELECT goods_id, amount FROM sales.orders
) t0`,
	"broken.sql": "SELECT a FROM (SELECT b FROM t",
}

// SetupTestWorkspace creates a temporary directory holding the Queries
// files and returns its path.
func SetupTestWorkspace(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	for name, sql := range Queries {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(sql), 0o600); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
	return tmpDir
}

// Chdir changes into dir for the rest of the test.
func Chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the given format.
// Output is captured in buffers for inspection.
func NewTestRenderer(format export.Format) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(out, errOut, format),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdownTable checks that every non-empty line of md is a
// table row with the same number of cells as the header.
func AssertValidMarkdownTable(t *testing.T, md string) {
	t.Helper()

	var cells int
	for i, line := range strings.Split(strings.TrimSpace(md), "\n") {
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			t.Errorf("line %d is not a table row: %q", i+1, line)
			continue
		}
		n := strings.Count(strings.ReplaceAll(line, `\|`, ""), "|") - 1
		if i == 0 {
			cells = n
		} else if n != cells {
			t.Errorf("line %d has %d cells, header has %d: %q", i+1, n, cells, line)
		}
	}
}
