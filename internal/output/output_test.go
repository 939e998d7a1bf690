package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/aicr/internal/review"
)

func sampleReport() *review.Report {
	return &review.Report{
		Tool:    "aicr",
		Version: "1.0",
		RunID:   "run-1",
		Inputs:  review.InputInfo{Mode: "file", Range: "change.diff", Files: []string{"a.py"}},
		Findings: []review.Finding{
			{
				ID:          "f1",
				Category:    review.CategoryStyle,
				Severity:    review.SeverityLow,
				Title:       "Unused import os",
				Description: "Unused import os (W0611 unused-import)",
				Location:    &review.Location{Path: "a.py", StartLine: 1},
				Source:      "pylint",
			},
			{
				ID:          "f2",
				Category:    review.CategorySecurity,
				Severity:    review.SeverityHigh,
				Title:       "Use of exec detected.",
				Description: "Use of exec detected.",
				Suggestion:  "See https://bandit.readthedocs.io/en/latest/plugins/b102_exec_used.html",
				Location:    &review.Location{Path: "a.py", StartLine: 4, EndLine: 6},
				Source:      "bandit",
			},
			{
				Category:    review.CategoryBug,
				Severity:    review.SeverityMedium,
				Title:       "Missing error handling",
				Description: "The call can fail.",
				Suggestion:  "try:\n    run()\nexcept OSError:\n    pass",
				Source:      "llm",
			},
		},
		Analyzers: []review.AnalyzerStatus{
			{Name: "pylint", Status: review.StatusOK, Findings: 1},
			{Name: "radon", Status: review.StatusFailed, Reason: "radon not found"},
		},
	}
}

func emptyReport() *review.Report {
	return &review.Report{Tool: "aicr", Version: "1.0", Inputs: review.InputInfo{Mode: "staged"}}
}

func TestGetWriter(t *testing.T) {
	for _, f := range Formats {
		w, err := GetWriter(f)
		require.NoError(t, err, f)
		assert.NotNil(t, w)
	}
	_, err := GetWriter("yaml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestWriteReport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, WriteReport(sampleReport(), "markdown", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# AI Code Review Report"))

	assert.Error(t, WriteReport(sampleReport(), "markdown", filepath.Join(t.TempDir(), "missing", "r.md")))
}

func TestWriteJobSummary_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")
	require.NoError(t, os.WriteFile(path, []byte("previous step\n"), 0o644))

	require.NoError(t, WriteJobSummary(path, sampleReport()))
	require.NoError(t, WriteJobSummary(path, emptyReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.HasPrefix(out, "previous step\n"))
	assert.Equal(t, 2, strings.Count(out, "# AI Code Review Report"))

	assert.NoError(t, WriteJobSummary("", sampleReport()))
}

func TestJSONWriter_IncludesSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, `"summary"`)
	assert.Contains(t, out, `"total": 3`)
	assert.Contains(t, out, `"highestSeverity": "high"`)
	assert.Contains(t, out, `"source": "bandit"`)
}

func TestJSONWriter_EmptyFindingsIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, emptyReport()))
	assert.Contains(t, buf.String(), `"findings": []`)
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownWriter{}).Write(&buf, sampleReport()))
	out := buf.String()

	for _, want := range []string{
		"# AI Code Review Report",
		"## Findings",
		"### [LOW] style – Unused import os",
		"**Location:** a.py:1",
		"### [HIGH] security – Use of exec detected.",
		"**Location:** a.py:4-6",
		"**Location:** (unknown)",
		"_Detected by: pylint_",
		"```\ntry:",
		"## Summary",
		"- security: 1",
		"- high: 1",
		"- Total: 3",
		"radon: failed (radon not found)",
	} {
		assert.Contains(t, out, want)
	}
	// Report order is kept.
	assert.Less(t, strings.Index(out, "Unused import os"), strings.Index(out, "Use of exec"))
	// Prose suggestions are not fenced.
	assert.NotContains(t, out, "```\nSee https://")
}

func TestMarkdownWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownWriter{}).Write(&buf, emptyReport()))
	out := buf.String()
	assert.Contains(t, out, "No issues found")
	assert.Contains(t, out, "- Total: 0")
	assert.NotContains(t, out, "Analyzer notes")
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TextWriter{}).Write(&buf, sampleReport()))
	out := buf.String()

	for _, want := range []string{
		"AI Code Review Report",
		"Mode: file (change.diff)",
		"Files reviewed: 1",
		"Severity",
		"HIGH",
		"a.py:4-6",
		"Unused import os",
		"bandit",
		"Summary:",
		"- Total: 3",
		"radon: failed",
	} {
		assert.Contains(t, out, want)
	}
}

func TestTextWriter_NoFindings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TextWriter{}).Write(&buf, emptyReport()))
	assert.Contains(t, buf.String(), "No issues found.")
	assert.Contains(t, buf.String(), "- Total: 0")
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "a b", clip("a\n  b", 10))
	assert.Equal(t, "abcd…", clip("abcdefgh", 5))
}

func TestPrettyWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyWriter{Style: "notty", Width: 80}).Write(&buf, sampleReport()))
	out := buf.String()
	assert.Contains(t, out, "AI Code Review Report")
	assert.Contains(t, out, "Unused import os")
}

func TestLooksLikeCode(t *testing.T) {
	assert.True(t, looksLikeCode("import sys"))
	assert.True(t, looksLikeCode("if x == None:\n    pass"))
	assert.False(t, looksLikeCode("Remove the unused import."))
	assert.False(t, looksLikeCode("See https://example.com/b102.html"))
}
