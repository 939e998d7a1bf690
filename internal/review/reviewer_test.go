package review

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/aicr/internal/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// stubFiles is a FileAnalyzer returning canned findings for whatever paths
// it receives.
type stubFiles struct {
	name   string
	mu     sync.Mutex
	calls  int
	paths  []string
	result func(paths []string) []Finding
	delay  time.Duration
}

func (s *stubFiles) Name() string { return s.name }

func (s *stubFiles) AnalyzeFiles(_ context.Context, paths []string) []Finding {
	s.mu.Lock()
	s.calls++
	s.paths = paths
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.result == nil {
		return []Finding{}
	}
	return s.result(paths)
}

type stubDiff struct {
	name     string
	calls    atomic.Int32
	findings []Finding
	panicMsg string
	skip     string
}

func (s *stubDiff) Name() string { return s.name }

func (s *stubDiff) AnalyzeDiff(context.Context, string) []Finding {
	s.calls.Add(1)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.findings
}

func (s *stubDiff) Available() (bool, string) {
	return s.skip == "", s.skip
}

const unusedImportDiff = `diff --git a/a.py b/a.py
--- a/a.py
+++ b/a.py
@@ -1 +1,2 @@
 import sys
+import os
`

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestReview_UnusedImportScenario(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := writeRepo(t, map[string]string{"a.py": "import sys\nimport os\n"})
	pylint := &stubFiles{name: "pylint", result: func(paths []string) []Finding {
		return []Finding{{
			Category: CategoryStyle,
			Severity: SeverityMedium,
			Title:    "Unused import os",
			Location: &Location{Path: "a.py", StartLine: 2, EndLine: 2},
			Source:   "pylint",
		}}
	}}
	bandit := &stubFiles{name: "bandit"}
	llm := &stubDiff{name: "llm", skip: "no credential configured"}

	r := NewReviewer(WithRepoRoot(root), WithFileAnalyzers(pylint, bandit), WithDiffAnalyzers(llm))
	report, err := r.Review(context.Background(), unusedImportDiff)
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	f := report.Findings[0]
	assert.Equal(t, "pylint", f.Source)
	assert.Equal(t, SeverityMedium, f.Severity)
	assert.Contains(t, f.Title, "Unused import")

	assert.Equal(t, []string{filepath.Join(root, "a.py")}, pylint.paths)
	assert.Equal(t, []string{"a.py"}, report.Inputs.Files)
	assert.Zero(t, llm.calls.Load(), "skipped analyzer is not invoked")

	require.Len(t, report.Analyzers, 3)
	assert.Equal(t, AnalyzerStatus{Name: "pylint", Findings: 1, Status: StatusOK}, report.Analyzers[0])
	assert.Equal(t, StatusSkipped, report.Analyzers[2].Status)
	assert.Equal(t, "no credential configured", report.Analyzers[2].Reason)

	s := report.Summary()
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.BySeverity[SeverityMedium])
	assert.True(t, report.ShouldFail(SeverityMedium))
	assert.False(t, report.ShouldFail(SeverityHigh))
	assert.NotEmpty(t, report.RunID)
}

func TestReview_EmptyDiffInvokesNothing(t *testing.T) {
	files := &stubFiles{name: "pylint"}
	nl := &stubDiff{name: "llm"}
	r := NewReviewer(WithFileAnalyzers(files), WithDiffAnalyzers(nl))

	for _, in := range []string{"", "\n\n", "  \t"} {
		report, err := r.Review(context.Background(), in)
		require.NoError(t, err)
		assert.Empty(t, report.Findings)
		assert.NotNil(t, report.Findings)
		assert.Zero(t, report.Summary().Total)
	}
	assert.Zero(t, files.calls)
	assert.Zero(t, nl.calls.Load())
}

func TestReview_MalformedDiff(t *testing.T) {
	files := &stubFiles{name: "pylint"}
	r := NewReviewer(WithFileAnalyzers(files))

	report, err := r.Review(context.Background(), "This is just some prose, not a diff.\n")
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, diff.ErrMalformedDiff))
	var mde *diff.MalformedDiffError
	assert.True(t, errors.As(err, &mde))
	assert.Zero(t, files.calls)
}

func TestReview_PanickingAnalyzerIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)

	good := &stubDiff{name: "good", findings: []Finding{{Title: "kept", Severity: SeverityLow, Category: CategoryStyle, Source: "good"}}}
	bad := &stubDiff{name: "bad", panicMsg: "kaboom"}
	r := NewReviewer(WithDiffAnalyzers(bad, good))

	report, err := r.Review(context.Background(), unusedImportDiff)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "kept", report.Findings[0].Title)

	require.Len(t, report.Analyzers, 2)
	assert.Equal(t, StatusFailed, report.Analyzers[0].Status)
	assert.Contains(t, report.Analyzers[0].Reason, "kaboom")
	assert.Equal(t, StatusOK, report.Analyzers[1].Status)
}

// failingRunner reports its failure through RunFiles/RunDiff.
type failingRunner struct {
	name string
	err  error
}

func (f *failingRunner) Name() string { return f.name }

func (f *failingRunner) AnalyzeFiles(context.Context, []string) []Finding { return []Finding{} }

func (f *failingRunner) RunFiles(context.Context, []string) ([]Finding, error) { return nil, f.err }

func (f *failingRunner) AnalyzeDiff(context.Context, string) []Finding { return []Finding{} }

func (f *failingRunner) RunDiff(context.Context, string) ([]Finding, error) { return nil, f.err }

func TestReview_RunnerErrorRecordedAsFailed(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := writeRepo(t, map[string]string{"a.py": "import sys\nimport os\n"})
	tool := &failingRunner{name: "pylint", err: errors.New(`exec: "pylint": executable file not found in $PATH`)}
	nl := &failingRunner{name: "llm", err: errors.New("openai request: timeout")}
	ok := &stubFiles{name: "radon"}

	r := NewReviewer(WithRepoRoot(root), WithFileAnalyzers(tool, ok), WithDiffAnalyzers(nl))
	report, err := r.Review(context.Background(), unusedImportDiff)
	require.NoError(t, err)

	assert.NotNil(t, report.Findings)
	assert.Empty(t, report.Findings)
	require.Len(t, report.Analyzers, 3)
	assert.Equal(t, AnalyzerStatus{Name: "pylint", Status: StatusFailed, Reason: tool.err.Error()}, report.Analyzers[0])
	assert.Equal(t, AnalyzerStatus{Name: "radon", Status: StatusOK}, report.Analyzers[1])
	assert.Equal(t, StatusFailed, report.Analyzers[2].Status)
	assert.Contains(t, report.Analyzers[2].Reason, "timeout")
}

func TestReview_RegistrationOrderRegardlessOfTiming(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := writeRepo(t, map[string]string{"a.py": "x\n"})
	mk := func(name string, delay time.Duration) *stubFiles {
		return &stubFiles{name: name, delay: delay, result: func([]string) []Finding {
			return []Finding{{Title: name, Severity: SeverityLow, Category: CategoryStyle, Source: name}}
		}}
	}
	slow, fast := mk("slow", 30*time.Millisecond), mk("fast", 0)
	nl := &stubDiff{name: "nl", findings: []Finding{{Title: "nl", Severity: SeverityHigh, Category: CategoryBug, Source: "nl"}}}

	for _, parallel := range []bool{true, false} {
		r := NewReviewer(WithRepoRoot(root), WithParallel(parallel), WithDiffAnalyzers(nl), WithFileAnalyzers(slow, fast))
		report, err := r.Review(context.Background(), unusedImportDiff)
		require.NoError(t, err)

		var titles []string
		for _, f := range report.Findings {
			titles = append(titles, f.Title)
		}
		assert.Equal(t, []string{"slow", "fast", "nl"}, titles, "parallel=%v", parallel)
	}
}

func TestReview_NoDeduplication(t *testing.T) {
	same := Finding{Title: "dup", Severity: SeverityLow, Category: CategoryStyle, Source: "x"}
	a := &stubDiff{name: "a", findings: []Finding{same}}
	b := &stubDiff{name: "b", findings: []Finding{same}}
	report, err := NewReviewer(WithDiffAnalyzers(a, b)).Review(context.Background(), unusedImportDiff)
	require.NoError(t, err)
	assert.Len(t, report.Findings, 2)
}

func TestResolvePaths(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.py":      "x",
		"pkg/b.py":  "y",
		"pkg/c.txt": "z",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir.py"), 0o755))

	files := []diff.ChangedFile{
		{Path: "a.py"},
		{Path: "pkg/b.py"},
		{Path: "a.py"},
		{Path: "missing.py"},
		{Path: "gone.py", IsDeleted: true},
		{Path: "dir.py"},
		{Path: ""},
	}
	got := ResolvePaths(files, root)
	assert.Equal(t, []string{filepath.Join(root, "a.py"), filepath.Join(root, "pkg/b.py")}, got)

	abs := filepath.Join(root, "pkg/c.txt")
	assert.Equal(t, []string{abs}, ResolvePaths([]diff.ChangedFile{{Path: abs}}, root))
	assert.Equal(t, []string{abs}, ResolvePaths([]diff.ChangedFile{{Path: abs}}, ""))
}

func TestResolvePaths_StaysInsideRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "repo")
	require.NoError(t, os.MkdirAll(root, 0o755))
	secret := filepath.Join(base, "secret.py")
	require.NoError(t, os.WriteFile(secret, []byte("token = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.py"), []byte("x = 1\n"), 0o644))

	files := []diff.ChangedFile{
		{Path: "../secret.py"},
		{Path: secret},
		{Path: "sub/../../secret.py"},
		{Path: "ok.py"},
	}
	assert.Equal(t, []string{filepath.Join(root, "ok.py")}, ResolvePaths(files, root))

	if err := os.Symlink(secret, filepath.Join(root, "link.py")); err == nil {
		assert.Empty(t, ResolvePaths([]diff.ChangedFile{{Path: "link.py"}}, root))
	}
}
