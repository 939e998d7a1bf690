package review

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/aicr/internal/diff"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	toolName    = "aicr"
	toolVersion = "1.0"
)

// FileAnalyzer inspects on-disk file contents. Implementations must absorb
// their own failures and return an empty slice instead.
type FileAnalyzer interface {
	Name() string
	AnalyzeFiles(ctx context.Context, paths []string) []Finding
}

// DiffAnalyzer inspects raw diff text. The same absorption rule applies.
type DiffAnalyzer interface {
	Name() string
	AnalyzeDiff(ctx context.Context, diffText string) []Finding
}

// FileRunner is implemented by file analyzers that report their failures
// instead of absorbing them. The reviewer records such a run as failed with
// no findings.
type FileRunner interface {
	RunFiles(ctx context.Context, paths []string) ([]Finding, error)
}

// DiffRunner is the DiffAnalyzer counterpart of FileRunner.
type DiffRunner interface {
	RunDiff(ctx context.Context, diffText string) ([]Finding, error)
}

// Availability is optionally implemented by analyzers that can tell up
// front that they have nothing to do (e.g. no credential configured).
// Unavailable analyzers are recorded as skipped and not invoked.
type Availability interface {
	Available() (ok bool, reason string)
}

// Reviewer turns diff text into a Report by fanning out to analyzers.
type Reviewer struct {
	repoRoot      string
	fileAnalyzers []FileAnalyzer
	diffAnalyzers []DiffAnalyzer
	parallel      bool
	logger        *zap.Logger
}

// Option configures a Reviewer.
type Option func(*Reviewer)

// WithRepoRoot sets the directory relative diff paths are resolved against.
func WithRepoRoot(root string) Option {
	return func(r *Reviewer) { r.repoRoot = root }
}

// WithFileAnalyzers appends analyzers that run on resolved file paths.
func WithFileAnalyzers(a ...FileAnalyzer) Option {
	return func(r *Reviewer) { r.fileAnalyzers = append(r.fileAnalyzers, a...) }
}

// WithDiffAnalyzers appends analyzers that run on the diff text.
func WithDiffAnalyzers(a ...DiffAnalyzer) Option {
	return func(r *Reviewer) { r.diffAnalyzers = append(r.diffAnalyzers, a...) }
}

// WithParallel toggles concurrent analyzer execution (default on).
func WithParallel(p bool) Option {
	return func(r *Reviewer) { r.parallel = p }
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reviewer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReviewer creates a Reviewer.
func NewReviewer(opts ...Option) *Reviewer {
	r := &Reviewer{parallel: true, logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RepoRoot returns the configured repository root.
func (r *Reviewer) RepoRoot() string { return r.repoRoot }

// Review parses diffText, runs every analyzer, and returns the merged report.
// A *diff.MalformedDiffError is returned unchanged in the error chain; no
// analyzer failure is ever returned.
func (r *Reviewer) Review(ctx context.Context, diffText string) (*Report, error) {
	start := time.Now()
	report := r.newReport()

	if strings.TrimSpace(diffText) == "" {
		report.Timing.TotalMs = time.Since(start).Milliseconds()
		return report, nil
	}

	files, err := diff.Parse(diffText)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	report.Inputs.Files = diff.Paths(files)
	report.Timing.ParseMs = time.Since(start).Milliseconds()

	paths := ResolvePaths(files, r.repoRoot)
	r.logger.Debug("resolved changed files",
		zap.Int("changed", len(files)),
		zap.Int("on_disk", len(paths)),
		zap.String("repo_root", r.repoRoot))

	analyzeStart := time.Now()
	results := r.runAll(ctx, paths, diffText)
	for _, res := range results {
		report.Findings = append(report.Findings, res.findings...)
		report.Analyzers = append(report.Analyzers, res.status)
	}
	report.Timing.AnalyzeMs = time.Since(analyzeStart).Milliseconds()
	report.Timing.TotalMs = time.Since(start).Milliseconds()

	r.logger.Info("review complete",
		zap.Int("findings", len(report.Findings)),
		zap.Int64("total_ms", report.Timing.TotalMs))
	return report, nil
}

type analyzerResult struct {
	findings []Finding
	status   AnalyzerStatus
}

type job struct {
	name string
	run  func(ctx context.Context) ([]Finding, error)
	src  any
}

func (r *Reviewer) jobs(paths []string, diffText string) []job {
	var jobs []job
	for _, a := range r.fileAnalyzers {
		run := func(ctx context.Context) ([]Finding, error) { return a.AnalyzeFiles(ctx, paths), nil }
		if fr, ok := a.(FileRunner); ok {
			run = func(ctx context.Context) ([]Finding, error) { return fr.RunFiles(ctx, paths) }
		}
		jobs = append(jobs, job{name: a.Name(), run: run, src: a})
	}
	for _, a := range r.diffAnalyzers {
		run := func(ctx context.Context) ([]Finding, error) { return a.AnalyzeDiff(ctx, diffText), nil }
		if dr, ok := a.(DiffRunner); ok {
			run = func(ctx context.Context) ([]Finding, error) { return dr.RunDiff(ctx, diffText) }
		}
		jobs = append(jobs, job{name: a.Name(), run: run, src: a})
	}
	return jobs
}

// runAll executes every analyzer. Each writes only its own result slot, so
// the merged order is registration order regardless of completion order.
func (r *Reviewer) runAll(ctx context.Context, paths []string, diffText string) []analyzerResult {
	jobs := r.jobs(paths, diffText)
	results := make([]analyzerResult, len(jobs))

	if !r.parallel {
		for i, j := range jobs {
			results[i] = r.runOne(ctx, j)
		}
		return results
	}

	// Jobs never return errors, so the group's context is only cancelled
	// by the parent.
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = r.runOne(gctx, j)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runOne runs a single analyzer. An error or a panic becomes an empty result
// with a failed status.
func (r *Reviewer) runOne(ctx context.Context, j job) (res analyzerResult) {
	res.status = AnalyzerStatus{Name: j.name, Status: StatusOK}
	if av, ok := j.src.(Availability); ok {
		if available, reason := av.Available(); !available {
			r.logger.Debug("analyzer skipped", zap.String("analyzer", j.name), zap.String("reason", reason))
			res.status.Status = StatusSkipped
			res.status.Reason = reason
			return res
		}
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("analyzer panicked", zap.String("analyzer", j.name), zap.Any("panic", p))
			res.findings = nil
			res.status.Findings = 0
			res.status.Status = StatusFailed
			res.status.Reason = fmt.Sprintf("panic: %v", p)
		}
	}()

	findings, err := j.run(ctx)
	if err != nil {
		r.logger.Warn("analyzer failed", zap.String("analyzer", j.name), zap.Error(err))
		res.findings = []Finding{}
		res.status.Status = StatusFailed
		res.status.Reason = err.Error()
		return res
	}
	res.findings = findings
	res.status.Findings = len(findings)
	return res
}

func (r *Reviewer) newReport() *Report {
	return &Report{
		Tool:     toolName,
		Version:  toolVersion,
		RunID:    uuid.NewString(),
		Repo:     RepoInfo{Root: r.repoRoot},
		Findings: []Finding{},
	}
}

// ResolvePaths maps changed files to on-disk paths. Relative paths are joined
// to repoRoot when it is set; only existing regular files are kept. With a
// repoRoot, paths that resolve outside it (absolute, "..", or through a
// symlink) are dropped.
func ResolvePaths(files []diff.ChangedFile, repoRoot string) []string {
	var out []string
	seen := make(map[string]bool)
	realRoot := ""
	if repoRoot != "" {
		realRoot = repoRoot
		if r, err := filepath.EvalSymlinks(repoRoot); err == nil {
			realRoot = r
		}
	}
	for _, f := range files {
		if f.Path == "" || f.IsDeleted {
			continue
		}
		p := f.Path
		if repoRoot != "" && !filepath.IsAbs(p) {
			p = filepath.Join(repoRoot, p)
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if realRoot != "" && !within(realRoot, p) {
			continue
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// within reports whether p, with symlinks resolved, lies under root.
func within(root, p string) bool {
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, real)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
