package analyzers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/aicr/internal/review"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single tool invocation when none is configured.
const DefaultTimeout = 120 * time.Second

// Result is the captured outcome of one tool invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Exec runs a command. A non-zero exit status is reported through
// Result.ExitCode, not as an error; err is reserved for failures to start
// the command or to let it finish (e.g. a context deadline).
type Exec func(ctx context.Context, name string, args ...string) (Result, error)

// DefaultExec runs commands with os/exec.
func DefaultExec(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// Options holds settings shared by every tool runner.
type Options struct {
	Exec     Exec
	Timeout  time.Duration
	Logger   *zap.Logger
	RepoRoot string
}

func (o Options) withDefaults() Options {
	if o.Exec == nil {
		o.Exec = DefaultExec
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// tool is the shared skeleton of an external static-analysis runner.
type tool struct {
	name   string
	binary string
	exts   []string
	opts   Options

	args   func(files []string) []string
	exitOK func(code int) bool
	parse  func(out []byte) ([]review.Finding, error)
	// keep optionally filters parsed findings, e.g. to changed files.
	keep func(f review.Finding, files []string) bool
}

func (t *tool) Name() string { return t.name }

// AnalyzeFiles implements review.FileAnalyzer.
func (t *tool) AnalyzeFiles(ctx context.Context, paths []string) []review.Finding {
	findings, err := t.RunFiles(ctx, paths)
	if err != nil {
		t.opts.Logger.Warn("analyzer failed", zap.String("analyzer", t.name), zap.Error(err))
		return []review.Finding{}
	}
	return findings
}

// RunFiles implements review.FileRunner: a missing binary, an unexpected
// exit status, unparsable output or a timeout is returned as an error.
func (t *tool) RunFiles(ctx context.Context, paths []string) ([]review.Finding, error) {
	files := filterByExt(paths, t.exts)
	if len(files) == 0 {
		return []review.Finding{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	start := time.Now()
	res, err := t.opts.Exec(ctx, t.binary, t.args(files)...)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", t.binary, err)
	}
	if !t.exitOK(res.ExitCode) {
		return nil, fmt.Errorf("%s exited with status %d: %s", t.binary, res.ExitCode, firstLine(res.Stderr))
	}

	findings, err := t.parse(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("parsing %s output: %w", t.binary, err)
	}

	out := make([]review.Finding, 0, len(findings))
	for _, f := range findings {
		if t.keep != nil && !t.keep(f, files) {
			continue
		}
		f.Source = t.name
		if f.Location != nil {
			f.Location.Path = relPath(t.opts.RepoRoot, f.Location.Path)
		}
		out = append(out, f.WithID())
	}
	t.opts.Logger.Debug("analyzer finished",
		zap.String("analyzer", t.name),
		zap.Int("files", len(files)),
		zap.Int("findings", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func filterByExt(paths, exts []string) []string {
	var out []string
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		for _, e := range exts {
			if ext == e {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// relPath reports p relative to root when p lies under it.
func relPath(root, p string) string {
	if root == "" || p == "" || !filepath.IsAbs(p) {
		return p
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return filepath.ToSlash(rel)
}

func trimSpace(b []byte) []byte { return bytes.TrimSpace(b) }

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func location(path string, start, end int) *review.Location {
	if end < start {
		end = start
	}
	return &review.Location{Path: path, StartLine: start, EndLine: end}
}
