package gitctx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Options controls how diffs are gathered.
type Options struct {
	// Dir is the working directory for git; empty means the process cwd.
	Dir          string
	ContextLines int
	Exclude      []string
}

// DiffResult holds the collected diff and metadata.
type DiffResult struct {
	Diff  string
	Files []string
	Mode  string
	Range string
	Repo  RepoMeta
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// RepoRoot returns the top-level directory of the repository containing dir.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	root, err := gitOutput(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(root), nil
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta(ctx context.Context, dir string) (RepoMeta, error) {
	root, err := RepoRoot(ctx, dir)
	if err != nil {
		return RepoMeta{}, err
	}
	// A new repository has no HEAD yet.
	head, _ := gitOutput(ctx, dir, "rev-parse", "HEAD")
	branch, _ := gitOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	return RepoMeta{
		Root:   root,
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// Unstaged returns the diff of working tree vs index.
func Unstaged(ctx context.Context, opts Options) (DiffResult, error) {
	diff, err := gitOutput(ctx, opts.Dir, append([]string{"diff"}, diffArgs(opts)...)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git diff: %w", err)
	}
	return buildResult(ctx, diff, "unstaged", "", opts), nil
}

// Staged returns the diff of index vs HEAD.
func Staged(ctx context.Context, opts Options) (DiffResult, error) {
	diff, err := gitOutput(ctx, opts.Dir, append([]string{"diff", "--cached"}, diffArgs(opts)...)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git diff --cached: %w", err)
	}
	return buildResult(ctx, diff, "staged", "", opts), nil
}

// Range returns the diff between base and head. An empty head means HEAD;
// base...head (merge-base) form is used when mergeBase is set.
func Range(ctx context.Context, base, head string, mergeBase bool, opts Options) (DiffResult, error) {
	if base == "" {
		return DiffResult{}, errors.New("base revision is required")
	}
	if head == "" {
		head = "HEAD"
	}
	sep := ".."
	if mergeBase {
		sep = "..."
	}
	revRange := base + sep + head
	diff, err := gitOutput(ctx, opts.Dir, append([]string{"diff", revRange}, diffArgs(opts)...)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git diff %s: %w", revRange, err)
	}
	return buildResult(ctx, diff, "range", revRange, opts), nil
}

// FromFile reads diff text from path, or from stdin when path is "-".
func FromFile(path string, exclude []string) (DiffResult, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return DiffResult{}, fmt.Errorf("reading diff file: %w", err)
	}
	return FromText(string(data), "file", path, exclude), nil
}

// FromText wraps diff text obtained elsewhere (e.g. the GitHub API).
func FromText(diff, mode, source string, exclude []string) DiffResult {
	diff = FilterExcluded(diff, exclude)
	return DiffResult{
		Diff:  diff,
		Files: extractFiles(diff),
		Mode:  mode,
		Range: source,
	}
}

func diffArgs(opts Options) []string {
	var args []string
	if opts.ContextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	return append(args, "--no-color", "--no-ext-diff", "--")
}

func buildResult(ctx context.Context, diff, mode, rangeStr string, opts Options) DiffResult {
	diff = FilterExcluded(diff, opts.Exclude)
	meta, err := GetRepoMeta(ctx, opts.Dir)
	if err != nil {
		meta = RepoMeta{}
	}
	return DiffResult{
		Diff:  diff,
		Files: extractFiles(diff),
		Mode:  mode,
		Range: rangeStr,
		Repo:  meta,
	}
}

func extractFiles(diff string) []string {
	var files []string
	seen := make(map[string]bool)
	for _, section := range splitDiffSections(diff) {
		f := extractPathFromSection(section)
		if f != "" && !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	return files
}

// FilterExcluded drops every diff section whose path matches an exclude glob.
func FilterExcluded(diff string, excludes []string) string {
	if len(excludes) == 0 {
		return diff
	}
	var kept []string
	for _, section := range splitDiffSections(diff) {
		path := extractPathFromSection(section)
		if path == "" || !MatchesAny(path, excludes) {
			kept = append(kept, section)
		}
	}
	return strings.Join(kept, "")
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)

// splitDiffSections cuts diff text into per-file sections. Git diffs are cut
// at "diff --git" lines; plain diffs (diff -ru, svn) at each "---"/"+++"
// header pair that follows a hunk. Hunk bodies are consumed by their line
// counts so removed lines such as "-- comment" never start a section.
// Concatenating the sections yields the input (a missing final newline is
// added).
func splitDiffSections(diff string) []string {
	if diff == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		lines = append(lines, line)
	}
	git := false
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			git = true
			break
		}
	}

	var (
		sections []string
		current  strings.Builder
		sawHunk  bool
		src, dst int
	)
	flush := func() {
		if current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		sawHunk = false
	}
	for i, line := range lines {
		if src > 0 || dst > 0 {
			body := true
			switch line[0] {
			case ' ', '\n':
				src--
				dst--
			case '-':
				src--
			case '+':
				dst--
			case '\\':
			default:
				body = false
				src, dst = 0, 0
			}
			if body {
				current.WriteString(line)
				continue
			}
		}
		switch {
		case git && strings.HasPrefix(line, "diff --git "):
			flush()
		case !git && sawHunk && strings.HasPrefix(line, "Index: "):
			flush()
		case !git && sawHunk && strings.HasPrefix(line, "--- ") &&
			i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ "):
			flush()
		case strings.HasPrefix(line, "@@"):
			if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
				src, dst = count(m[1]), count(m[2])
				sawHunk = true
			}
		}
		current.WriteString(line)
	}
	flush()
	return sections
}

// count parses an optional hunk length, which defaults to 1.
func count(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// extractPathFromSection prefers the +++ path and falls back to the --- path
// (deletions) or the diff --git header.
func extractPathFromSection(section string) string {
	var minus, header string
	for _, line := range strings.Split(section, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ ") && line != "+++ /dev/null":
			return trimHeaderPath(strings.TrimPrefix(line, "+++ "), "b/")
		case strings.HasPrefix(line, "--- ") && line != "--- /dev/null" && minus == "":
			minus = trimHeaderPath(strings.TrimPrefix(line, "--- "), "a/")
		case strings.HasPrefix(line, "diff --git ") && header == "":
			if idx := strings.LastIndex(line, " b/"); idx >= 0 {
				header = line[idx+3:]
			}
		}
	}
	if minus != "" {
		return minus
	}
	return header
}

func trimHeaderPath(p, prefix string) string {
	if idx := strings.Index(p, "\t"); idx >= 0 {
		p = p[:idx]
	}
	return strings.TrimPrefix(strings.Trim(strings.TrimSpace(p), `"`), prefix)
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
		// "dir/**" matches anything below dir.
		if prefix, ok := strings.CutSuffix(clean, "/**"); ok && !strings.ContainsAny(prefix, "*?[") {
			if strings.HasPrefix(path, prefix+"/") || strings.Contains(path, "/"+prefix+"/") {
				return true
			}
		}
	}
	return false
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
