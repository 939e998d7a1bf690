package diff

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedDiff is matched by every *MalformedDiffError via errors.Is.
var ErrMalformedDiff = errors.New("malformed diff")

// MalformedDiffError reports text that does not parse as a unified diff.
type MalformedDiffError struct {
	Reason string
}

func (e *MalformedDiffError) Error() string {
	return "malformed diff: " + e.Reason
}

// Is lets errors.Is(err, ErrMalformedDiff) match.
func (e *MalformedDiffError) Is(target error) bool {
	return target == ErrMalformedDiff
}

// Line is a single added or removed line.
type Line struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Hunk holds the four integers of a hunk header, as written in the diff.
type Hunk struct {
	SourceStart  int `json:"sourceStart"`
	SourceLength int `json:"sourceLength"`
	TargetStart  int `json:"targetStart"`
	TargetLength int `json:"targetLength"`
}

// ChangedFile is one file touched by a diff.
type ChangedFile struct {
	Path      string `json:"path"`
	OldPath   string `json:"oldPath,omitempty"`
	Added     []Line `json:"addedLines"`
	Removed   []Line `json:"removedLines"`
	Hunks     []Hunk `json:"hunks"`
	Binary    bool   `json:"binary,omitempty"`
	IsNew     bool   `json:"isNew,omitempty"`
	IsDeleted bool   `json:"isDeleted,omitempty"`
}

const devNull = "/dev/null"

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// parser carries the state of a single Parse call.
type parser struct {
	files   []*ChangedFile
	current *ChangedFile

	// fromGitHeader is set while the current file was opened by a
	// "diff --git" line and has not yet seen its ---/+++ pair.
	fromGitHeader bool
	sawHeaders    bool

	// Remaining line budget of the hunk being read.
	hunkSource int
	hunkTarget int
	sourceLine int
	targetLine int
	inHunk     bool
}

// Parse converts unified diff text into an ordered list of changed files.
// Blank input yields an empty list. Text with no recognizable file section
// yields a *MalformedDiffError.
func Parse(text string) ([]ChangedFile, error) {
	if strings.TrimSpace(text) == "" {
		return []ChangedFile{}, nil
	}

	p := &parser{}
	lines := strings.Split(text, "\n")
	// A trailing newline produces one empty element that is not a diff line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if p.inHunk {
			if p.consumeHunkLine(line) {
				continue
			}
			// Anything that is not a hunk body line ends the hunk early.
			p.inHunk = false
		}

		switch {
		case strings.HasPrefix(line, "diff --git "):
			p.startFile(parseGitHeaderPath(strings.TrimPrefix(line, "diff --git ")))
			p.fromGitHeader = true

		case strings.HasPrefix(line, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ "):
			src := headerPath(strings.TrimPrefix(line, "--- "), "a/")
			dst := headerPath(strings.TrimPrefix(lines[i+1], "+++ "), "b/")
			i++
			p.fileHeaders(src, dst)

		case strings.HasPrefix(line, "@@"):
			p.startHunk(line)

		case p.current == nil:
			// Preamble (commit message, mail headers) before the first file.

		case strings.HasPrefix(line, "Binary files ") || strings.HasPrefix(line, "GIT binary patch"):
			p.current.Binary = true

		case strings.HasPrefix(line, "new file mode"):
			p.current.IsNew = true

		case strings.HasPrefix(line, "deleted file mode"):
			p.current.IsDeleted = true

		case strings.HasPrefix(line, "rename from "):
			p.current.OldPath = unquote(strings.TrimPrefix(line, "rename from "))

		case strings.HasPrefix(line, "rename to "):
			p.current.Path = unquote(strings.TrimPrefix(line, "rename to "))
		}
	}

	if len(p.files) == 0 {
		return nil, &MalformedDiffError{Reason: "no file sections found"}
	}

	out := make([]ChangedFile, len(p.files))
	for i, f := range p.files {
		out[i] = *f
	}
	return out, nil
}

func (p *parser) startFile(path string) {
	f := &ChangedFile{Path: path}
	p.files = append(p.files, f)
	p.current = f
	p.fromGitHeader = false
	p.sawHeaders = false
}

// fileHeaders handles a ---/+++ pair. Outside a "diff --git" section each
// pair opens a new file.
func (p *parser) fileHeaders(src, dst string) {
	if p.current == nil || !p.fromGitHeader || p.sawHeaders {
		p.startFile(dst)
	}
	p.fromGitHeader = false
	p.sawHeaders = true

	f := p.current
	switch {
	case dst == devNull:
		f.IsDeleted = true
		f.Path = src
	case src == devNull:
		f.IsNew = true
		f.Path = dst
	default:
		f.Path = dst
		if src != dst {
			f.OldPath = src
		}
	}
}

func (p *parser) startHunk(line string) {
	if p.current == nil {
		return
	}
	m := hunkHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	h := Hunk{
		SourceStart:  atoi(m[1], 0),
		SourceLength: atoi(m[2], 1),
		TargetStart:  atoi(m[3], 0),
		TargetLength: atoi(m[4], 1),
	}
	p.current.Hunks = append(p.current.Hunks, h)
	p.sourceLine = h.SourceStart
	p.targetLine = h.TargetStart
	p.hunkSource = h.SourceLength
	p.hunkTarget = h.TargetLength
	p.inHunk = p.hunkSource > 0 || p.hunkTarget > 0
}

// consumeHunkLine reports whether line belongs to the current hunk body.
func (p *parser) consumeHunkLine(line string) bool {
	f := p.current
	if strings.HasPrefix(line, `\`) {
		return true
	}
	if line == "" {
		// Some tools strip the leading space of blank context lines.
		line = " "
	}
	switch line[0] {
	case '+':
		if p.hunkTarget == 0 {
			return false
		}
		f.Added = append(f.Added, Line{Number: p.targetLine, Text: line[1:]})
		p.targetLine++
		p.hunkTarget--
	case '-':
		if p.hunkSource == 0 {
			return false
		}
		f.Removed = append(f.Removed, Line{Number: p.sourceLine, Text: line[1:]})
		p.sourceLine++
		p.hunkSource--
	case ' ':
		if p.hunkSource == 0 || p.hunkTarget == 0 {
			return false
		}
		p.sourceLine++
		p.targetLine++
		p.hunkSource--
		p.hunkTarget--
	default:
		return false
	}
	if p.hunkSource == 0 && p.hunkTarget == 0 {
		p.inHunk = false
	}
	return true
}

// parseGitHeaderPath extracts the b-side path from the remainder of a
// "diff --git a/x b/y" line.
func parseGitHeaderPath(rest string) string {
	if strings.HasPrefix(rest, `"`) {
		// Quoted paths: "a/x" "b/y"
		if idx := strings.LastIndex(rest, ` "`); idx > 0 {
			return strings.TrimPrefix(unquote(rest[idx+1:]), "b/")
		}
	}
	if idx := strings.LastIndex(rest, " b/"); idx >= 0 {
		return rest[idx+3:]
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// headerPath normalizes the path of a ---/+++ line: drops a trailing
// timestamp, unquotes, and strips the a/ or b/ prefix.
func headerPath(raw, prefix string) string {
	if idx := strings.Index(raw, "\t"); idx >= 0 {
		raw = raw[:idx]
	}
	raw = unquote(strings.TrimSpace(raw))
	if raw == devNull {
		return raw
	}
	return strings.TrimPrefix(raw, prefix)
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Paths returns the paths of files in diff order.
func Paths(files []ChangedFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

// String renders a short description, used in debug logs.
func (f ChangedFile) String() string {
	return fmt.Sprintf("%s (+%d -%d, %d hunks)", f.Path, len(f.Added), len(f.Removed), len(f.Hunks))
}
