package output

import (
	"io"
	"strings"

	"github.com/dshills/aicr/internal/review"
)

// MarkdownWriter outputs the report as a Markdown document suitable for PR
// comments and job summaries. Findings keep report order.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}

	ew.println("# AI Code Review Report")
	ew.println("")
	ew.println("## Findings")
	ew.println("")

	if len(report.Findings) == 0 {
		ew.println("No issues found. :white_check_mark:")
		ew.println("")
	}

	for _, f := range report.Findings {
		ew.printf("### [%s] %s – %s\n\n", strings.ToUpper(string(f.Severity)), f.Category, f.Title)
		ew.printf("**Location:** %s\n\n", location(f, "(unknown)"))
		ew.println("**Description:**")
		ew.printf("%s\n\n", f.Description)
		if f.Suggestion != "" {
			ew.println("**Suggestion:**")
			if looksLikeCode(f.Suggestion) {
				ew.printf("```%s\n%s\n```\n\n", inferLang(f.Path()), f.Suggestion)
			} else {
				ew.printf("%s\n\n", f.Suggestion)
			}
		}
		if f.Source != "" {
			ew.printf("_Detected by: %s_\n\n", f.Source)
		}
	}

	ew.println("## Summary")
	ew.println("")
	for _, line := range summaryLines(report.Summary()) {
		ew.println("- " + line)
	}

	if notes := analyzerNotes(report.Analyzers); len(notes) > 0 {
		ew.println("")
		ew.println("<details>")
		ew.println("<summary>Analyzer notes</summary>")
		ew.println("")
		for _, n := range notes {
			ew.println("- " + n)
		}
		ew.println("")
		ew.println("</details>")
	}
	return ew.err
}

// looksLikeCode reports whether a suggestion reads as a code snippet rather
// than prose.
func looksLikeCode(s string) bool {
	if strings.Contains(s, "\n") {
		for _, line := range strings.Split(s, "\n") {
			if strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
				return true
			}
		}
	}
	trimmed := strings.TrimSpace(s)
	for _, kw := range []string{"def ", "import ", "from ", "func ", "return "} {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	for _, tok := range []string{":=", "==", "();", "{", "}"} {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

var langByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".sh":   "bash",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
}

func inferLang(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return langByExt[path[i:]]
	}
	return ""
}
