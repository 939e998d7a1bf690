package analyzers

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a strict, expert code reviewer. You review unified diffs and report problems as structured JSON.

Rules:
1. Only review the changes shown in the diff. Do not comment on unchanged code.
2. Focus on bugs, security issues, performance problems and maintainability. Avoid style nitpicks unless they hurt readability.
3. Be concise and actionable. Every finding should include a concrete suggestion.
4. Use line numbers from the new side of the diff hunks.
5. Rate severity as "low", "medium", or "high".
6. Categorize each finding as one of: bug, security, performance, smell, style.

You MUST respond with ONLY a JSON array. No markdown, no explanation, no preamble.

Each element must have this structure:
{
  "category": "bug|security|performance|smell|style",
  "severity": "low|medium|high",
  "title": "Short descriptive title",
  "description": "What is wrong and why it matters",
  "suggestion": "How to fix it",
  "file": "relative/file/path",
  "start_line": 1,
  "end_line": 1
}

If there are no issues, respond with an empty array: []`

func buildUserPrompt(diffText string, truncated bool) string {
	var b strings.Builder
	b.WriteString("Review the following code diff.\n")
	if truncated {
		b.WriteString("The diff was truncated; the middle part is replaced by \"...\".\n")
	}
	if langs := detectLanguages(diffText); len(langs) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(langs, ", "))
	}
	b.WriteString("\n--- BEGIN DIFF ---\n")
	b.WriteString(diffText)
	b.WriteString("\n--- END DIFF ---\n")
	return b.String()
}

var languageByExt = []struct{ ext, lang string }{
	{".py", "Python"},
	{".go", "Go"},
	{".js", "JavaScript"},
	{".ts", "TypeScript"},
	{".rs", "Rust"},
	{".java", "Java"},
	{".rb", "Ruby"},
	{".sql", "SQL"},
	{".sh", "Shell"},
	{".yaml", "YAML"},
	{".yml", "YAML"},
}

// detectLanguages scans "+++ " headers for known file extensions.
func detectLanguages(diffText string) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, line := range strings.Split(diffText, "\n") {
		if !strings.HasPrefix(line, "+++ ") {
			continue
		}
		for _, l := range languageByExt {
			if strings.HasSuffix(strings.TrimSpace(line), l.ext) && !seen[l.lang] {
				seen[l.lang] = true
				langs = append(langs, l.lang)
			}
		}
	}
	return langs
}
