package redact

import (
	"path/filepath"
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

type pattern struct {
	name string
	re   *regexp.Regexp
}

// secretPatterns are regex heuristics for common secret types. Order matters:
// provider-specific keys run before the generic sk- rule.
var secretPatterns = []pattern{
	{"api-key-assignment", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"aws-access-key-id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws-secret-access-key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"secret-assignment", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{"bearer-token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"private-key", regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`)},
	{"github-token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"slack-token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"anthropic-key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai-key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"google-api-key", regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)},
	{"connection-string", regexp.MustCompile(`(?i)\b(postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^:\s/]+:[^@\s]+@`)},
	{"hex-secret-assignment", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// SecretsCount replaces detected secrets in text with [REDACTED] and
// reports how many matches were replaced.
func SecretsCount(text string) (string, int) {
	var count int
	result := text
	for _, p := range secretPatterns {
		result = p.re.ReplaceAllStringFunc(result, func(string) string {
			count++
			return placeholder
		})
	}
	return result, count
}

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		// "**/x" also matches x against the base name at any depth.
		cleanPattern := strings.TrimPrefix(pattern, "**/")
		if cleanPattern != pattern {
			matched, err = filepath.Match(cleanPattern, filepath.Base(path))
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Diff redacts a whole unified diff. Sections of files matching redactPaths
// keep their header lines but lose every body line; secrets are scrubbed
// from the rest. It returns the redacted text and the number of redactions.
func Diff(text string, redactPaths []string, secrets bool) (string, int) {
	var count int
	if len(redactPaths) > 0 {
		text, count = dropPaths(text, redactPaths)
	}
	if secrets {
		var n int
		text, n = SecretsCount(text)
		count += n
	}
	return text, count
}

func dropPaths(text string, patterns []string) (string, int) {
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	var count int
	dropping := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\n")
		if strings.HasPrefix(trimmed, "diff --git ") {
			dropping = false
			if path := gitHeaderPath(trimmed); path != "" && ShouldRedactPath(path, patterns) {
				dropping = true
				count++
				b.WriteString(line)
				b.WriteString(placeholder + " (file content redacted by path policy)\n")
				continue
			}
		}
		if dropping {
			continue
		}
		b.WriteString(line)
	}
	return b.String(), count
}

func gitHeaderPath(line string) string {
	rest := strings.TrimPrefix(line, "diff --git ")
	if idx := strings.LastIndex(rest, " b/"); idx >= 0 {
		return strings.Trim(rest[idx+3:], `"`)
	}
	return ""
}
