package analyzers

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dshills/aicr/internal/review"
)

var gosecSeverity = map[string]review.Severity{
	"LOW":    review.SeverityLow,
	"MEDIUM": review.SeverityMedium,
	"HIGH":   review.SeverityHigh,
}

type gosecOutput struct {
	Issues []gosecIssue `json:"Issues"`
}

type gosecIssue struct {
	Severity   string `json:"severity"`
	Confidence string `json:"confidence"`
	RuleID     string `json:"rule_id"`
	Details    string `json:"details"`
	File       string `json:"file"`
	Line       string `json:"line"`
	CWE        struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"cwe"`
}

// NewGosec returns a runner for gosec over .go files. gosec scans whole
// package directories, so issues outside the changed files are dropped.
func NewGosec(opts Options) review.FileAnalyzer {
	return &tool{
		name:   "gosec",
		binary: "gosec",
		exts:   []string{".go"},
		opts:   opts.withDefaults(),
		args: func(files []string) []string {
			return append([]string{"-fmt=json", "-quiet", "-no-fail"}, packageDirs(files)...)
		},
		exitOK: func(code int) bool { return code == 0 || code == 1 },
		parse:  parseGosec,
		keep: func(f review.Finding, files []string) bool {
			for _, p := range files {
				if samePath(p, f.Path()) {
					return true
				}
			}
			return false
		},
	}
}

func parseGosec(out []byte) ([]review.Finding, error) {
	out = trimSpace(out)
	if len(out) == 0 {
		return []review.Finding{}, nil
	}
	var doc gosecOutput
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, err
	}
	findings := make([]review.Finding, 0, len(doc.Issues))
	for _, is := range doc.Issues {
		sev, ok := gosecSeverity[strings.ToUpper(is.Severity)]
		if !ok {
			sev = review.SeverityMedium
		}
		start, end := parseLineRange(is.Line)
		var suggestion string
		if is.CWE.URL != "" {
			suggestion = "See " + is.CWE.URL
		}
		findings = append(findings, review.Finding{
			Category:    review.CategorySecurity,
			Severity:    sev,
			Title:       is.Details,
			Description: is.RuleID + ": " + is.Details,
			Suggestion:  suggestion,
			Location:    location(is.File, start, end),
		})
	}
	return findings, nil
}

// parseLineRange reads gosec's "12" or "12-14" line field.
func parseLineRange(s string) (int, int) {
	first, last, _ := strings.Cut(s, "-")
	start, _ := strconv.Atoi(strings.TrimSpace(first))
	end := start
	if last != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(last)); err == nil {
			end = n
		}
	}
	return start, end
}

func packageDirs(files []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range files {
		d := filepath.Dir(f)
		if !filepath.IsAbs(d) && !strings.HasPrefix(d, ".") {
			d = "./" + d
		}
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
