package analyzers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/aicr/internal/review"
)

var radonSeverity = map[string]review.Severity{
	"A": review.SeverityLow,
	"B": review.SeverityLow,
	"C": review.SeverityMedium,
	"D": review.SeverityHigh,
	"E": review.SeverityHigh,
	"F": review.SeverityHigh,
}

type radonBlock struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Classname  string `json:"classname"`
	Rank       string `json:"rank"`
	Complexity int    `json:"complexity"`
	Lineno     int    `json:"lineno"`
	Endline    int    `json:"endline"`
}

// NewRadon returns a cyclomatic-complexity runner over .py files. Blocks
// ranked below minRank are not reported.
func NewRadon(opts Options, minRank string) review.FileAnalyzer {
	minRank = strings.ToUpper(strings.TrimSpace(minRank))
	if _, ok := radonSeverity[minRank]; !ok {
		minRank = "A"
	}
	return &tool{
		name:   "radon",
		binary: "radon",
		exts:   []string{".py"},
		opts:   opts.withDefaults(),
		args: func(files []string) []string {
			return append([]string{"cc", "-j", "--min", minRank}, files...)
		},
		exitOK: func(code int) bool { return code == 0 },
		parse:  parseRadon,
	}
}

// parseRadon reads `radon cc -j` output: an object keyed by filename whose
// values are block lists, or {"error": "..."} for files radon could not read.
// Files are visited in name order.
func parseRadon(out []byte) ([]review.Finding, error) {
	out = trimSpace(out)
	if len(out) == 0 {
		return []review.Finding{}, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	var findings []review.Finding
	for _, name := range names {
		var blocks []radonBlock
		if err := json.Unmarshal(doc[name], &blocks); err != nil {
			// Per-file error object; the file is skipped.
			continue
		}
		for _, b := range blocks {
			sev, ok := radonSeverity[strings.ToUpper(b.Rank)]
			if !ok {
				sev = review.SeverityMedium
			}
			findings = append(findings, review.Finding{
				Category:    review.CategorySmell,
				Severity:    sev,
				Title:       fmt.Sprintf("Cyclomatic complexity rank %s", b.Rank),
				Description: fmt.Sprintf("%s %s has cyclomatic complexity %d", blockKind(b.Type), blockName(b), b.Complexity),
				Suggestion:  "Consider splitting it into smaller functions or simplifying its branching.",
				Location:    location(name, b.Lineno, b.Endline),
			})
		}
	}
	if findings == nil {
		findings = []review.Finding{}
	}
	return findings, nil
}

func blockKind(t string) string {
	switch t {
	case "method":
		return "Method"
	case "class":
		return "Class"
	default:
		return "Function"
	}
}

func blockName(b radonBlock) string {
	if b.Classname != "" && b.Type == "method" {
		return b.Classname + "." + b.Name
	}
	return b.Name
}
