package analyzers

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/aicr/internal/review"
)

var banditSeverity = map[string]review.Severity{
	"LOW":    review.SeverityLow,
	"MEDIUM": review.SeverityMedium,
	"HIGH":   review.SeverityHigh,
}

type banditOutput struct {
	Results []banditResult `json:"results"`
}

type banditResult struct {
	Filename        string `json:"filename"`
	IssueText       string `json:"issue_text"`
	IssueSeverity   string `json:"issue_severity"`
	IssueConfidence string `json:"issue_confidence"`
	LineNumber      int    `json:"line_number"`
	LineRange       []int  `json:"line_range"`
	TestID          string `json:"test_id"`
	TestName        string `json:"test_name"`
	MoreInfo        string `json:"more_info"`
}

// NewBandit returns a runner for bandit over .py files.
func NewBandit(opts Options) review.FileAnalyzer {
	return &tool{
		name:   "bandit",
		binary: "bandit",
		exts:   []string{".py"},
		opts:   opts.withDefaults(),
		args: func(files []string) []string {
			return append([]string{"-f", "json", "-q"}, files...)
		},
		// bandit exits 1 when it reports issues.
		exitOK: func(code int) bool { return code == 0 || code == 1 },
		parse:  parseBandit,
	}
}

func parseBandit(out []byte) ([]review.Finding, error) {
	out = trimSpace(out)
	if len(out) == 0 {
		return []review.Finding{}, nil
	}
	var doc banditOutput
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, err
	}
	findings := make([]review.Finding, 0, len(doc.Results))
	for _, r := range doc.Results {
		sev, ok := banditSeverity[r.IssueSeverity]
		if !ok {
			sev = review.SeverityMedium
		}
		end := r.LineNumber
		if n := len(r.LineRange); n > 0 && r.LineRange[n-1] > end {
			end = r.LineRange[n-1]
		}
		desc := r.IssueText
		if r.TestID != "" {
			desc = fmt.Sprintf("%s [%s %s, confidence %s]", r.IssueText, r.TestID, r.TestName, r.IssueConfidence)
		}
		var suggestion string
		if r.MoreInfo != "" {
			suggestion = "See " + r.MoreInfo
		}
		findings = append(findings, review.Finding{
			Category:    review.CategorySecurity,
			Severity:    sev,
			Title:       r.IssueText,
			Description: desc,
			Suggestion:  suggestion,
			Location:    location(r.Filename, r.LineNumber, end),
		})
	}
	return findings, nil
}
