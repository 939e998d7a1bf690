package analyzers

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/aicr/internal/review"
)

var pylintSeverity = map[string]review.Severity{
	"convention":    review.SeverityLow,
	"refactor":      review.SeverityLow,
	"informational": review.SeverityLow,
	"warning":       review.SeverityMedium,
	"error":         review.SeverityHigh,
	"fatal":         review.SeverityHigh,
}

var pylintCategory = map[string]review.Category{
	"convention":    review.CategoryStyle,
	"refactor":      review.CategorySmell,
	"informational": review.CategoryStyle,
	"warning":       review.CategoryStyle,
	"error":         review.CategoryBug,
	"fatal":         review.CategoryBug,
}

// Pylint exit status bits that mean the run itself failed.
const (
	pylintFatal = 1
	pylintUsage = 32
)

type pylintMessage struct {
	Type      string `json:"type"`
	Module    string `json:"module"`
	Obj       string `json:"obj"`
	Line      int    `json:"line"`
	EndLine   *int   `json:"endLine"`
	Path      string `json:"path"`
	Symbol    string `json:"symbol"`
	Message   string `json:"message"`
	MessageID string `json:"message-id"`
}

// NewPylint returns a runner for pylint over .py files.
func NewPylint(opts Options) review.FileAnalyzer {
	return &tool{
		name:   "pylint",
		binary: "pylint",
		exts:   []string{".py"},
		opts:   opts.withDefaults(),
		args: func(files []string) []string {
			return append([]string{"--output-format=json", "--score=n"}, files...)
		},
		exitOK: func(code int) bool { return code >= 0 && code&(pylintFatal|pylintUsage) == 0 },
		parse:  parsePylint,
	}
}

func parsePylint(out []byte) ([]review.Finding, error) {
	if len(trimSpace(out)) == 0 {
		return []review.Finding{}, nil
	}
	var msgs []pylintMessage
	if err := json.Unmarshal(out, &msgs); err != nil {
		return nil, err
	}
	findings := make([]review.Finding, 0, len(msgs))
	for _, m := range msgs {
		sev, ok := pylintSeverity[m.Type]
		if !ok {
			sev = review.SeverityMedium
		}
		cat, ok := pylintCategory[m.Type]
		if !ok {
			cat = review.CategorySmell
		}
		end := m.Line
		if m.EndLine != nil {
			end = *m.EndLine
		}
		desc := m.Message
		if m.Symbol != "" {
			desc = fmt.Sprintf("%s (%s %s)", m.Message, m.MessageID, m.Symbol)
		}
		findings = append(findings, review.Finding{
			Category:    cat,
			Severity:    sev,
			Title:       m.Message,
			Description: desc,
			Location:    location(m.Path, m.Line, end),
		})
	}
	return findings, nil
}
