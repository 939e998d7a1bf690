package analyzers

import (
	"fmt"
	"strings"

	"github.com/dshills/aicr/internal/review"
)

// LLMName is the analyzer name that selects the natural-language runner.
const LLMName = "llm"

// ToolNames lists the static tool runners known to FileAnalyzers.
var ToolNames = []string{"pylint", "bandit", "radon", "gosec"}

// DefaultEnabled is the analyzer set used when none is configured.
var DefaultEnabled = []string{"pylint", "bandit", "radon", LLMName}

// FileAnalyzers builds the static tool runners named in enabled, in the
// order given. The "llm" name is ignored here; unknown names are an error.
func FileAnalyzers(enabled []string, opts Options, radonMinRank string) ([]review.FileAnalyzer, error) {
	var out []review.FileAnalyzer
	seen := make(map[string]bool)
	for _, raw := range enabled {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		switch name {
		case "pylint":
			out = append(out, NewPylint(opts))
		case "bandit":
			out = append(out, NewBandit(opts))
		case "radon":
			out = append(out, NewRadon(opts, radonMinRank))
		case "gosec":
			out = append(out, NewGosec(opts))
		case LLMName:
		default:
			return nil, fmt.Errorf("unknown analyzer %q (known: %s, %s)", raw, strings.Join(ToolNames, ", "), LLMName)
		}
	}
	return out, nil
}

// Enabled reports whether name appears in the enabled list.
func Enabled(enabled []string, name string) bool {
	for _, e := range enabled {
		if strings.EqualFold(strings.TrimSpace(e), name) {
			return true
		}
	}
	return false
}
