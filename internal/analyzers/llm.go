package analyzers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/aicr/internal/cache"
	"github.com/dshills/aicr/internal/diff"
	"github.com/dshills/aicr/internal/providers"
	"github.com/dshills/aicr/internal/redact"
	"github.com/dshills/aicr/internal/review"
	"go.uber.org/zap"
)

// DefaultMaxPromptChars bounds the diff text sent to the model.
const DefaultMaxPromptChars = 15000

// Placeholder finding emitted when the model's answer is not valid JSON.
const (
	ParseErrorTitle       = "LLM response parsing error"
	ParseErrorDescription = "Could not parse model output as JSON"
)

// LLMOptions configures the natural-language analyzer.
type LLMOptions struct {
	// Provider is nil when no credential is configured.
	Provider       providers.Reviewer
	Model          string
	Timeout        time.Duration
	MaxPromptChars int
	MaxTokens      int
	RedactSecrets  bool
	RedactPaths    []string
	Cache          *cache.Cache
	Logger         *zap.Logger
}

// LLM reviews diff text with a language model.
type LLM struct {
	opts LLMOptions
}

// NewLLM creates the natural-language analyzer.
func NewLLM(opts LLMOptions) *LLM {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &LLM{opts: opts}
}

func (l *LLM) Name() string { return "llm" }

// Available implements review.Availability.
func (l *LLM) Available() (bool, string) {
	if l.opts.Provider == nil {
		return false, "no credential configured"
	}
	return true, ""
}

// AnalyzeDiff implements review.DiffAnalyzer.
func (l *LLM) AnalyzeDiff(ctx context.Context, diffText string) []review.Finding {
	findings, err := l.RunDiff(ctx, diffText)
	if err != nil {
		l.opts.Logger.Warn("analyzer failed", zap.String("analyzer", l.Name()), zap.Error(err))
		return []review.Finding{}
	}
	return findings
}

// RunDiff implements review.DiffRunner. A failed model call is an error; an
// unparsable response is reported as a visible placeholder finding.
func (l *LLM) RunDiff(ctx context.Context, diffText string) ([]review.Finding, error) {
	if l.opts.Provider == nil || strings.TrimSpace(diffText) == "" {
		return []review.Finding{}, nil
	}

	text, redactions := redact.Diff(diffText, l.opts.RedactPaths, l.opts.RedactSecrets)
	if redactions > 0 {
		l.opts.Logger.Debug("redacted diff before model call", zap.Int("redactions", redactions))
	}
	prompt := diff.TruncateForPrompt(text, l.opts.MaxPromptChars)
	userPrompt := buildUserPrompt(prompt, prompt != text)

	key := cache.BuildCacheKey(l.opts.Provider.Name(), l.opts.Model, systemPrompt, userPrompt)
	content, hit := l.opts.Cache.Get(key)
	if hit {
		l.opts.Logger.Debug("model response served from cache")
	} else {
		ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()

		start := time.Now()
		resp, err := l.opts.Provider.Review(ctx, providers.ReviewRequest{
			SystemPrompt: systemPrompt,
			UserPrompt:   userPrompt,
			MaxTokens:    l.opts.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("%s request: %w", l.opts.Provider.Name(), err)
		}
		content = resp.Content
		l.opts.Logger.Debug("model responded",
			zap.String("provider", l.opts.Provider.Name()),
			zap.Int("tokens", resp.TokensUsed),
			zap.Duration("elapsed", time.Since(start)))

		if err := l.opts.Cache.Put(key, content); err != nil {
			l.opts.Logger.Warn("cache write failed", zap.Error(err))
		}
	}

	findings, err := ParseResponse(content)
	if err != nil {
		l.opts.Logger.Warn("model output is not valid JSON", zap.Error(err))
		findings = []review.Finding{{
			Category:    review.CategorySmell,
			Severity:    review.SeverityLow,
			Title:       ParseErrorTitle,
			Description: ParseErrorDescription,
		}}
	}
	for i := range findings {
		findings[i].Source = l.Name()
		findings[i] = findings[i].WithID()
	}
	return findings, nil
}

type llmItem struct {
	Category    string     `json:"category"`
	Severity    string     `json:"severity"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Suggestion  string     `json:"suggestion"`
	File        string     `json:"file"`
	StartLine   lineNumber `json:"start_line"`
	EndLine     lineNumber `json:"end_line"`
}

// lineNumber accepts a JSON number, a numeric string or null.
type lineNumber int

func (n *lineNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = lineNumber(v)
	return nil
}

// ParseResponse converts model output into findings. It accepts a bare JSON
// array, optionally fenced in a markdown code block, or an object holding
// the array under "items" or "findings". Anything else, including null and
// arrays with non-object elements, is a schema error.
func ParseResponse(content string) ([]review.Finding, error) {
	content = stripCodeFence(strings.TrimSpace(content))

	var raw []json.RawMessage
	if !isJSON(content, '[') {
		if !isJSON(content, '{') {
			return nil, errors.New("model output is not a JSON array")
		}
		var wrapped struct {
			Items    json.RawMessage `json:"items"`
			Findings json.RawMessage `json:"findings"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, fmt.Errorf("invalid JSON object: %w", err)
		}
		inner := wrapped.Items
		if !isJSON(string(inner), '[') {
			inner = wrapped.Findings
		}
		if !isJSON(string(inner), '[') {
			return nil, errors.New("JSON object has no items or findings array")
		}
		content = string(inner)
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}

	items := make([]llmItem, 0, len(raw))
	for i, r := range raw {
		if !isJSON(string(r), '{') {
			return nil, fmt.Errorf("item %d is not a JSON object", i)
		}
		var it llmItem
		if err := json.Unmarshal(r, &it); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, it)
	}

	findings := make([]review.Finding, 0, len(items))
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			title = "Issue"
		}
		f := review.Finding{
			Category:    review.ParseCategory(it.Category, review.CategorySmell),
			Severity:    review.ParseSeverity(it.Severity, review.SeverityMedium),
			Title:       title,
			Description: it.Description,
			Suggestion:  it.Suggestion,
		}
		if it.File != "" || it.StartLine > 0 {
			f.Location = location(it.File, int(it.StartLine), int(it.EndLine))
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// isJSON reports whether s, trimmed, starts with the given delimiter.
func isJSON(s string, open byte) bool {
	s = strings.TrimSpace(s)
	return s != "" && s[0] == open
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}
