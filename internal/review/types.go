package review

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
)

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severities lists every severity, most severe first.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity maps a case-insensitive token onto a Severity, falling back
// to def for anything unrecognized.
func ParseSeverity(s string, def Severity) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow
	case SeverityMedium:
		return SeverityMedium
	case SeverityHigh:
		return SeverityHigh
	}
	return def
}

// ValidSeverity reports whether s is one of the three severities.
func ValidSeverity(s string) bool {
	return SeverityRank(Severity(s)) > 0
}

// MeetsThreshold returns true if severity is at or above the threshold.
// A threshold of "none" or "" never matches.
func MeetsThreshold(s Severity, threshold string) bool {
	if threshold == "none" || threshold == "" {
		return false
	}
	return SeverityRank(s) >= SeverityRank(Severity(threshold))
}

// Category represents the type of finding.
type Category string

const (
	CategoryBug         Category = "bug"
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategorySmell       Category = "smell"
	CategoryStyle       Category = "style"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryBug, CategorySecurity, CategoryPerformance, CategorySmell, CategoryStyle}

// ParseCategory maps a case-insensitive token onto a Category, falling back
// to def for anything unrecognized.
func ParseCategory(s string, def Category) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return def
}

// Location represents where a finding was detected. It is a copy of the
// path and lines, not a reference into the parsed diff.
type Location struct {
	Path      string `json:"path,omitempty"`
	StartLine int    `json:"startLine,omitempty"`
	EndLine   int    `json:"endLine,omitempty"`
}

// String renders path:start, or path:start-end for ranges.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	switch {
	case l.StartLine == 0:
		return l.Path
	case l.EndLine > l.StartLine:
		return fmt.Sprintf("%s:%d-%d", l.Path, l.StartLine, l.EndLine)
	default:
		return fmt.Sprintf("%s:%d", l.Path, l.StartLine)
	}
}

// Finding represents a single normalized review item.
type Finding struct {
	ID          string    `json:"id"`
	Category    Category  `json:"category"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Suggestion  string    `json:"suggestion,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Source      string    `json:"source"`
}

// Path returns the finding's file path, or "" when it has no location.
func (f Finding) Path() string {
	if f.Location == nil {
		return ""
	}
	return f.Location.Path
}

// WithID returns f with its stable ID filled in.
func (f Finding) WithID() Finding {
	f.ID = FindingID(f)
	return f
}

// FindingID hashes source, path, title and start line into a short stable ID.
func FindingID(f Finding) string {
	var line int
	if f.Location != nil {
		line = f.Location.StartLine
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%d", f.Source, f.Path(), f.Title, line)))
	return fmt.Sprintf("%x", h[:8])
}

// Summary is derived from a report's findings; it is never stored.
type Summary struct {
	ByCategory      map[Category]int `json:"byCategory"`
	BySeverity      map[Severity]int `json:"bySeverity"`
	Total           int              `json:"total"`
	HighestSeverity Severity         `json:"highestSeverity,omitempty"`
}

// ComputeSummary calculates the summary from findings.
func ComputeSummary(findings []Finding) Summary {
	s := Summary{
		ByCategory: make(map[Category]int),
		BySeverity: make(map[Severity]int),
		Total:      len(findings),
	}
	for _, f := range findings {
		s.ByCategory[f.Category]++
		s.BySeverity[f.Severity]++
		if SeverityRank(f.Severity) > SeverityRank(s.HighestSeverity) {
			s.HighestSeverity = f.Severity
		}
	}
	return s
}

// RepoInfo contains repository metadata.
type RepoInfo struct {
	Root   string `json:"root,omitempty"`
	Head   string `json:"head,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// InputInfo describes what was reviewed.
type InputInfo struct {
	Mode  string   `json:"mode"`
	Range string   `json:"range,omitempty"`
	Files []string `json:"files,omitempty"`
}

// Timing contains performance metrics.
type Timing struct {
	ParseMs   int64 `json:"parseMs"`
	AnalyzeMs int64 `json:"analyzeMs"`
	TotalMs   int64 `json:"totalMs"`
}

// AnalyzerStatus records how one analyzer fared during a run.
type AnalyzerStatus struct {
	Name     string `json:"name"`
	Findings int    `json:"findings"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// Analyzer status values.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Report is the top-level output structure. Its summary is computed from
// Findings on every call to Summary and on JSON encoding.
type Report struct {
	Tool      string           `json:"tool"`
	Version   string           `json:"version"`
	RunID     string           `json:"runId"`
	Repo      RepoInfo         `json:"repo"`
	Inputs    InputInfo        `json:"inputs"`
	Findings  []Finding        `json:"findings"`
	Analyzers []AnalyzerStatus `json:"analyzers,omitempty"`
	Timing    Timing           `json:"timing"`
}

// Summary returns the counts derived from the report's findings.
func (r *Report) Summary() Summary {
	return ComputeSummary(r.Findings)
}

// ShouldFail reports whether any finding reaches threshold.
func (r *Report) ShouldFail(threshold Severity) bool {
	return ShouldFail(r, threshold)
}

// MarshalJSON adds the derived summary to the encoded report.
func (r *Report) MarshalJSON() ([]byte, error) {
	type plain Report
	findings := r.Findings
	if findings == nil {
		findings = []Finding{}
	}
	p := plain(*r)
	p.Findings = findings
	return json.Marshal(struct {
		plain
		Summary Summary `json:"summary"`
	}{plain: p, Summary: r.Summary()})
}

// ShouldFail is true iff any finding's severity ranks at or above threshold.
// A threshold of "none" never fails.
func ShouldFail(report *Report, threshold Severity) bool {
	if report == nil {
		return false
	}
	for _, f := range report.Findings {
		if MeetsThreshold(f.Severity, string(threshold)) {
			return true
		}
	}
	return false
}
