package output

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dshills/aicr/internal/review"
)

var severityColors = map[review.Severity]lipgloss.Color{
	review.SeverityHigh:   lipgloss.Color("9"),
	review.SeverityMedium: lipgloss.Color("11"),
	review.SeverityLow:    lipgloss.Color("10"),
}

// TextWriter outputs findings as a table, colored by severity when the
// destination is a terminal.
type TextWriter struct {
	// MaxCellWidth truncates long titles and suggestions; 0 means 60.
	MaxCellWidth int
}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}
	r := lipgloss.NewRenderer(w)
	bold := r.NewStyle().Bold(true)
	muted := r.NewStyle().Faint(true)

	ew.println(bold.Render("AI Code Review Report"))
	if report.Inputs.Mode != "" {
		header := "Mode: " + report.Inputs.Mode
		if report.Inputs.Range != "" {
			header += " (" + report.Inputs.Range + ")"
		}
		ew.println(muted.Render(header))
	}
	ew.printf("Files reviewed: %d\n\n", len(report.Inputs.Files))

	if len(report.Findings) == 0 {
		ew.println("No issues found.")
	} else {
		ew.println(t.table(r, report.Findings))
	}

	ew.println("\nSummary:")
	for _, line := range summaryLines(report.Summary()) {
		ew.println("- " + line)
	}

	if notes := analyzerNotes(report.Analyzers); len(notes) > 0 {
		ew.println("")
		for _, n := range notes {
			ew.println(muted.Render(n))
		}
	}
	return ew.err
}

func (t *TextWriter) table(r *lipgloss.Renderer, findings []review.Finding) string {
	width := t.MaxCellWidth
	if width <= 0 {
		width = 60
	}
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, []string{
			strings.ToUpper(string(f.Severity)),
			string(f.Category),
			clip(f.Title, width),
			location(f, ""),
			clip(f.Suggestion, width),
			f.Source,
		})
	}

	cell := r.NewStyle().Padding(0, 1)
	header := cell.Bold(true)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(true).
		Headers("Severity", "Category", "Title", "Location", "Suggestion", "Tool").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == 0 && row >= 0 && row < len(findings) {
				return cell.Foreground(severityColors[findings[row].Severity])
			}
			return cell
		}).
		String()
}

// analyzerNotes describes analyzers that did not run cleanly.
func analyzerNotes(statuses []review.AnalyzerStatus) []string {
	var notes []string
	for _, s := range statuses {
		if s.Status == review.StatusOK {
			continue
		}
		note := s.Name + ": " + s.Status
		if s.Reason != "" {
			note += " (" + s.Reason + ")"
		}
		notes = append(notes, note)
	}
	return notes
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
