package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/aicr/internal/review"
)

// Formats lists the accepted format names.
var Formats = []string{"text", "json", "markdown", "pretty", "sarif"}

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *review.Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "pretty":
		return &PrettyWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to outPath, or to stdout when outPath is empty.
func WriteReport(report *review.Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	if outPath == "" {
		return writer.Write(os.Stdout, report)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writer.Write(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteJobSummary appends the markdown report to path, the file GitHub
// Actions exposes as GITHUB_STEP_SUMMARY. An empty path is a no-op.
func WriteJobSummary(path string, report *review.Report) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening job summary: %w", err)
	}
	if err := (&MarkdownWriter{}).Write(f, report); err != nil {
		f.Close()
		return fmt.Errorf("writing job summary: %w", err)
	}
	return f.Close()
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

// location renders a finding's path:line, or fallback when it has none.
func location(f review.Finding, fallback string) string {
	if s := f.Location.String(); s != "" {
		return s
	}
	return fallback
}

// summaryLines lists non-zero counts in a fixed order: categories, then
// severities, then the total.
func summaryLines(s review.Summary) []string {
	var lines []string
	for _, c := range review.Categories {
		if n := s.ByCategory[c]; n > 0 {
			lines = append(lines, fmt.Sprintf("%s: %d", c, n))
		}
	}
	for _, sev := range review.Severities {
		if n := s.BySeverity[sev]; n > 0 {
			lines = append(lines, fmt.Sprintf("%s: %d", sev, n))
		}
	}
	return append(lines, fmt.Sprintf("Total: %d", s.Total))
}
