package output

import (
	"bytes"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"

	"github.com/dshills/aicr/internal/review"
)

// PrettyWriter renders the markdown report for a terminal with glamour.
type PrettyWriter struct {
	// Style is a glamour style name ("dark", "light", "notty", ...);
	// empty picks one from the terminal background.
	Style string
	// Width is the word-wrap column; 0 means 100.
	Width int
}

func (p *PrettyWriter) Write(w io.Writer, report *review.Report) error {
	var md bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&md, report); err != nil {
		return err
	}

	width := p.Width
	if width <= 0 {
		width = 100
	}
	style := glamour.WithAutoStyle()
	if p.Style != "" {
		style = glamour.WithStylePath(p.Style)
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := renderer.RenderBytes(md.Bytes())
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
