package diag

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/eugenenazirov/oxido/internal/token"
)

type paint func(string) string

func plain(s string) string { return s }

func styled(style lipgloss.Style) paint {
	return func(s string) string { return style.Render(s) }
}

// Renderer prints diagnostics in a compiler-style layout with a source excerpt.
type Renderer struct {
	header paint
	gutter paint
	marker paint
	note   paint
}

// NewRenderer returns a renderer. With color disabled the output is plain text.
func NewRenderer(color bool) *Renderer {
	if !color {
		return &Renderer{header: plain, gutter: plain, marker: plain, note: plain}
	}
	red := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	blue := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	bold := lipgloss.NewStyle().Bold(true)
	return &Renderer{
		header: styled(red),
		gutter: styled(blue),
		marker: styled(red),
		note:   styled(bold),
	}
}

// Render writes d for the program called name with the given source.
func (r *Renderer) Render(w io.Writer, name, source string, d *Diagnostic) error {
	if name == "" {
		name = "<input>"
	}
	loc := Locate(source, d.Span.Start)
	lineNo := strconv.Itoa(loc.Line)
	pad := strings.Repeat(" ", len(lineNo))

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n", r.header("error["+d.Code+"]"), r.note(": "+d.Message))
	fmt.Fprintf(&b, "%s%s %s:%d:%d\n", pad, r.gutter("-->"), name, loc.Line, loc.Column)
	fmt.Fprintf(&b, "%s %s\n", pad, r.gutter("|"))
	fmt.Fprintf(&b, "%s %s %s\n", r.gutter(lineNo), r.gutter("|"), loc.LineText)
	fmt.Fprintf(&b, "%s %s %s%s %s\n", pad, r.gutter("|"), indent(loc), r.marker(carets(loc, d.Span)), r.marker(d.Note))
	fmt.Fprintf(&b, "%s %s\n", pad, r.gutter("|"))
	fmt.Fprintf(&b, "%s %s note: %s\n", pad, r.gutter("="), d.Note)

	_, err := io.WriteString(w, b.String())
	return err
}

// indent reproduces the whitespace before the marker, keeping tabs so the
// carets stay aligned with the excerpt.
func indent(loc Location) string {
	var b strings.Builder
	prefix := []rune(loc.LineText)
	for i := 0; i < loc.Column-1 && i < len(prefix); i++ {
		if prefix[i] == '\t' {
			b.WriteRune('\t')
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func carets(loc Location, span token.Span) string {
	lineEnd := loc.lineStart + len(loc.LineText)
	start := min(max(span.Start, loc.lineStart), lineEnd)
	end := min(span.End, lineEnd)

	width := 0
	if end > start {
		width = utf8.RuneCountInString(loc.LineText[start-loc.lineStart : end-loc.lineStart])
	}
	if width < 1 {
		width = 1
	}
	return strings.Repeat("^", width)
}
