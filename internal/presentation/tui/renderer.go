package tui

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// DefaultLabelWidth is the label column width when none is configured.
const DefaultLabelWidth = 18

// Renderer draws rows as terminal lines: selection marker, indentation, expander,
// label column and value, coloured by variant.
type Renderer struct {
	profile    termenv.Profile
	width      int
	labelWidth int
}

// Option configures the Renderer.
type Option func(*Renderer)

// WithProfile sets the color profile (default: detected from stdout).
func WithProfile(p termenv.Profile) Option {
	return func(r *Renderer) {
		r.profile = p
	}
}

// WithWidth truncates lines to w cells (zero disables truncation).
func WithWidth(w int) Option {
	return func(r *Renderer) {
		r.width = w
	}
}

// WithLabelWidth sets the label column width.
func WithLabelWidth(w int) Option {
	return func(r *Renderer) {
		if w > 0 {
			r.labelWidth = w
		}
	}
}

// NewRenderer creates a row renderer for the terminal attached to stdout.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		profile:    termenv.ColorProfile(),
		width:      TerminalWidth(),
		labelWidth: DefaultLabelWidth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TerminalWidth returns the width of the terminal on stdout, or zero when stdout is
// not a terminal.
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

// Render implements detailtree.RowRenderer.
func (r *Renderer) Render(rows []*domain.Row, current int) (string, error) {
	var sb strings.Builder
	for i, row := range rows {
		sb.WriteString(r.Line(row, i == current))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// Line renders one row.
func (r *Renderer) Line(row *domain.Row, selected bool) string {
	marker := "  "
	if selected {
		marker = "> "
	}
	prefix := marker + strings.Repeat("  ", row.Indent) + expander(row.Expansion) + " "

	var body string
	switch row.Variant {
	case domain.VariantError:
		body = fmt.Sprintf("! %v", row.Err)
	case domain.VariantDummy:
		body = pad(row.Label, r.labelWidth) + " …"
	case domain.VariantGhost:
		body = pad(row.Label, r.labelWidth) + " <new>"
	default:
		body = pad(row.Label, r.labelWidth) + " " + detailtree.ValueText(row)
		if row.DataErr != nil {
			body += "  (" + row.DataErr.Error() + ")"
		}
	}
	line := truncate(prefix+body, r.width)
	if r.profile == termenv.Ascii {
		return line
	}

	s := r.profile.String(line)
	switch row.Variant {
	case domain.VariantError:
		s = s.Foreground(r.profile.Color("#ef4444"))
	case domain.VariantDummy:
		s = s.Faint().Italic()
	case domain.VariantGhost:
		s = s.Faint()
	default:
		if row.DataErr != nil {
			s = s.Foreground(r.profile.Color("#f59e0b"))
		}
	}
	if row.Weight == domain.WeightHeavy {
		s = s.Bold()
	}
	if selected {
		s = s.Reverse()
	}
	return s.String()
}

func expander(s domain.ExpansionState) string {
	switch s {
	case domain.Expanded:
		return "▾"
	case domain.Collapsed:
		return "▸"
	case domain.CollapsedEmpty:
		return "·"
	default:
		return " "
	}
}

func pad(s string, w int) string {
	n := utf8.RuneCountInString(s)
	if n >= w {
		return s
	}
	return s + strings.Repeat(" ", w-n)
}

func truncate(s string, w int) string {
	if w <= 0 || utf8.RuneCountInString(s) <= w {
		return s
	}
	runes := []rune(s)
	return string(runes[:w-1]) + "…"
}

// Markdown renders the rows as a nested markdown list; headers of heavy rows are bold.
func Markdown(rows []*domain.Row, current int) string {
	var sb strings.Builder
	for i, row := range rows {
		sb.WriteString(strings.Repeat("  ", row.Indent))
		sb.WriteString("- ")
		text := detailtree.RowText(row)
		if row.Weight == domain.WeightHeavy {
			text = "**" + text + "**"
		}
		if i == current {
			text = "_" + text + "_ ◀"
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// NewMarkdownRenderer returns a detailtree.RowRenderer that renders the markdown
// outline of the rows with glamour.
func NewMarkdownRenderer(width int) (detailtree.RowRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return func(rows []*domain.Row, current int) (string, error) {
		return r.Render(Markdown(rows, current))
	}, nil
}
