// Package outline renders row lists as plain text outlines and diffs successive
// outlines, for watch mode.
package outline

import (
	"strings"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/fatih/color"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Text renders one line per row, indented two spaces per level.
func Text(rows []*domain.Row) string {
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(strings.Repeat("  ", r.Indent))
		sb.WriteString(detailtree.RowText(r))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Differ compares outlines line by line.
type Differ struct {
	add, del, same *color.Color
}

// NewDiffer creates a differ; colored selects ANSI output regardless of the terminal.
func NewDiffer(colored bool) *Differ {
	d := &Differ{
		add:  color.New(color.FgGreen),
		del:  color.New(color.FgRed),
		same: color.New(color.Faint),
	}
	for _, c := range []*color.Color{d.add, d.del, d.same} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return d
}

// Diff returns the unified line diff of two outlines ("+ ", "- " and "  " prefixes)
// and whether they differ.
func (d *Differ) Diff(before, after string) (string, bool) {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	changed := false
	for _, df := range diffs {
		var prefix string
		var c *color.Color
		switch df.Type {
		case diffpatch.DiffInsert:
			prefix, c, changed = "+ ", d.add, true
		case diffpatch.DiffDelete:
			prefix, c, changed = "- ", d.del, true
		default:
			prefix, c = "  ", d.same
		}
		for _, line := range strings.SplitAfter(df.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(c.Sprint(prefix + strings.TrimSuffix(line, "\n")))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), changed
}
