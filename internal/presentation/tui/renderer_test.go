package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/registry"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows() []*domain.Row {
	ctl := registry.NewTextControl(registry.EditorString)
	ctl.SetValue("walk")
	return []*domain.Row{
		{Variant: domain.VariantReal, Label: "Citation Form", Value: "walk", Control: ctl},
		{Variant: domain.VariantGhost, Label: "Pronunciation", Indent: 0},
		{Variant: domain.VariantReal, Label: "Senses", Expansion: domain.Expanded, Weight: domain.WeightHeavy},
		{Variant: domain.VariantDummy, Label: "Sense", Indent: 1},
		{Variant: domain.VariantError, Err: errors.New("layout not found"), Indent: 1},
	}
}

func TestRenderer_Ascii(t *testing.T) {
	r := NewRenderer(WithProfile(termenv.Ascii), WithWidth(0), WithLabelWidth(14))
	out, err := r.Render(rows(), 0)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, ">   Citation Form  walk", lines[0])
	assert.Equal(t, "    Pronunciation  <new>", lines[1])
	assert.Equal(t, "  ▾ Senses"+strings.Repeat(" ", 9), lines[2])
	assert.Equal(t, strings.Repeat(" ", 6)+"Sense"+strings.Repeat(" ", 10)+"…", lines[3])
	assert.Equal(t, strings.Repeat(" ", 6)+"! layout not found", lines[4])
}

func TestRenderer_Truncates(t *testing.T) {
	r := NewRenderer(WithProfile(termenv.Ascii), WithWidth(10))
	line := r.Line(rows()[0], false)
	assert.Equal(t, 10, len([]rune(line)))
	assert.True(t, strings.HasSuffix(line, "…"))
}

func TestMarkdown(t *testing.T) {
	md := Markdown(rows(), 2)
	assert.Contains(t, md, "- Citation Form: walk\n")
	assert.Contains(t, md, "- _**Senses**_ ◀\n")
	assert.Contains(t, md, "  - Sense …\n")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "__| |")
}
