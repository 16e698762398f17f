package runtime

import (
	"testing"

	"github.com/aretw0/detailtree/pkg/adapters/memory"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolverFixture(t *testing.T) (*Resolver, *memory.Metadata, *memory.Templates) {
	t.Helper()
	meta, err := memory.NewMetadata(
		domain.ClassDef{Name: "Entry", Fields: []domain.FieldDef{{Name: "CitationForm", Kind: domain.KindString}}},
		domain.ClassDef{Name: "Variant", Super: "Entry", Fields: []domain.FieldDef{{Name: "Kind", Kind: domain.KindString}}},
	)
	require.NoError(t, err)
	tmpl := memory.NewTemplates()
	require.NoError(t, tmpl.AddLayout("Entry", "default",
		&domain.TemplateNode{Key: "cf", Kind: domain.NodeField, Field: "CitationForm"},
		&domain.TemplateNode{Key: "custom", Kind: domain.NodeCustomFields},
	))
	require.NoError(t, tmpl.AddLayout("Entry", "brief",
		&domain.TemplateNode{Key: "cf", Kind: domain.NodeField, Field: "CitationForm", Label: "Brief"},
	))
	require.NoError(t, tmpl.AddPart("Entry", "Note",
		&domain.TemplateNode{Kind: domain.NodeField, Field: "CitationForm", Label: "Note"},
	))
	return NewResolver(tmpl, meta), meta, tmpl
}

func TestResolver_Fallback(t *testing.T) {
	r, _, _ := newResolverFixture(t)

	n, err := r.Resolve("Variant", "brief")
	require.NoError(t, err)
	assert.Equal(t, "Brief", n.Children[0].Label, "superclass layout with the requested name")

	n, err = r.Resolve("Variant", "missing")
	require.NoError(t, err)
	assert.Len(t, n.Children, 2, "falls back to the default layout")

	_, err = r.Resolve("CmObject", "")
	assert.ErrorIs(t, err, domain.ErrLayoutNotFound)

	_, err = r.Resolve("Nope", "")
	assert.ErrorIs(t, err, domain.ErrClassNotFound)

	assert.True(t, r.IsA("Variant", "Entry"))
	assert.True(t, r.IsA("Variant", domain.BaseClass))
	assert.False(t, r.IsA("Entry", "Variant"))
}

func TestResolver_ResolvePart(t *testing.T) {
	r, meta, _ := newResolverFixture(t)

	p, err := r.ResolvePart("Variant", &domain.TemplateNode{Key: "ref", Kind: domain.NodePart, Part: "Note", Label: "Override"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Override", p.Label)
	assert.Equal(t, "CitationForm", p.Field)

	p, err = r.ResolvePart("Entry", &domain.TemplateNode{Key: "ref", Kind: domain.NodePart, Part: "Gone"})
	require.NoError(t, err)
	assert.Nil(t, p, "stale references resolve to nothing")

	require.NoError(t, meta.DeclareField("Entry", domain.FieldDef{Name: "Gone", Kind: domain.KindInteger, Label: "Gone Field"}))
	p, err = r.ResolvePart("Entry", &domain.TemplateNode{Key: "ref", Kind: domain.NodePart, Part: "Gone"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, domain.NodeField, p.Kind)
	assert.Equal(t, "Gone Field", p.Label)
	assert.True(t, p.Custom)
}

func TestResolver_SpliceCustomFields(t *testing.T) {
	r, meta, tmpl := newResolverFixture(t)
	canonical, err := tmpl.LookupLayout("Entry", layoutType, defaultLayout)
	require.NoError(t, err)

	same, err := r.SpliceCustomFields(canonical, "Variant")
	require.NoError(t, err)
	assert.Same(t, canonical, same, "nothing to splice")

	require.NoError(t, meta.DeclareField("Entry", domain.FieldDef{Name: "Etymology", Kind: domain.KindString}))
	require.NoError(t, meta.DeclareField("Variant", domain.FieldDef{Name: "Note", Kind: domain.KindString}))

	once, err := r.SpliceCustomFields(canonical, "Variant")
	require.NoError(t, err)
	require.Len(t, once.Children, 4)
	assert.Equal(t, "Etymology", once.Children[2].Part)
	assert.Equal(t, "custom:Etymology", once.Children[2].Key)
	assert.Equal(t, "Note", once.Children[3].Part)
	assert.Same(t, canonical.Children[0], once.Children[0], "unchanged subtrees are shared")
	assert.Len(t, canonical.Children, 2, "canonical layout is not modified")

	twice, err := r.SpliceCustomFields(once, "Variant")
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	entryOnly, err := r.SpliceCustomFields(canonical, "Entry")
	require.NoError(t, err)
	assert.Len(t, entryOnly.Children, 3)
}

func TestReuseMap(t *testing.T) {
	k1 := domain.RootKey(1).Append(domain.NodeElem("a"))
	k2 := domain.RootKey(1).Append(domain.NodeElem("b"))
	a := &domain.Row{Variant: domain.VariantReal, Key: k1}
	dup := &domain.Row{Variant: domain.VariantReal, Key: k1}
	b := &domain.Row{Variant: domain.VariantGhost, Key: k2}
	dummy := &domain.Row{Variant: domain.VariantDummy, Key: k2}
	broken := &domain.Row{Variant: domain.VariantError}

	m := NewReuseMap([]*domain.Row{a, dup, b, dummy, broken, nil})
	assert.Equal(t, 3, m.Len())

	assert.Same(t, a, m.TakeIfPresent(k1))
	assert.Same(t, dup, m.TakeIfPresent(k1))
	assert.Nil(t, m.TakeIfPresent(k1))
	assert.Nil(t, m.TakeIfPresent(domain.PathKey{}))
	assert.Equal(t, 1, m.Len())

	assert.Equal(t, []*domain.Row{b}, m.Drain())
	assert.Zero(t, m.Len())
	assert.Nil(t, m.TakeIfPresent(k2))

	var none *ReuseMap
	assert.Nil(t, none.TakeIfPresent(k1))
	assert.Nil(t, none.Drain())
}

func TestPager(t *testing.T) {
	p := NewPager(15, [][]domain.EntityID{{1, 7, 9}})
	assert.False(t, p.Lazy(14))
	assert.True(t, p.Lazy(15))
	assert.True(t, p.MustBeReal([]domain.EntityID{1, 7}))
	assert.True(t, p.MustBeReal([]domain.EntityID{1, 7, 9}))
	assert.False(t, p.MustBeReal([]domain.EntityID{1, 8}))
	assert.False(t, p.MustBeReal([]domain.EntityID{1, 7, 9, 10}))

	assert.False(t, NewPager(0, nil).Lazy(1000))
}

func TestExpansion(t *testing.T) {
	tests := []struct {
		name   string
		p      domain.Presence
		reused bool
		prev   domain.ExpansionState
		auto   bool
		want   domain.ExpansionState
	}{
		{"nothing", domain.Nothing, false, domain.Fixed, true, domain.Fixed},
		{"possible", domain.Possible, true, domain.Expanded, true, domain.CollapsedEmpty},
		{"auto", domain.Something, false, domain.Fixed, true, domain.Expanded},
		{"manual", domain.Something, false, domain.Fixed, false, domain.Collapsed},
		{"kept collapsed", domain.Something, true, domain.Collapsed, true, domain.Collapsed},
		{"kept expanded", domain.Something, true, domain.Expanded, false, domain.Expanded},
		{"promoted", domain.Something, true, domain.CollapsedEmpty, true, domain.Expanded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, initialExpansion(tt.p, tt.reused, tt.prev, tt.auto))
		})
	}

	assert.True(t, autoExpand(&domain.TemplateNode{Expansion: domain.ExpansionExpanded}, false))
	assert.False(t, autoExpand(&domain.TemplateNode{Expansion: domain.ExpansionCollapsed}, true))
	assert.True(t, autoExpand(&domain.TemplateNode{}, true))
}

func TestToggle(t *testing.T) {
	s, err := Toggle(domain.Collapsed)
	require.NoError(t, err)
	assert.Equal(t, domain.Expanded, s)

	s, err = Toggle(domain.Expanded)
	require.NoError(t, err)
	assert.Equal(t, domain.Collapsed, s)

	s, err = Toggle(domain.CollapsedEmpty)
	require.NoError(t, err)
	assert.Equal(t, domain.CollapsedEmpty, s)

	_, err = Toggle(domain.Fixed)
	assert.ErrorIs(t, err, domain.ErrNotExpandable)
}

func TestConditions_Cache(t *testing.T) {
	c := NewConditions()
	a, err := c.compile(`class == "Entry"`)
	require.NoError(t, err)
	b, err := c.compile(`class == "Entry"`)
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = c.compile(`class ==`)
	assert.Error(t, err)
}
