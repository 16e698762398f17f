package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/detailtree/internal/runtime"
	"github.com/aretw0/detailtree/internal/testutils"
	"github.com/aretw0/detailtree/pkg/adapters/memory"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/aretw0/detailtree/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(root domain.EntityID, elems ...domain.PathElem) domain.PathKey {
	return domain.RootKey(root).Append(elems...)
}

func n(k string) domain.PathElem           { return domain.NodeElem(k) }
func e(id domain.EntityID) domain.PathElem { return domain.EntityElem(id) }

func keys(rows []*domain.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key.String()
	}
	return out
}

func build(t *testing.T, eng *runtime.Engine, root domain.EntityID, reuse *runtime.ReuseMap, opts runtime.BuildOptions) *runtime.Result {
	t.Helper()
	res, err := eng.Build(context.Background(), root, "", reuse, opts)
	require.NoError(t, err)
	return res
}

func TestBuild_EntryWithoutData(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	eng := runtime.NewEngine(repo, tmpl)

	res := build(t, eng, 1, nil, runtime.BuildOptions{})
	require.NoError(t, res.Err())
	require.Len(t, res.Rows, 2, "citation form and pronunciation ghost; senses are ifdata")

	cf := res.Rows[0]
	assert.Equal(t, domain.VariantReal, cf.Variant)
	assert.Equal(t, "Citation Form", cf.Label)
	assert.Equal(t, "run", cf.Value)
	assert.Equal(t, registry.EditorString, cf.Editor)
	assert.Equal(t, key(1, n("cf")), cf.Key)
	assert.Equal(t, domain.Fixed, cf.Expansion)
	require.NotNil(t, cf.Control)

	ghost := res.Rows[1]
	assert.Equal(t, domain.VariantGhost, ghost.Variant)
	assert.Equal(t, "Pronunciation", ghost.Label)
	assert.Equal(t, registry.EditorGhost, ghost.Editor)
	require.NotNil(t, ghost.Ghost)
	assert.Equal(t, domain.ClassID("Pronunciation"), ghost.Ghost.TargetClass)
	assert.Equal(t, "Form", ghost.Ghost.TargetField)
	assert.Equal(t, 2, res.Created)
}

func TestBuild_Sequence(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	eng := runtime.NewEngine(repo, tmpl)

	res := build(t, eng, 2, nil, runtime.BuildOptions{})
	assert.Equal(t, []string{
		key(2, n("cf")).String(),
		key(2, n("pron")).String(),
		key(2, n("senses"), e(20), n("gloss")).String(),
		key(2, n("senses"), e(20), n("def")).String(),
		key(2, n("senses"), e(21), n("gloss")).String(),
	}, keys(res.Rows))
	assert.Equal(t, "to go on foot", res.Rows[2].Value)
	assert.Equal(t, domain.EntityID(20), res.Rows[2].Entity)
}

func TestBuild_IsIdempotentAndReusesEveryRow(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	eng := runtime.NewEngine(repo, tmpl)

	first := build(t, eng, 2, nil, runtime.BuildOptions{})
	controls := make([]domain.Control, len(first.Rows))
	for i, r := range first.Rows {
		controls[i] = r.Control
	}

	second := build(t, eng, 2, runtime.NewReuseMap(first.Rows), runtime.BuildOptions{})
	assert.Equal(t, keys(first.Rows), keys(second.Rows))
	for i := range first.Rows {
		assert.Same(t, first.Rows[i], second.Rows[i])
		assert.Same(t, controls[i], second.Rows[i].Control, "unchanged editor keeps its control")
	}
	assert.Equal(t, len(first.Rows), second.Reused)
	assert.Zero(t, second.Created)
	assert.Empty(t, second.Disposed)
	assert.True(t, domain.DiffRows(first.Rows, second.Rows).Empty())
}

func TestBuild_RebuildAfterEdit(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	eng := runtime.NewEngine(repo, tmpl)
	ctx := context.Background()

	first := build(t, eng, 2, nil, runtime.BuildOptions{})
	removed := first.Rows[2:4]
	var controls []*registry.TextControl
	for _, r := range removed {
		controls = append(controls, r.Control.(*registry.TextControl))
	}

	require.NoError(t, repo.Update(ctx, "edit", func(uow ports.UnitOfWork) error {
		if err := uow.SetString(21, "Definition", "a walk"); err != nil {
			return err
		}
		return uow.Delete(20)
	}))

	second := build(t, eng, 2, runtime.NewReuseMap(first.Rows), runtime.BuildOptions{})
	assert.Equal(t, []string{
		key(2, n("cf")).String(),
		key(2, n("pron")).String(),
		key(2, n("senses"), e(21), n("gloss")).String(),
		key(2, n("senses"), e(21), n("def")).String(),
	}, keys(second.Rows))
	assert.Equal(t, 3, second.Reused)
	assert.Equal(t, 1, second.Created)
	require.Len(t, second.Disposed, 2)
	for i, r := range removed {
		assert.Contains(t, second.Disposed, r)
		assert.True(t, controls[i].Disposed())
		assert.Nil(t, r.Control)
	}
	assert.Equal(t, "a walk", second.Rows[3].Value)

	diff := domain.DiffRows(first.Rows, second.Rows)
	assert.Len(t, diff.Added, 1)
	assert.Len(t, diff.Removed, 2)
}

func TestBuild_MissingRoot(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	eng := runtime.NewEngine(repo, tmpl)

	_, err := eng.Build(context.Background(), 999, "", nil, runtime.BuildOptions{})
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestBuild_CancelledContext(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	eng := runtime.NewEngine(repo, tmpl)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := eng.Build(ctx, 2, "", nil, runtime.BuildOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Rows)
}

func TestBuild_Hooks(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	var starts, ends, created, reused int
	var end *domain.RebuildEvent
	eng := runtime.NewEngine(repo, tmpl, runtime.WithView("main"), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnRebuildStart: func(context.Context, *domain.RebuildEvent) { starts++ },
		OnRebuildEnd: func(_ context.Context, ev *domain.RebuildEvent) {
			ends++
			end = ev
		},
		OnRowCreated: func(context.Context, *domain.RowEvent) { created++ },
		OnRowReused:  func(context.Context, *domain.RowEvent) { reused++ },
	}))

	first := build(t, eng, 2, nil, runtime.BuildOptions{})
	build(t, eng, 2, runtime.NewReuseMap(first.Rows), runtime.BuildOptions{})

	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, ends)
	assert.Equal(t, 5, created)
	assert.Equal(t, 5, reused)
	require.NotNil(t, end)
	assert.Equal(t, "main", end.View)
	assert.Equal(t, domain.EventRebuildEnd, end.Type)
	assert.Equal(t, 5, end.Reused)
}

const outlineTemplates = `
- kind: layout
  class: Entry
  name: outline
  nodes:
    - key: hdr
      kind: slice
      label: Senses
      children:
        - {key: s, kind: seq, field: Senses}
`

func outlineEngine(t *testing.T, opts ...runtime.EngineOption) (*memory.Repository, *runtime.Engine) {
	t.Helper()
	repo, err := memory.LoadFixture([]byte(testutils.EntryFixture))
	require.NoError(t, err)
	tmpl, err := memory.LoadTemplates([]byte(testutils.LexiconTemplates + outlineTemplates))
	require.NoError(t, err)
	return repo, runtime.NewEngine(repo, tmpl, opts...)
}

func buildOutline(t *testing.T, eng *runtime.Engine, root domain.EntityID, reuse *runtime.ReuseMap, opts runtime.BuildOptions) *runtime.Result {
	t.Helper()
	res, err := eng.Build(context.Background(), root, "outline", reuse, opts)
	require.NoError(t, err)
	return res
}

func TestBuild_Expansion(t *testing.T) {
	repo, eng := outlineEngine(t)
	ctx := context.Background()

	full := buildOutline(t, eng, 2, nil, runtime.BuildOptions{})
	require.NotEmpty(t, full.Rows)
	assert.Equal(t, domain.Expanded, full.Rows[0].Expansion)
	assert.Equal(t, "Senses", full.Rows[0].Label)
	assert.Equal(t, 1, full.Rows[1].Indent, "children are nested under the header")
	assert.Equal(t, key(2, n("hdr"), n("s"), e(20), n("gloss")), full.Rows[1].Key)

	empty := buildOutline(t, eng, 1, nil, runtime.BuildOptions{})
	require.Len(t, empty.Rows, 1)
	assert.Equal(t, domain.CollapsedEmpty, empty.Rows[0].Expansion)

	// The empty header is promoted once the sequence gains an item.
	require.NoError(t, repo.Update(ctx, "add sense", func(uow ports.UnitOfWork) error {
		_, err := uow.Create("Sense", 1, "Senses", -1)
		return err
	}))
	promoted := buildOutline(t, eng, 1, runtime.NewReuseMap(empty.Rows), runtime.BuildOptions{PreserveExpansion: true})
	assert.Same(t, empty.Rows[0], promoted.Rows[0])
	assert.Equal(t, domain.Expanded, promoted.Rows[0].Expansion)
	assert.Len(t, promoted.Rows, 2)
}

func TestBuild_PreserveExpansion(t *testing.T) {
	_, eng := outlineEngine(t, runtime.WithAutoExpand(false))

	first := buildOutline(t, eng, 2, nil, runtime.BuildOptions{})
	require.Len(t, first.Rows, 1)
	assert.Equal(t, domain.Collapsed, first.Rows[0].Expansion)

	first.Rows[0].Expansion = domain.Expanded
	kept := buildOutline(t, eng, 2, runtime.NewReuseMap(first.Rows), runtime.BuildOptions{PreserveExpansion: true})
	assert.Equal(t, domain.Expanded, kept.Rows[0].Expansion)
	assert.Len(t, kept.Rows, 4)

	reset := buildOutline(t, eng, 2, runtime.NewReuseMap(kept.Rows), runtime.BuildOptions{})
	assert.Equal(t, domain.Collapsed, reset.Rows[0].Expansion)
	assert.Len(t, reset.Rows, 1)
	assert.Len(t, reset.Disposed, 3)
}

func TestBuildChildren(t *testing.T) {
	_, eng := outlineEngine(t, runtime.WithAutoExpand(false))
	ctx := context.Background()

	res := buildOutline(t, eng, 2, nil, runtime.BuildOptions{})
	children, err := eng.BuildChildren(ctx, res.Rows[0], runtime.BuildOptions{})
	require.NoError(t, err)
	assert.Len(t, children.Rows, 3)
	assert.Equal(t, key(2, n("hdr"), n("s"), e(20), n("gloss")), children.Rows[0].Key)

	_, err = eng.BuildChildren(ctx, &domain.Row{Variant: domain.VariantReal, Node: &domain.TemplateNode{}}, runtime.BuildOptions{})
	assert.ErrorIs(t, err, domain.ErrNotExpandable)
}

func TestBuild_LazySequence(t *testing.T) {
	repo, err := memory.LoadFixture([]byte(testutils.LongEntryFixture(100)))
	require.NoError(t, err)
	tmpl, err := memory.LoadTemplates([]byte(testutils.LexiconTemplates))
	require.NoError(t, err)
	ctx := context.Background()

	lazy := runtime.NewEngine(repo, tmpl)
	res := build(t, lazy, 1, nil, runtime.BuildOptions{})
	require.Len(t, res.Rows, 102)

	seen := map[string]bool{}
	for _, r := range res.Rows[2:] {
		assert.Equal(t, domain.VariantDummy, r.Variant)
		assert.False(t, seen[r.Key.String()], "dummy keys are distinct")
		seen[r.Key.String()] = true
	}
	assert.Equal(t, 5, res.Rows[7].Dummy.Index)

	eager := runtime.NewEngine(repo, tmpl, runtime.WithLazyThreshold(0))
	full := build(t, eager, 1, nil, runtime.BuildOptions{})
	require.Len(t, full.Rows, 102)
	assert.Equal(t, domain.VariantReal, full.Rows[7].Variant)

	made, err := lazy.Materialize(ctx, res.Rows[7], runtime.BuildOptions{})
	require.NoError(t, err)
	require.Len(t, made.Rows, 1)
	assert.Equal(t, full.Rows[7].Key, made.Rows[0].Key)
	assert.Equal(t, "sense 5", made.Rows[0].Value)

	_, err = lazy.Materialize(ctx, full.Rows[7], runtime.BuildOptions{})
	assert.ErrorIs(t, err, domain.ErrNotDummy)

	touched := build(t, lazy, 1, nil, runtime.BuildOptions{Touched: [][]domain.EntityID{{1, 107}}})
	assert.Equal(t, domain.VariantReal, touched.Rows[9].Variant)
	assert.Equal(t, domain.EntityID(107), touched.Rows[9].Entity)
	assert.Equal(t, domain.VariantDummy, touched.Rows[8].Variant)
}

func TestCommitGhost(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	var events []*domain.GhostEvent
	eng := runtime.NewEngine(repo, tmpl, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnGhostMaterialized: func(_ context.Context, ev *domain.GhostEvent) { events = append(events, ev) },
	}))
	ctx := context.Background()

	first := build(t, eng, 1, nil, runtime.BuildOptions{})
	ghost := first.Rows[1]

	id, err := eng.CommitGhost(ctx, ghost, "")
	require.NoError(t, err)
	assert.True(t, id.IsZero(), "empty text creates nothing")

	id, err = eng.CommitGhost(ctx, ghost, "rʌn")
	require.NoError(t, err)
	require.False(t, id.IsZero())

	held, err := repo.Atomic(1, "Pronunciation")
	require.NoError(t, err)
	assert.Equal(t, id, held)
	form, err := repo.String(id, "Form")
	require.NoError(t, err)
	assert.Equal(t, "rʌn", form)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].Created)

	second := build(t, eng, 1, runtime.NewReuseMap(first.Rows), runtime.BuildOptions{})
	require.Len(t, second.Rows, 2)
	assert.Equal(t, domain.VariantReal, second.Rows[1].Variant)
	assert.Equal(t, key(1, n("pron"), e(id), n("form")), second.Rows[1].Key)
	assert.Equal(t, []*domain.Row{ghost}, second.Disposed)

	_, err = eng.CommitGhost(ctx, second.Rows[0], "x")
	assert.ErrorIs(t, err, domain.ErrNotGhost)
}

func TestCommitGhost_Sequence(t *testing.T) {
	repo, err := memory.LoadFixture([]byte(testutils.EntryFixture))
	require.NoError(t, err)
	tmpl, err := memory.LoadTemplates([]byte(`
- kind: layout
  class: Entry
  name: default
  nodes:
    - key: senses
      kind: seq
      field: Senses
      ghost: {field: Definition, label: Sense}
- kind: layout
  class: Sense
  name: default
  nodes:
    - {key: gloss, kind: slice, field: Gloss, ws: en}
    - {key: def, kind: slice, field: Definition, visibility: ifdata}
`))
	require.NoError(t, err)
	eng := runtime.NewEngine(repo, tmpl)
	before := repo.Len()

	first := build(t, eng, 1, nil, runtime.BuildOptions{})
	require.Len(t, first.Rows, 1)
	ghost := first.Rows[0]
	require.Equal(t, domain.VariantGhost, ghost.Variant)
	assert.Equal(t, "Sense", ghost.Label)
	assert.Equal(t, key(1, n("senses")), ghost.Key)

	id, err := eng.CommitGhost(context.Background(), ghost, "move fast")
	require.NoError(t, err)
	assert.Equal(t, before+1, repo.Len(), "exactly one object is created")

	senses, err := repo.Vector(1, "Senses")
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityID{id}, senses)
	def, err := repo.String(id, "Definition")
	require.NoError(t, err)
	assert.Equal(t, "move fast", def)

	second := build(t, eng, 1, runtime.NewReuseMap(first.Rows), runtime.BuildOptions{})
	assert.Equal(t, []string{
		key(1, n("senses"), e(id), n("gloss")).String(),
		key(1, n("senses"), e(id), n("def")).String(),
	}, keys(second.Rows))
	assert.Equal(t, "move fast", second.Rows[1].Value)
	assert.Equal(t, []*domain.Row{ghost}, second.Disposed)
}

func TestBuild_RecordsDependencies(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	eng := runtime.NewEngine(repo, tmpl)

	res := build(t, eng, 2, nil, runtime.BuildOptions{})
	deps := res.Deps
	assert.Equal(t, 1, deps.Uses[runtime.FieldRef{Entity: 2, Field: "Senses"}])
	assert.Equal(t, 1, deps.Uses[runtime.FieldRef{Entity: 2, Field: "Pronunciation"}])
	assert.True(t, deps.IfData[runtime.FieldRef{Entity: 20, Field: "Definition"}])
	assert.True(t, deps.IfData[runtime.FieldRef{Entity: 21, Field: "Subsenses"}])
	assert.False(t, deps.IfData[runtime.FieldRef{Entity: 2, Field: "CitationForm"}])

	site, ok := deps.Sequences[key(2, n("senses")).String()]
	require.True(t, ok)
	assert.Equal(t, domain.EntityID(2), site.Owner)
	assert.Equal(t, "Senses", site.Node.Field)

	empty := build(t, eng, 1, nil, runtime.BuildOptions{})
	assert.True(t, empty.Deps.IfData[runtime.FieldRef{Entity: 1, Field: "Senses"}])
	assert.Empty(t, empty.Deps.Sequences)
}

func TestCommitGhost_InitializerFailureRollsBack(t *testing.T) {
	repo, err := memory.LoadFixture([]byte(testutils.EntryFixture))
	require.NoError(t, err)
	tmpl, err := memory.LoadTemplates([]byte(`
- kind: layout
  class: Entry
  name: default
  nodes:
    - key: pron
      kind: obj
      field: Pronunciation
      ghost: {field: Form, initializer: stamp}
`))
	require.NoError(t, err)

	boom := errors.New("boom")
	inits := registry.NewInitializers()
	inits.Register("stamp", func(ctx context.Context, uow ports.UnitOfWork, created domain.EntityID) error {
		return boom
	})
	eng := runtime.NewEngine(repo, tmpl, runtime.WithInitializers(inits))
	before := repo.Len()

	res := build(t, eng, 1, nil, runtime.BuildOptions{})
	require.Len(t, res.Rows, 1)
	_, err = eng.CommitGhost(context.Background(), res.Rows[0], "x")
	assert.ErrorIs(t, err, boom)

	held, err := repo.Atomic(1, "Pronunciation")
	require.NoError(t, err)
	assert.True(t, held.IsZero())
	assert.Equal(t, before, repo.Len())
	assert.Equal(t, domain.VariantGhost, res.Rows[0].Variant)
}

func TestBuild_ConfigErrors(t *testing.T) {
	repo, err := memory.LoadFixture([]byte(testutils.EntryFixture))
	require.NoError(t, err)
	tmpl, err := memory.LoadTemplates([]byte(`
- kind: layout
  class: Entry
  name: default
  nodes:
    - {key: cf, kind: slice, field: CitationForm}
    - {key: nope, kind: slice, field: Nope}
    - {key: senses, kind: seq, field: Senses, layout: broken}
- kind: layout
  class: Sense
  name: broken
  nodes:
    - {key: gloss, kind: slice, field: Gloss}
    - {key: bad, kind: slice, field: Missing}
`))
	require.NoError(t, err)
	eng := runtime.NewEngine(repo, tmpl)

	res, err := eng.Build(context.Background(), 2, "", nil, runtime.BuildOptions{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)
	assert.Equal(t, domain.VariantReal, res.Rows[0].Variant)
	for _, r := range res.Rows[1:] {
		assert.Equal(t, domain.VariantError, r.Variant)
		assert.Equal(t, registry.EditorError, r.Editor)
	}
	assert.Equal(t, domain.EntityID(20), res.Rows[2].Entity)
	assert.Equal(t, domain.EntityID(21), res.Rows[3].Entity)

	rebuildErr := res.Err()
	require.Error(t, rebuildErr)
	var re *domain.RebuildError
	require.ErrorAs(t, rebuildErr, &re)
	assert.Len(t, re.Errors, 3)
	assert.ErrorIs(t, rebuildErr, domain.ErrFieldNotFound)
	var cfg *domain.ConfigError
	require.ErrorAs(t, rebuildErr, &cfg)
	assert.Equal(t, "nope", cfg.Node)

	// Error rows are not reused.
	again := build(t, eng, 2, runtime.NewReuseMap(res.Rows), runtime.BuildOptions{})
	assert.Same(t, res.Rows[0], again.Rows[0])
	assert.NotSame(t, res.Rows[1], again.Rows[1])
}

func TestBuild_MissingLayoutIsAnErrorRow(t *testing.T) {
	repo, err := memory.LoadFixture([]byte(testutils.EntryFixture))
	require.NoError(t, err)
	eng := runtime.NewEngine(repo, memory.NewTemplates())

	res, err := eng.Build(context.Background(), 1, "", nil, runtime.BuildOptions{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, domain.VariantError, res.Rows[0].Variant)
	assert.ErrorIs(t, res.Err(), domain.ErrLayoutNotFound)
}

func TestBuild_Conditions(t *testing.T) {
	repo, err := memory.LoadFixture([]byte(testutils.EntryFixture))
	require.NoError(t, err)
	tmpl, err := memory.LoadTemplates([]byte(`
- kind: layout
  class: Entry
  name: default
  nodes:
    - kind: choice
      children:
        - kind: if
          condition: 'size("Senses") > 1'
          children: [{key: many, kind: slice, label: Many}]
        - kind: if
          children: [{key: few, kind: slice, label: Few}]
    - kind: if
      condition: 'is("Entry") && str("CitationForm") == "run"'
      children: [{key: run, kind: slice, label: Run}]
- kind: layout
  class: Entry
  name: broken
  nodes:
    - {kind: if, condition: 'size(', children: [{kind: slice, label: X}]}
`))
	require.NoError(t, err)
	eng := runtime.NewEngine(repo, tmpl)

	res := build(t, eng, 2, nil, runtime.BuildOptions{})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Many", res.Rows[0].Label)
	assert.True(t, res.UsedConditions)

	res = build(t, eng, 1, nil, runtime.BuildOptions{})
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Few", res.Rows[0].Label)
	assert.Equal(t, "Run", res.Rows[1].Label)

	broken, err := eng.Build(context.Background(), 1, "broken", nil, runtime.BuildOptions{})
	require.NoError(t, err)
	require.Len(t, broken.Rows, 1)
	assert.Equal(t, domain.VariantError, broken.Rows[0].Variant)
}

func TestBuild_Visibility(t *testing.T) {
	repo, err := memory.LoadFixture([]byte(testutils.EntryFixture))
	require.NoError(t, err)
	tmpl, err := memory.LoadTemplates([]byte(`
- kind: layout
  class: Entry
  name: default
  nodes:
    - {key: cf, kind: slice, field: CitationForm}
    - {key: hom, kind: slice, field: Homograph, visibility: never}
`))
	require.NoError(t, err)
	eng := runtime.NewEngine(repo, tmpl)

	assert.Len(t, build(t, eng, 1, nil, runtime.BuildOptions{}).Rows, 1)
	shown := build(t, eng, 1, nil, runtime.BuildOptions{ShowHidden: true})
	require.Len(t, shown.Rows, 2)
	assert.Equal(t, int64(0), shown.Rows[1].Value)

	layout, err := tmpl.LookupLayout("Entry", "detail", "default")
	require.NoError(t, err)
	ctx := context.Background()
	assert.Equal(t, domain.Nothing, eng.Evaluate(ctx, layout.Children[1], 1, false))
	assert.Equal(t, domain.Something, eng.Evaluate(ctx, layout.Children[1], 1, true))
}

func TestBuild_CustomFields(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	require.NoError(t, repo.Meta().DeclareField("Entry", domain.FieldDef{Name: "Etymology", Kind: domain.KindString}))
	eng := runtime.NewEngine(repo, tmpl)

	res := build(t, eng, 1, nil, runtime.BuildOptions{})
	require.Len(t, res.Rows, 3)
	last := res.Rows[2]
	assert.Equal(t, "Etymology", last.Field)
	assert.Equal(t, "Etymology", last.Label)
	assert.Equal(t, domain.VariantReal, last.Variant)

	canonical, err := tmpl.LookupLayout("Entry", "detail", "default")
	require.NoError(t, err)
	assert.Len(t, canonical.Children, 4, "the stored layout is left untouched")
}

func TestBuild_Validator(t *testing.T) {
	repo, err := memory.LoadFixture([]byte(testutils.EntryFixture))
	require.NoError(t, err)
	tmpl, err := memory.LoadTemplates([]byte(`
- kind: layout
  class: Entry
  name: default
  nodes:
    - {key: cf, kind: slice, field: CitationForm, validator: "pattern:^[a-z]+$"}
- kind: layout
  class: Entry
  name: bogus
  nodes:
    - {key: cf, kind: slice, field: CitationForm, validator: "no-such-type"}
`))
	require.NoError(t, err)
	eng := runtime.NewEngine(repo, tmpl)
	ctx := context.Background()

	res := build(t, eng, 1, nil, runtime.BuildOptions{})
	assert.NoError(t, res.Rows[0].DataErr)

	require.NoError(t, repo.Update(ctx, "edit", func(uow ports.UnitOfWork) error {
		return uow.SetString(1, "CitationForm", "Run!")
	}))
	require.NoError(t, eng.RefreshRow(res.Rows[0]))
	assert.Equal(t, "Run!", res.Rows[0].Value)
	assert.Error(t, res.Rows[0].DataErr)
	assert.Error(t, eng.Check(ctx, 1, ""))

	bogus, err := eng.Build(ctx, 1, "bogus", nil, runtime.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.VariantError, bogus.Rows[0].Variant)
}
