package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/detailtree/pkg/adapters/memory"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	contract "github.com/aretw0/detailtree/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const entryFixture = `
classes:
  - name: Entry
    fields:
      - {name: CitationForm, kind: string}
      - {name: Pronunciation, kind: owning, target: Pronunciation}
      - {name: Senses, kind: owning-sequence, target: Sense}
      - {name: Related, kind: reference-collection, target: Entry}
      - {name: Homograph, kind: integer}
  - name: Pronunciation
    fields:
      - {name: Form, kind: string}
  - name: Sense
    fields:
      - {name: Gloss, kind: multistring}
      - {name: Created, kind: date}
entities:
  - id: 1
    class: Entry
    values:
      CitationForm: run
      Homograph: 2
      Related: [10]
      Senses:
        - class: Sense
          values:
            Gloss: {en: to move fast, fr: courir}
            Created: 2024-03-01
        - id: 5
          class: Sense
  - id: 10
    class: Entry
    values:
      CitationForm: walk
`

func loadEntry(t *testing.T) *memory.Repository {
	t.Helper()
	repo, err := memory.LoadFixture([]byte(entryFixture))
	require.NoError(t, err)
	return repo
}

func TestLoadFixture(t *testing.T) {
	repo := loadEntry(t)

	assert.Equal(t, []domain.EntityID{1, 10}, repo.Roots())

	s, err := repo.String(1, "CitationForm")
	require.NoError(t, err)
	assert.Equal(t, "run", s)

	senses, err := repo.Vector(1, "Senses")
	require.NoError(t, err)
	require.Len(t, senses, 2)
	assert.Equal(t, domain.EntityID(5), senses[1])
	assert.Greater(t, int64(senses[0]), int64(10), "auto ids must not collide with explicit ones")

	gloss, err := repo.MultiString(senses[0], "Gloss", "fr")
	require.NoError(t, err)
	assert.Equal(t, "courir", gloss)
	best, err := repo.MultiString(senses[0], "Gloss", "")
	require.NoError(t, err)
	assert.Equal(t, "to move fast", best)

	created, err := repo.Value(senses[0], "Created")
	require.NoError(t, err)
	assert.Equal(t, 2024, created.(time.Time).Year())

	hom, err := repo.Value(1, "Homograph")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hom)

	related, err := repo.Vector(1, "Related")
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityID{10}, related)

	owner, field, err := repo.Owner(5)
	require.NoError(t, err)
	assert.Equal(t, domain.EntityID(1), owner)
	assert.Equal(t, "Senses", field)
}

func TestLoadFixture_Errors(t *testing.T) {
	_, err := memory.LoadFixture([]byte("classes: [{name: A, super: Missing}]"))
	assert.ErrorIs(t, err, domain.ErrClassNotFound)

	_, err = memory.LoadFixture([]byte("classes: [{name: A, fields: [{name: x, kind: bogus}]}]"))
	assert.Error(t, err)

	_, err = memory.LoadFixture([]byte("classes: [{name: A}]\nentities: [{class: A, values: {nope: 1}}]"))
	assert.ErrorIs(t, err, domain.ErrFieldNotFound)
}

func TestLoadFixture_Validators(t *testing.T) {
	repo, err := memory.LoadFixture([]byte("classes: [{name: A}]\nvalidators: {headword: \"pattern:^[a-z]+$\"}"))
	require.NoError(t, err)
	assert.Contains(t, repo.Validators(), "headword")
	assert.Empty(t, loadEntry(t).Validators())

	_, err = memory.LoadFixture([]byte("classes: [{name: A}]\nvalidators: {headword: bogus}"))
	assert.ErrorContains(t, err, "fixture validators")
}

func TestRepository_GettersCheckKinds(t *testing.T) {
	repo := loadEntry(t)

	_, err := repo.String(1, "Senses")
	assert.Error(t, err)
	_, err = repo.String(999, "CitationForm")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	_, err = repo.VectorItem(1, "Senses", 7)
	assert.Error(t, err)

	p, err := repo.Atomic(1, "Pronunciation")
	require.NoError(t, err)
	assert.True(t, p.IsZero())
}

func TestUnitOfWork_CommitNotifies(t *testing.T) {
	repo := loadEntry(t)
	ctx := context.Background()

	var got []domain.Change
	unsubscribe := repo.Subscribe(func(c domain.Change) { got = append(got, c) })
	defer unsubscribe()

	var pron domain.EntityID
	err := repo.Update(ctx, "add pronunciation", func(uow ports.UnitOfWork) error {
		var err error
		pron, err = uow.Create("", 1, "Pronunciation", -1)
		if err != nil {
			return err
		}
		return uow.SetString(pron, "Form", "rʌn")
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.Change{
		{Entity: 1, Field: "Pronunciation"},
		{Entity: pron, Field: "Form"},
	}, got)

	atomic, err := repo.Atomic(1, "Pronunciation")
	require.NoError(t, err)
	assert.Equal(t, pron, atomic)
}

func TestUnitOfWork_RollbackRestores(t *testing.T) {
	repo := loadEntry(t)
	ctx := context.Background()
	before := repo.Len()

	notified := false
	repo.Subscribe(func(domain.Change) { notified = true })

	boom := errors.New("boom")
	err := repo.Update(ctx, "failing", func(uow ports.UnitOfWork) error {
		id, err := uow.Create("Sense", 1, "Senses", 0)
		require.NoError(t, err)
		require.NoError(t, uow.SetMultiString(id, "Gloss", "en", "x"))
		require.NoError(t, uow.SetString(1, "CitationForm", "changed"))
		require.NoError(t, uow.Delete(10))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, notified)
	assert.Equal(t, before, repo.Len())

	s, _ := repo.String(1, "CitationForm")
	assert.Equal(t, "run", s)
	n, _ := repo.VectorSize(1, "Senses")
	assert.Equal(t, 2, n)
	assert.True(t, repo.Valid(10))
	related, _ := repo.Vector(1, "Related")
	assert.Equal(t, []domain.EntityID{10}, related)
}

func TestUnitOfWork_SequenceInsertAndDelete(t *testing.T) {
	repo := loadEntry(t)
	ctx := context.Background()

	var first domain.EntityID
	require.NoError(t, repo.Update(ctx, "insert", func(uow ports.UnitOfWork) error {
		var err error
		first, err = uow.Create("Sense", 1, "Senses", 0)
		return err
	}))
	senses, _ := repo.Vector(1, "Senses")
	require.Len(t, senses, 3)
	assert.Equal(t, first, senses[0])

	var changes []domain.Change
	repo.Subscribe(func(c domain.Change) { changes = append(changes, c) })
	require.NoError(t, repo.Update(ctx, "delete", func(uow ports.UnitOfWork) error {
		return uow.Delete(10)
	}))
	related, _ := repo.Vector(1, "Related")
	assert.Empty(t, related, "references to deleted entities are cleared")
	assert.Contains(t, changes, domain.Change{Entity: 1, Field: "Related", RangeChanged: true})
	assert.False(t, repo.Valid(10))
}

func TestUnitOfWork_DeleteCascadesOwned(t *testing.T) {
	repo := loadEntry(t)
	require.NoError(t, repo.Update(context.Background(), "delete", func(uow ports.UnitOfWork) error {
		return uow.Delete(1)
	}))
	assert.False(t, repo.Valid(5))
	assert.Equal(t, []domain.EntityID{10}, repo.Roots())
}

func TestUnitOfWork_Validation(t *testing.T) {
	repo := loadEntry(t)
	uow, err := repo.Begin(context.Background(), "bad")
	require.NoError(t, err)
	defer func() { _ = uow.Rollback() }()

	_, err = uow.Create("Entry", 1, "Senses", -1)
	assert.Error(t, err, "class must match the field signature")
	_, err = uow.Create("Sense", 1, "Related", -1)
	assert.Error(t, err, "reference fields do not own")
	assert.Error(t, uow.SetValue(1, "Homograph", 1.5))
	assert.Error(t, uow.SetMultiString(5, "Gloss", "", "x"))
}

func TestUnitOfWork_FinishedOnce(t *testing.T) {
	repo := loadEntry(t)
	ctx := context.Background()
	uow, err := repo.Begin(ctx, "x")
	require.NoError(t, err)
	require.NoError(t, uow.Commit(ctx))
	assert.Error(t, uow.Commit(ctx))
	assert.Error(t, uow.SetString(1, "CitationForm", "y"))
}

func TestMetadata(t *testing.T) {
	meta, err := memory.NewMetadata(
		domain.ClassDef{Name: "Base", Abstract: true, Fields: []domain.FieldDef{{Name: "Note", Kind: domain.KindString}}},
		domain.ClassDef{Name: "Leaf", Super: "Base", Fields: []domain.FieldDef{{Name: "Form", Kind: domain.KindString}}},
	)
	require.NoError(t, err)

	f, err := meta.Field("Leaf", "Note")
	require.NoError(t, err)
	assert.Equal(t, domain.ClassID("Base"), f.Owner)

	require.NoError(t, meta.DeclareField("Base", domain.FieldDef{Name: "Custom1", Kind: domain.KindString}))
	fields, err := meta.Fields("Leaf")
	require.NoError(t, err)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"Note", "Custom1", "Form"}, names)
	assert.True(t, fields[1].Custom)
	assert.True(t, meta.IsA("Leaf", domain.BaseClass))
	assert.Error(t, meta.DeclareField("Base", domain.FieldDef{Name: "Note", Kind: domain.KindString}))

	_, err = memory.NewMetadata(
		domain.ClassDef{Name: "A", Super: "B"},
		domain.ClassDef{Name: "B", Super: "A"},
	)
	assert.Error(t, err)
}

func TestTemplates_Contract(t *testing.T) {
	src, err := memory.LoadTemplates([]byte(`
- kind: layout
  class: Entry
  name: default
  nodes:
    - {kind: slice, field: CitationForm}
    - {kind: part, part: Gloss}
- kind: part
  class: Sense
  name: Gloss
  nodes:
    - {kind: slice, field: Gloss, visibility: ifdata}
`))
	require.NoError(t, err)

	contract.TemplateSourceContractTest(t, src,
		[]contract.LayoutRef{{Class: "Entry", Type: "detail", Name: "default"}},
		[]string{"Sense-Detail-Gloss"},
	)

	keys, err := src.ListTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{"Entry.detail.default", "Sense-Detail-Gloss"}, keys)
}

func TestPrefsStore_Contract(t *testing.T) {
	contract.RunPrefsStoreContract(t, memory.NewPrefsStore())
}
