package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/internal/logging"
	"github.com/aretw0/detailtree/internal/presentation/outline"
	"github.com/aretw0/detailtree/internal/testutils"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeLexicon writes the lexicon fixture and templates to a temp dir.
func writeLexicon(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data.yaml")
	tmpl := filepath.Join(dir, "templates.yaml")
	require.NoError(t, os.WriteFile(data, []byte(testutils.EntryFixture), 0o644))
	require.NoError(t, os.WriteFile(tmpl, []byte(testutils.LexiconTemplates), 0o644))
	return Options{Data: data, Templates: tmpl, Headless: true}
}

func TestLoadSources(t *testing.T) {
	t.Run("Requires data", func(t *testing.T) {
		_, err := LoadSources(Options{Dir: "."})
		assert.ErrorContains(t, err, "--data")
	})

	t.Run("Requires templates", func(t *testing.T) {
		_, err := LoadSources(Options{Data: "data.yaml"})
		assert.ErrorContains(t, err, "--dir")
	})

	t.Run("Template file", func(t *testing.T) {
		src, err := LoadSources(writeLexicon(t))
		require.NoError(t, err)
		assert.Equal(t, "templates.yaml", src.Name)
		assert.Equal(t, []domain.EntityID{1, 2}, src.Repo.Roots())
	})

	t.Run("Missing data file", func(t *testing.T) {
		opts := writeLexicon(t)
		opts.Data = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := LoadSources(opts)
		assert.Error(t, err)
	})
}

func TestDetermineRoot(t *testing.T) {
	src, err := LoadSources(writeLexicon(t))
	require.NoError(t, err)

	t.Run("Default to first root", func(t *testing.T) {
		id, err := determineRoot(src.Repo, 0)
		require.NoError(t, err)
		assert.Equal(t, domain.EntityID(1), id)
	})

	t.Run("Requested entity", func(t *testing.T) {
		id, err := determineRoot(src.Repo, 2)
		require.NoError(t, err)
		assert.Equal(t, domain.EntityID(2), id)
	})

	t.Run("Unknown entity", func(t *testing.T) {
		_, err := determineRoot(src.Repo, 99)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	})
}

func TestRenderOnce(t *testing.T) {
	opts := writeLexicon(t)
	opts.Root = 2

	var out bytes.Buffer
	require.NoError(t, RenderOnce(&out, opts))
	assert.Contains(t, out.String(), "Citation Form: walk")
	assert.Contains(t, out.String(), "Pronunciation: <new>")
}

func TestRenderLayout(t *testing.T) {
	opts := writeLexicon(t)

	var out bytes.Buffer
	require.NoError(t, RenderLayout(&out, opts, "", false))
	assert.Contains(t, out.String(), "graph TD\n")
	assert.Contains(t, out.String(), "CitationForm")

	out.Reset()
	opts.Layout = "missing"
	require.NoError(t, RenderLayout(&out, opts, "Sense", false), "falls back to the default layout")
	assert.Contains(t, out.String(), "Gloss")

	out.Reset()
	err := RenderLayout(&out, opts, "Nope", false)
	assert.Error(t, err)
}

func TestWatchLoop_PrintsDiff(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	tree, err := detailtree.New("", repo, detailtree.WithTemplates(tmpl))
	require.NoError(t, err)
	defer tree.Close()

	ctx := context.Background()
	require.NoError(t, tree.Rebuild(ctx, 2, ""))

	events := make(chan struct{})
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, tree, events, &out, outline.NewDiffer(false), logging.NewNop())
	}()

	require.NoError(t, repo.Update(ctx, "edit", func(uow ports.UnitOfWork) error {
		return uow.SetString(2, "CitationForm", "stroll")
	}))
	events <- struct{}{}
	events <- struct{}{}
	close(events)
	require.NoError(t, <-done)

	text := out.String()
	assert.Contains(t, text, "Citation Form: walk\n")
	assert.Contains(t, text, "- Citation Form: walk\n")
	assert.Contains(t, text, "+ Citation Form: stroll\n")
	assert.Contains(t, text, ">>> Templates changed, rows unchanged.")
}

func TestWatchLoop_StopsOnCancel(t *testing.T) {
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	tree, err := detailtree.New("", repo, detailtree.WithTemplates(tmpl))
	require.NoError(t, err)
	defer tree.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = watchLoop(ctx, tree, make(chan struct{}), &bytes.Buffer{}, outline.NewDiffer(false), logging.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, handleExecutionError(err))
}

func TestExecute_WatchHeadless(t *testing.T) {
	err := Execute(Options{Headless: true}, true)
	assert.ErrorContains(t, err, "--watch and --headless")
}

func TestCheckView(t *testing.T) {
	opts := writeLexicon(t)

	var out bytes.Buffer
	require.NoError(t, CheckView(&out, opts))
	assert.Contains(t, out.String(), "valid")

	strict := filepath.Join(t.TempDir(), "strict.yaml")
	require.NoError(t, os.WriteFile(strict, []byte(`
- kind: layout
  class: Entry
  name: default
  nodes:
    - {kind: slice, field: CitationForm, validator: int}
`), 0o644))
	opts.Templates = strict

	out.Reset()
	err := CheckView(&out, opts)
	assert.ErrorContains(t, err, "1 validation errors")
	assert.Contains(t, out.String(), `field "CitationForm"`)
}

func TestRenderOnce_ExampleLexicon(t *testing.T) {
	opts := Options{
		Dir:      filepath.Join("..", "..", "examples", "lexicon", "templates"),
		Data:     filepath.Join("..", "..", "examples", "lexicon", "data.yaml"),
		Headless: true,
	}

	var out bytes.Buffer
	require.NoError(t, RenderOnce(&out, opts))
	assert.Contains(t, out.String(), "Citation Form: walk")
	assert.Contains(t, out.String(), "Senses")

	out.Reset()
	opts.Root = 2
	require.NoError(t, CheckView(&out, opts))
}

func TestValidateTemplates(t *testing.T) {
	opts := writeLexicon(t)

	var out bytes.Buffer
	require.NoError(t, ValidateTemplates(&out, opts, ""))
	assert.Contains(t, out.String(), "Layouts are valid!")

	opts.Layout = "outline"
	err := ValidateTemplates(&out, opts, "Entry")
	assert.ErrorContains(t, err, "Entry (outline): missing layout, falling back to default")
}
