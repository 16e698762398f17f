package loam

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"

	"github.com/aretw0/detailtree/internal/testutils"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

var lexicon = map[string]string{
	"entry.md": `---
class: Entry
name: default
nodes:
  - key: cf
    kind: slice
    field: CitationForm
  - key: senses
    kind: seq
    field: Senses
    visibility: ifdata
---
Main entry layout.`,
	"parts/sense-gloss.md": `---
kind: part
class: Sense
name: Gloss
nodes:
  - kind: slice
    field: Gloss
    ws: en
    ghost:
      field: Gloss
---`,
	"brief.md": `---
class: Entry
---
Layout named after its file.`,
}

func TestLoader_Contract(t *testing.T) {
	dir, repo := testutils.SetupTestRepo(t)
	seed(t, dir, lexicon)

	loader := New(loam.NewTypedRepository[DocMetadata](repo))

	tests.TemplateSourceContractTest(t, loader,
		[]tests.LayoutRef{
			{Class: "Entry", Type: "detail", Name: "default"},
			{Class: "Entry", Type: "detail", Name: "brief"},
		},
		[]string{"Sense-Detail-Gloss"},
	)
}

func TestLoader_DecodesNodes(t *testing.T) {
	dir, repo := testutils.SetupTestRepo(t)
	seed(t, dir, lexicon)
	loader := New(loam.NewTypedRepository[DocMetadata](repo))

	layout, err := loader.LookupLayout("Entry", "detail", "default")
	require.NoError(t, err)
	require.Len(t, layout.Children, 2)
	assert.Equal(t, domain.NodeLayout, layout.Kind)
	assert.Equal(t, "cf", layout.Children[0].Key)
	assert.Equal(t, domain.NodeSequence, layout.Children[1].Kind)
	assert.Equal(t, domain.VisibilityIfData, layout.Children[1].Visibility)

	part, err := loader.LookupPart("Sense-Detail-Gloss")
	require.NoError(t, err)
	assert.Equal(t, "en", part.WS)
	require.NotNil(t, part.Ghost)
	assert.Equal(t, "Gloss", part.Ghost.Field)
	assert.NotEmpty(t, part.Key)

	keys, err := loader.ListTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{"Entry.detail.brief", "Entry.detail.default", "Sense-Detail-Gloss"}, keys)
}

func TestLoader_RejectsBadDocuments(t *testing.T) {
	t.Run("unknown attribute", func(t *testing.T) {
		dir, repo := testutils.SetupTestRepo(t)
		seed(t, dir, map[string]string{"bad.md": "---\nclass: Entry\nnodes:\n  - kind: slice\n    feild: Typo\n---\n"})
		loader := New(loam.NewTypedRepository[DocMetadata](repo))
		_, err := loader.LookupLayout("Entry", "detail", "bad")
		assert.Error(t, err)
	})

	t.Run("duplicate definition", func(t *testing.T) {
		dir, repo := testutils.SetupTestRepo(t)
		seed(t, dir, map[string]string{
			"a.md": "---\nclass: Entry\nname: default\n---\n",
			"b.md": "---\nclass: Entry\nname: default\n---\n",
		})
		loader := New(loam.NewTypedRepository[DocMetadata](repo))
		_, err := loader.ListTemplates()
		assert.ErrorContains(t, err, "collision detected")
	})

	t.Run("missing class", func(t *testing.T) {
		dir, repo := testutils.SetupTestRepo(t)
		seed(t, dir, map[string]string{"orphan.md": "---\nnodes:\n  - kind: slice\n---\n"})
		loader := New(loam.NewTypedRepository[DocMetadata](repo))
		_, err := loader.ListTemplates()
		assert.Error(t, err)
	})
}
