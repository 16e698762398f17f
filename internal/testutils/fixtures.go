package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/detailtree/pkg/adapters/memory"
	"github.com/stretchr/testify/require"
)

// LexiconModel declares the classes of the lexicon fixtures.
const LexiconModel = `
classes:
  - name: Entry
    fields:
      - {name: CitationForm, kind: string, label: Citation Form}
      - {name: Pronunciation, kind: owning, target: Pronunciation}
      - {name: Senses, kind: owning-sequence, target: Sense}
      - {name: Related, kind: reference-collection, target: Entry}
      - {name: Homograph, kind: integer}
      - {name: Published, kind: boolean}
  - name: Pronunciation
    fields:
      - {name: Form, kind: string}
  - name: Sense
    fields:
      - {name: Gloss, kind: multistring}
      - {name: Definition, kind: string}
      - {name: Subsenses, kind: owning-sequence, target: Sense}
`

// LexiconTemplates are the detail layouts of the lexicon fixtures.
const LexiconTemplates = `
- kind: layout
  class: Entry
  name: default
  nodes:
    - {key: cf, kind: slice, field: CitationForm}
    - key: pron
      kind: obj
      field: Pronunciation
      ghost: {field: Form, label: Pronunciation}
    - {key: senses, kind: seq, field: Senses, visibility: ifdata}
    - {key: custom, kind: customFields}
- kind: layout
  class: Pronunciation
  name: default
  nodes:
    - {key: form, kind: slice, field: Form}
- kind: layout
  class: Sense
  name: default
  nodes:
    - {key: gloss, kind: slice, field: Gloss, ws: en}
    - {key: def, kind: slice, field: Definition, visibility: ifdata}
    - {key: subsenses, kind: seq, field: Subsenses, visibility: ifdata, indent: true}
`

// EntryFixture has entry 1 ("run") with no pronunciation and no senses, and entry 2
// ("walk") with senses 20 and 21.
const EntryFixture = LexiconModel + `
entities:
  - id: 1
    class: Entry
    values:
      CitationForm: run
  - id: 2
    class: Entry
    values:
      CitationForm: walk
      Senses:
        - id: 20
          class: Sense
          values:
            Gloss: {en: to go on foot}
            Definition: move at a regular pace
        - id: 21
          class: Sense
          values:
            Gloss: {en: a journey on foot}
`

// LoadLexicon builds the repository and templates of a lexicon fixture.
func LoadLexicon(t *testing.T, fixture string) (*memory.Repository, *memory.Templates) {
	t.Helper()
	repo, err := memory.LoadFixture([]byte(fixture))
	require.NoError(t, err, "failed to load fixture")
	tmpl, err := memory.LoadTemplates([]byte(LexiconTemplates))
	require.NoError(t, err, "failed to load templates")
	return repo, tmpl
}

// LongEntryFixture returns entry 1 with n senses, numbered 100, 101, ...
func LongEntryFixture(n int) string {
	var b strings.Builder
	b.WriteString(LexiconModel)
	b.WriteString("entities:\n  - id: 1\n    class: Entry\n    values:\n      CitationForm: long\n      Senses:\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "        - id: %d\n          class: Sense\n          values:\n            Gloss: {en: sense %d}\n", 100+i, i)
	}
	return b.String()
}
