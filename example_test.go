package detailtree_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/pkg/adapters/memory"
)

// ExampleNew_memory shows a detail view over an in-memory repository, with the
// layouts given as YAML instead of a template directory.
func ExampleNew_memory() {
	repo, err := memory.LoadFixture([]byte(`
classes:
  - name: Entry
    fields:
      - {name: CitationForm, kind: string, label: Citation Form}
      - {name: Pronunciation, kind: owning, target: Pronunciation}
  - name: Pronunciation
    fields:
      - {name: Form, kind: string}
entities:
  - id: 1
    class: Entry
    values:
      CitationForm: run
`))
	if err != nil {
		log.Fatal(err)
	}

	templates, err := memory.LoadTemplates([]byte(`
- kind: layout
  class: Entry
  name: default
  nodes:
    - {kind: slice, field: CitationForm}
    - kind: obj
      field: Pronunciation
      ghost: {field: Form, label: Pronunciation}
`))
	if err != nil {
		log.Fatal(err)
	}

	// No template directory ("") because the templates are injected.
	tree, err := detailtree.New("", repo,
		detailtree.WithTemplates(templates),
		detailtree.WithNotifier(repo),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer tree.Close()

	ctx := context.Background()
	if err := tree.Rebuild(ctx, 1, ""); err != nil {
		log.Fatal(err)
	}
	for _, row := range tree.Rows() {
		fmt.Printf("%s: %s\n", row.Variant, detailtree.RowText(row))
	}

	// Edits write through the repository and refresh the row.
	if err := tree.Edit(ctx, 0, "sprint"); err != nil {
		log.Fatal(err)
	}
	fmt.Println(detailtree.RowText(tree.Rows()[0]))

	// Output:
	// real: Citation Form: run
	// ghost: Pronunciation: <new>
	// Citation Form: sprint
}
