/*
Package detailtree turns a live, graph-structured domain object into the flat,
incrementally expandable list of bound rows of a detail view, and keeps that list in
sync with the data across rebuilds.

# Concept

What a view shows is declared by templates: a layout per class (looked up along the
superclass chain) made of field rows, object and sequence descents, conditional
branches and reusable parts. The engine walks the layout against the data and emits
one row per visible field. Rows are identified by a PathKey (the template nodes and
entity ids on the way from the root), which is how a rebuild recognizes and recycles
the rows, controls and expansion state of the previous one.

# Key Features

  - Row reuse: a rebuild recycles every row whose PathKey survives and disposes the rest.
  - Lazy paging: long sequences show one placeholder per element until it is needed.
  - Ghost rows: an empty owned field shows a placeholder that creates the object on
    its first edit, in a single unit of work.
  - Visibility: "always", "ifdata" and "never" fields, with a show-hidden preference.
  - Hexagonal Architecture: the repository, template source and preferences are ports.

# Usage

	package main

	import (
		"context"
		"log"
		"os"

		"github.com/aretw0/detailtree"
		"github.com/aretw0/detailtree/pkg/adapters/memory"
	)

	func main() {
		repo, err := memory.LoadFixtureFile("lexicon.yaml")
		if err != nil {
			log.Fatal(err)
		}

		// Templates are read from ./templates (markdown or YAML documents).
		tree, err := detailtree.New("./templates", repo, detailtree.WithNotifier(repo))
		if err != nil {
			log.Fatal(err)
		}
		defer tree.Close()

		ctx := context.Background()
		if err := tree.Rebuild(ctx, 1, "default"); err != nil {
			log.Fatal(err)
		}

		runner := detailtree.NewRunner()
		runner.Input, runner.Output = os.Stdin, os.Stdout
		if err := runner.Run(ctx, tree); err != nil {
			log.Fatal(err)
		}
	}
*/
package detailtree
