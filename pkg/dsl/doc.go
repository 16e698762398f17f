/*
Package dsl provides a Go DSL for programmatically constructing detail templates.

It allows developers to declare layouts and parts with a type-safe, fluent builder
instead of YAML or markdown files. This is particularly useful for tests and for
templates generated at runtime.

Example usage:

	b := dsl.New()

	entry := b.Layout("Entry", "default")
	entry.Field("CitationForm").Label("Citation Form")
	entry.Object("Pronunciation").Ghost("Form")
	entry.Sequence("Senses").IfData()
	entry.CustomFields()

	sense := b.Layout("Sense", "default")
	sense.Field("Gloss").WS("en")
	sense.Field("Definition").IfData()

	// The result is a ports.TemplateSource.
	templates, err := b.Build()
	// ... pass it to detailtree.New("", repo, detailtree.WithTemplates(templates))
*/
package dsl
