package dsl

import (
	"fmt"

	"github.com/aretw0/detailtree/pkg/adapters/memory"
	"github.com/aretw0/detailtree/pkg/domain"
)

// Builder manages the template set construction.
type Builder struct {
	docs []*domain.TemplateDoc
}

// New creates a new template builder.
func New() *Builder {
	return &Builder{}
}

// Layout starts the detail layout {class, name}.
func (b *Builder) Layout(class domain.ClassID, name string) *DocBuilder {
	return b.add(domain.DocLayout, class, name)
}

// Part starts the part {class}-Detail-{name}.
func (b *Builder) Part(class domain.ClassID, name string) *DocBuilder {
	return b.add(domain.DocPart, class, name)
}

func (b *Builder) add(kind string, class domain.ClassID, name string) *DocBuilder {
	doc := &domain.TemplateDoc{Kind: kind, Class: class, Name: name}
	b.docs = append(b.docs, doc)
	return &DocBuilder{container: container{children: &doc.Nodes}, doc: doc}
}

// Docs returns the definitions built so far.
func (b *Builder) Docs() []*domain.TemplateDoc {
	return b.docs
}

// Build compiles the definitions into an in-memory template source.
func (b *Builder) Build() (*memory.Templates, error) {
	tmpl, err := memory.NewFromDocs(b.docs...)
	if err != nil {
		return nil, fmt.Errorf("failed to build templates: %w", err)
	}
	return tmpl, nil
}

// DocBuilder adds the top-level nodes of one layout or part.
type DocBuilder struct {
	container
	doc *domain.TemplateDoc
}

// Type sets the layout type (default "detail").
func (d *DocBuilder) Type(layoutType string) *DocBuilder {
	d.doc.Type = layoutType
	return d
}
