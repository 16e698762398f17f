package runtime

import (
	"errors"
	"fmt"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
)

const (
	layoutType    = "detail"
	defaultLayout = "default"
)

// Resolver finds layouts and parts for a class, falling back along the
// superclass chain, and splices custom fields into resolved layouts.
//
// Canonical template nodes are never modified; every variant produced here is a
// clone of the nodes it changes.
type Resolver struct {
	templates ports.TemplateSource
	meta      ports.Metadata
}

// NewResolver creates a resolver over a template source and class metadata.
func NewResolver(templates ports.TemplateSource, meta ports.Metadata) *Resolver {
	return &Resolver{templates: templates, meta: meta}
}

// chain returns class followed by its superclasses.
func (r *Resolver) chain(class domain.ClassID) ([]domain.ClassID, error) {
	var out []domain.ClassID
	seen := map[domain.ClassID]bool{}
	for c := class; c != ""; {
		if seen[c] {
			return nil, fmt.Errorf("class %s: inheritance cycle", class)
		}
		seen[c] = true
		def, err := r.meta.Class(c)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		c = def.Super
	}
	return out, nil
}

// Resolve returns the layout {class, "detail", name}, trying every superclass, then
// retrying with the default layout from the class upward.
func (r *Resolver) Resolve(class domain.ClassID, name string) (*domain.TemplateNode, error) {
	if name == "" {
		name = defaultLayout
	}
	chain, err := r.chain(class)
	if err != nil {
		return nil, err
	}
	names := []string{name}
	if name != defaultLayout {
		names = append(names, defaultLayout)
	}
	for _, n := range names {
		for _, c := range chain {
			node, err := r.templates.LookupLayout(c, layoutType, n)
			if err == nil {
				return node, nil
			}
			if !errors.Is(err, domain.ErrLayoutNotFound) {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%s (layout %q): %w", class, name, domain.ErrLayoutNotFound)
}

// ResolvePart returns the unified template for a part reference, or nil when the
// part does not exist. Custom fields without a stored part get a synthesized one.
func (r *Resolver) ResolvePart(class domain.ClassID, ref *domain.TemplateNode) (*domain.TemplateNode, error) {
	chain, err := r.chain(class)
	if err != nil {
		return nil, err
	}
	for _, c := range chain {
		part, err := r.templates.LookupPart(domain.PartKey(c, ref.Part))
		if err == nil {
			return r.templates.Unify(part, ref), nil
		}
		if !errors.Is(err, domain.ErrPartNotFound) {
			return nil, err
		}
	}

	f, err := r.meta.Field(class, ref.Part)
	if err != nil || !f.Custom {
		// Stale references (e.g. to a deleted custom field) show nothing.
		return nil, nil
	}
	return r.templates.Unify(synthesizeField(f, ref.Key), ref), nil
}

func synthesizeField(f domain.FieldDef, key string) *domain.TemplateNode {
	label := f.Label
	if label == "" {
		label = f.Name
	}
	n := &domain.TemplateNode{Key: key, Field: f.Name, Label: label, Custom: true}
	switch {
	case f.Kind.IsValue():
		n.Kind = domain.NodeField
	case f.Kind.IsOwning() && f.Kind.IsAtomic():
		n.Kind = domain.NodeObject
	case f.Kind.IsOwning():
		n.Kind = domain.NodeSequence
	default:
		n.Kind = domain.NodeField
	}
	return n
}

// SpliceCustomFields returns layout with a synthetic part reference inserted after
// every customFields marker for each custom field of class that no sibling already
// references. Unchanged subtrees are shared with the input; applying it to its own
// result yields an equal tree.
func (r *Resolver) SpliceCustomFields(layout *domain.TemplateNode, class domain.ClassID) (*domain.TemplateNode, error) {
	fields, err := r.meta.Fields(class)
	if err != nil {
		return nil, err
	}
	var custom []domain.FieldDef
	for _, f := range fields {
		if f.Custom {
			custom = append(custom, f)
		}
	}
	if len(custom) == 0 {
		return layout, nil
	}
	out, _ := splice(layout, custom)
	return out, nil
}

func splice(n *domain.TemplateNode, custom []domain.FieldDef) (*domain.TemplateNode, bool) {
	if len(n.Children) == 0 {
		return n, false
	}
	changed := false
	children := make([]*domain.TemplateNode, 0, len(n.Children))
	for _, c := range n.Children {
		next := c
		// Object and sequence children describe another entity.
		if c.Kind != domain.NodeObject && c.Kind != domain.NodeSequence {
			var sub bool
			next, sub = splice(c, custom)
			changed = changed || sub
		}
		children = append(children, next)
		if c.Kind != domain.NodeCustomFields {
			continue
		}
		for _, f := range custom {
			if referenced(n.Children, f.Name) || referenced(children, f.Name) {
				continue
			}
			children = append(children, &domain.TemplateNode{
				Key:    c.Key + ":" + f.Name,
				Kind:   domain.NodePart,
				Part:   f.Name,
				Custom: true,
			})
			changed = true
		}
	}
	if !changed {
		return n, false
	}
	cp := *n
	cp.Children = children
	return &cp, true
}

func referenced(siblings []*domain.TemplateNode, field string) bool {
	for _, s := range siblings {
		if s.References(field) {
			return true
		}
	}
	return false
}

// IsA reports whether class is base or inherits from it.
func (r *Resolver) IsA(class, base domain.ClassID) bool {
	chain, err := r.chain(class)
	if err != nil {
		return false
	}
	for _, c := range chain {
		if c == base {
			return true
		}
	}
	return false
}
