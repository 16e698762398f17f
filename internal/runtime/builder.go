package runtime

import (
	"errors"
	"fmt"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/registry"
	"github.com/aretw0/detailtree/pkg/schema"
)

// build appends the rows n produces for entity id, depth-first, left to right.
// path is the key of the enclosing row context; indent the current nesting level.
func (s *session) build(out *[]*domain.Row, n *domain.TemplateNode, id domain.EntityID, path domain.PathKey, indent int) {
	if n == nil || s.hidden(n) {
		return
	}
	if err := s.enter(n, id); err != nil {
		if s.cancelled == nil {
			s.fail(out, n, id, indent, err)
		}
		return
	}
	defer s.leave()

	repo := s.e.repo
	if !repo.Valid(id) {
		// Deleted while we were building: nothing to show.
		return
	}
	class, err := repo.ClassOf(id)
	if err != nil {
		return
	}
	inner := indent
	if n.Indent {
		inner++
	}

	switch n.Kind {
	case domain.NodeLayout:
		for _, c := range n.Children {
			s.build(out, c, id, path, inner)
		}

	case domain.NodeCustomFields:

	case domain.NodeIf:
		ok, err := s.condition(n, id)
		if err != nil {
			s.fail(out, n, id, indent, err)
			return
		}
		if ok {
			for _, c := range n.Children {
				s.build(out, c, id, path, inner)
			}
		}

	case domain.NodeChoice:
		alt, err := s.choose(n, id)
		if err != nil {
			s.fail(out, n, id, indent, err)
			return
		}
		if alt != nil {
			for _, c := range alt.Children {
				s.build(out, c, id, path, inner)
			}
		}

	case domain.NodePart:
		p, err := s.part(class, n)
		if err != nil {
			s.fail(out, n, id, indent, err)
			return
		}
		if p != nil {
			s.build(out, p, id, path.Append(domain.NodeElem(n.Key)), indent)
		}

	case domain.NodeField:
		s.buildField(out, n, id, class, path, indent)

	case domain.NodeObject:
		s.buildObject(out, n, id, class, path, indent, inner)

	case domain.NodeSequence:
		s.buildSequence(out, n, id, class, path, indent, inner)

	default:
		s.fail(out, n, id, indent, fmt.Errorf("unknown node kind %q", n.Kind))
	}
}

func (s *session) buildField(out *[]*domain.Row, n *domain.TemplateNode, id domain.EntityID, class domain.ClassID, path domain.PathKey, indent int) {
	var f domain.FieldDef
	if n.Field != "" {
		var err error
		if f, err = s.e.repo.Metadata().Field(class, n.Field); err != nil {
			s.fail(out, n, id, indent, err)
			return
		}
	}
	if s.evaluate(n, id) != domain.Something {
		return
	}

	key := path.Append(domain.NodeElem(n.Key))
	row, reused := s.adopt(key)
	prev := row.Expansion

	label := n.Label
	if label == "" {
		label = f.Label
	}
	if label == "" {
		label = f.Name
	}
	editor := n.Editor
	if editor == "" {
		editor = registry.DefaultEditorKind(f.Kind)
	}

	row.Variant = domain.VariantReal
	row.Entity = id
	row.Field = n.Field
	row.Node = n
	row.Label = label
	row.WS = n.WS
	row.Indent = indent
	row.Key = key
	row.Weight = n.Weight
	row.Dummy = nil
	row.Ghost = nil
	row.Err = nil
	if err := s.e.loadValue(row, f); err != nil {
		s.discardRow(row, reused)
		s.fail(out, n, id, indent, err)
		return
	}
	if err := s.e.bindControl(row, editor); err != nil {
		s.discardRow(row, reused)
		s.fail(out, n, id, indent, err)
		return
	}

	row.Expansion = domain.Fixed
	if len(n.Children) > 0 {
		if !s.opts.PreserveExpansion {
			prev = domain.Fixed
		}
		row.Expansion = initialExpansion(s.combine(n.Children, id), reused, prev, autoExpand(n, s.e.autoExpand))
	}
	*out = append(*out, row)
	s.emitRow(row, reused)

	if row.Expansion == domain.Expanded {
		for _, c := range n.Children {
			s.build(out, c, id, key, indent+1)
		}
	}
}

// discardRow queues a reused row that ended up not being placed for disposal.
func (s *session) discardRow(r *domain.Row, reused bool) {
	if reused {
		s.discarded = append(s.discarded, r)
	}
}

// objectField checks that n.Field exists on class with an object signature.
func (s *session) objectField(n *domain.TemplateNode, class domain.ClassID, vector bool) (domain.FieldDef, error) {
	f, err := s.e.repo.Metadata().Field(class, n.Field)
	if err != nil {
		return f, err
	}
	if vector && !f.Kind.IsVector() {
		return f, fmt.Errorf("seq node on %s field %s", f.Kind, f.Name)
	}
	if !vector && !f.Kind.IsAtomic() {
		return f, fmt.Errorf("obj node on %s field %s", f.Kind, f.Name)
	}
	return f, nil
}

func (s *session) buildObject(out *[]*domain.Row, n *domain.TemplateNode, id domain.EntityID, class domain.ClassID, path domain.PathKey, indent, inner int) {
	f, err := s.objectField(n, class, false)
	if err != nil {
		s.fail(out, n, id, indent, err)
		return
	}
	s.deps.Uses[FieldRef{Entity: id, Field: n.Field}]++
	target, err := s.e.repo.Atomic(id, n.Field)
	if err != nil {
		return
	}
	if !target.IsZero() && s.e.repo.Valid(target) {
		s.buildElement(out, n, target, path.Append(domain.NodeElem(n.Key), domain.EntityElem(target)), inner)
		return
	}
	s.buildEmpty(out, n, id, f, path, inner)
}

func (s *session) buildSequence(out *[]*domain.Row, n *domain.TemplateNode, id domain.EntityID, class domain.ClassID, path domain.PathKey, indent, inner int) {
	f, err := s.objectField(n, class, true)
	if err != nil {
		s.fail(out, n, id, indent, err)
		return
	}
	s.deps.Uses[FieldRef{Entity: id, Field: n.Field}]++
	items, err := s.e.repo.Vector(id, n.Field)
	if err != nil {
		return
	}
	if len(items) == 0 {
		s.buildEmpty(out, n, id, f, path, inner)
		return
	}

	seqPath := path.Append(domain.NodeElem(n.Key))
	s.deps.Sequences[seqPath.String()] = SequenceSite{Node: n, Owner: id, Key: seqPath, Indent: inner}
	lazy := s.pager.Lazy(len(items))
	for i, item := range items {
		if s.cancelled != nil {
			return
		}
		if !s.e.repo.Valid(item) {
			continue
		}
		elemPath := seqPath.Append(domain.EntityElem(item))
		if lazy && !s.pager.MustBeReal(elemPath.Entities()) {
			*out = append(*out, s.dummy(n, id, i, item, elemPath, inner))
			continue
		}
		s.buildElement(out, n, item, elemPath, inner)
	}
}

// buildEmpty handles an object or sequence node over an empty field: one ghost row
// when the node has a ghost descriptor and is not "ifdata", else nothing.
func (s *session) buildEmpty(out *[]*domain.Row, n *domain.TemplateNode, owner domain.EntityID, f domain.FieldDef, path domain.PathKey, indent int) {
	if n.EffectiveVisibility() == domain.VisibilityIfData {
		s.dependsOnData(owner, f.Name)
		return
	}
	if n.Ghost == nil {
		return
	}
	key := path.Append(domain.NodeElem(n.Key))
	row, reused := s.adopt(key)
	if err := s.e.ghosts.MakePlaceholder(row, owner, f, n); err != nil {
		s.discardRow(row, reused)
		s.fail(out, n, owner, indent, err)
		return
	}
	row.Key = key
	row.Indent = indent
	row.Weight = n.Weight
	row.Expansion = domain.Fixed
	if err := s.e.bindControl(row, registry.EditorGhost); err != nil {
		s.discardRow(row, reused)
		s.fail(out, n, owner, indent, err)
		return
	}
	*out = append(*out, row)
	s.emitRow(row, reused)
}

// buildElement builds the rows of one object reached through an obj or seq node:
// the node's inline children when it has any, else the object's own layout. A
// configuration error anywhere inside replaces the element's rows by one error row.
func (s *session) buildElement(out *[]*domain.Row, n *domain.TemplateNode, elem domain.EntityID, elemPath domain.PathKey, indent int) {
	for _, seen := range elemPath.Parent().Entities() {
		if seen == elem {
			// Reference cycle: the object is already shown above.
			return
		}
	}
	start, errsBefore := len(*out), len(s.errs)
	defer s.abandon(out, start, errsBefore, n, elem, indent)

	if len(n.Children) > 0 {
		for _, c := range n.Children {
			s.build(out, c, elem, elemPath, indent)
		}
		return
	}
	class, err := s.e.repo.ClassOf(elem)
	if err != nil {
		return
	}
	layout, err := s.layout(class, n.Layout)
	if err != nil {
		s.fail(out, n, elem, indent, err)
		return
	}
	s.build(out, layout, elem, elemPath, indent)
}

func (s *session) dummy(n *domain.TemplateNode, owner domain.EntityID, index int, elem domain.EntityID, key domain.PathKey, indent int) *domain.Row {
	s.created++
	r := &domain.Row{
		Variant:   domain.VariantDummy,
		Entity:    elem,
		Field:     n.Field,
		Node:      n,
		Label:     n.Label,
		Indent:    indent,
		Key:       key,
		Expansion: domain.Fixed,
		Weight:    n.Weight,
		Dummy: &domain.DummyDescriptor{
			Owner:   owner,
			Field:   n.Field,
			Index:   index,
			Element: elem,
			Node:    n,
			Layout:  n.Layout,
		},
	}
	s.emitRow(r, false)
	return r
}

// loadValue reads the field value shown by a row and runs the node's validator.
// Validator failures are data errors on the row; an unknown validator is a
// configuration error.
func (e *Engine) loadValue(row *domain.Row, f domain.FieldDef) error {
	row.Value = nil
	row.DataErr = nil
	if row.Field == "" {
		return nil
	}
	v, err := e.readField(row.Entity, f, row.WS)
	if err != nil {
		if errors.Is(err, domain.ErrEntityNotFound) {
			return nil
		}
		return err
	}
	row.Value = v
	if row.Node == nil || row.Node.Validator == "" {
		return nil
	}
	typ, err := e.validator(row.Node.Validator)
	if err != nil {
		return err
	}
	if verr := typ.Validate(v); verr != nil {
		row.DataErr = &schema.ValidationError{Key: row.Field, Reason: verr.Error(), Value: v}
	}
	return nil
}

func (e *Engine) readField(id domain.EntityID, f domain.FieldDef, ws string) (any, error) {
	switch {
	case f.Kind == domain.KindString:
		return e.repo.String(id, f.Name)
	case f.Kind == domain.KindMultiString:
		return e.repo.MultiString(id, f.Name, ws)
	case f.Kind.IsValue():
		return e.repo.Value(id, f.Name)
	case f.Kind.IsAtomic():
		return e.repo.Atomic(id, f.Name)
	case f.Kind.IsVector():
		return e.repo.Vector(id, f.Name)
	}
	return nil, nil
}

// bindControl keeps the control of a reused row when the editor kind is unchanged,
// otherwise disposes it and creates a new one.
func (e *Engine) bindControl(row *domain.Row, editor string) error {
	if row.Control != nil && row.Editor == editor {
		row.Control.SetValue(row.Value)
		return nil
	}
	row.Dispose()
	ctrl, err := e.editors.Create(editor, row)
	if err != nil {
		return err
	}
	row.Editor = editor
	row.Control = ctrl
	return nil
}
