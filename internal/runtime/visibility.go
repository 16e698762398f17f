package runtime

import (
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
)

// evaluate answers what n would produce for entity id without building anything.
//
// Leaf fields are always decidable and never answer Possible. Object and sequence
// nodes over empty fields answer Possible unless a ghost row or "ifdata" settles it.
func (s *session) evaluate(n *domain.TemplateNode, id domain.EntityID) domain.Presence {
	repo := s.e.repo
	if n == nil || !repo.Valid(id) || s.hidden(n) {
		return domain.Nothing
	}
	class, err := repo.ClassOf(id)
	if err != nil {
		return domain.Nothing
	}
	ifData := n.EffectiveVisibility() == domain.VisibilityIfData

	switch n.Kind {
	case domain.NodeLayout:
		return s.combine(n.Children, id)

	case domain.NodeIf:
		if ok, err := s.condition(n, id); err != nil || !ok {
			return domain.Nothing
		}
		return s.combine(n.Children, id)

	case domain.NodeChoice:
		alt, err := s.choose(n, id)
		if err != nil || alt == nil {
			return domain.Nothing
		}
		return s.combine(alt.Children, id)

	case domain.NodePart:
		p, err := s.part(class, n)
		if err != nil || p == nil {
			return domain.Nothing
		}
		return s.evaluate(p, id)

	case domain.NodeField:
		if !ifData {
			return domain.Something
		}
		if n.Field == "" {
			return s.combine(n.Children, id)
		}
		f, err := repo.Metadata().Field(class, n.Field)
		if err != nil {
			return domain.Nothing
		}
		s.dependsOnData(id, n.Field)
		if empty, err := fieldEmpty(repo, id, f, n.WS); err != nil || empty {
			return domain.Nothing
		}
		return domain.Something

	case domain.NodeObject:
		if ifData {
			s.dependsOnData(id, n.Field)
		}
		target, err := repo.Atomic(id, n.Field)
		if err != nil {
			return domain.Nothing
		}
		if !target.IsZero() && repo.Valid(target) {
			return domain.Something
		}
		return absent(n, ifData)

	case domain.NodeSequence:
		if ifData {
			s.dependsOnData(id, n.Field)
		}
		size, err := repo.VectorSize(id, n.Field)
		if err != nil {
			return domain.Nothing
		}
		if size > 0 {
			return domain.Something
		}
		return absent(n, ifData)
	}
	return domain.Nothing
}

// absent is the answer for an object or sequence node over an empty field.
func absent(n *domain.TemplateNode, ifData bool) domain.Presence {
	switch {
	case ifData:
		return domain.Nothing
	case n.Ghost != nil:
		return domain.Something
	default:
		return domain.Possible
	}
}

// combine evaluates siblings, stopping at the first Something. Possible is kept
// while scanning on, since a later sibling may still answer Something.
func (s *session) combine(nodes []*domain.TemplateNode, id domain.EntityID) domain.Presence {
	result := domain.Nothing
	for _, c := range nodes {
		switch s.evaluate(c, id) {
		case domain.Something:
			return domain.Something
		case domain.Possible:
			result = domain.Possible
		}
	}
	return result
}

// fieldEmpty reports whether a field holds no data. Integer, boolean and date
// fields always hold a value.
func fieldEmpty(repo ports.Repository, id domain.EntityID, f domain.FieldDef, ws string) (bool, error) {
	switch {
	case f.Kind == domain.KindString:
		v, err := repo.String(id, f.Name)
		return v == "", err
	case f.Kind == domain.KindMultiString:
		v, err := repo.MultiString(id, f.Name, ws)
		return v == "", err
	case f.Kind.IsValue():
		return false, nil
	case f.Kind.IsAtomic():
		v, err := repo.Atomic(id, f.Name)
		return v.IsZero(), err
	case f.Kind.IsVector():
		n, err := repo.VectorSize(id, f.Name)
		return n == 0, err
	}
	return true, nil
}
