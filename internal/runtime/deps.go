package runtime

import "github.com/aretw0/detailtree/pkg/domain"

// FieldRef names one field of one entity.
type FieldRef struct {
	Entity domain.EntityID
	Field  string
}

// SequenceSite is a seq node built over a non-empty field: where its element rows
// live and how a new element would be laid out.
type SequenceSite struct {
	Node   *domain.TemplateNode
	Owner  domain.EntityID
	Key    domain.PathKey
	Indent int
}

// Deps records what a build read besides the rows it produced. A data change that
// touches none of it can be applied without rebuilding.
type Deps struct {
	// IfData holds the fields whose emptiness decided an "ifdata" node.
	IfData map[FieldRef]bool
	// Uses counts the obj and seq nodes built over each object field.
	Uses map[FieldRef]int
	// Sequences are the non-empty seq nodes built, by the key of the sequence.
	Sequences map[string]SequenceSite
}

func newDeps() Deps {
	return Deps{
		IfData:    make(map[FieldRef]bool),
		Uses:      make(map[FieldRef]int),
		Sequences: make(map[string]SequenceSite),
	}
}

// Merge adds the dependencies of a partial build.
func (d *Deps) Merge(o Deps) {
	if d.IfData == nil {
		*d = newDeps()
	}
	for k := range o.IfData {
		d.IfData[k] = true
	}
	for k, n := range o.Uses {
		d.Uses[k] += n
	}
	for k, s := range o.Sequences {
		d.Sequences[k] = s
	}
}
