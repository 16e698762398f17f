package domain

// Presence is the dry-run answer to "would this template produce rows?".
type Presence uint8

const (
	// Nothing: no rows now, and none until the template or visibility changes.
	Nothing Presence = iota
	// Possible: empty now, but structurally able to hold data later.
	Possible
	// Something: at least one row would be produced.
	Something
)

func (p Presence) String() string {
	switch p {
	case Possible:
		return "possible"
	case Something:
		return "something"
	default:
		return "nothing"
	}
}

// ExpansionState is the expand/collapse state of a row.
type ExpansionState uint8

const (
	// Fixed rows have no children and cannot be toggled.
	Fixed ExpansionState = iota
	Collapsed
	// CollapsedEmpty rows are empty now but may gain children; a later rebuild promotes
	// them once data arrives.
	CollapsedEmpty
	Expanded
)

func (s ExpansionState) String() string {
	switch s {
	case Collapsed:
		return "collapsed"
	case CollapsedEmpty:
		return "collapsed-empty"
	case Expanded:
		return "expanded"
	default:
		return "fixed"
	}
}

// Variant tags what kind of row a Row is.
type Variant uint8

const (
	// VariantReal is a row bound to an existing field of an existing entity.
	VariantReal Variant = iota
	// VariantDummy stands in for a not-yet-materialized collection element.
	VariantDummy
	// VariantGhost stands in for an owned object that does not exist yet.
	VariantGhost
	// VariantError replaces a subtree whose template could not be applied.
	VariantError
)

func (v Variant) String() string {
	switch v {
	case VariantDummy:
		return "dummy"
	case VariantGhost:
		return "ghost"
	case VariantError:
		return "error"
	default:
		return "real"
	}
}

// Control is the opaque editor bound into a row.
type Control interface {
	PreferredHeight() int
	Focused() bool
	SetValue(v any)
	Dispose()
}

// DummyDescriptor holds what is needed to materialize a lazily paged element.
type DummyDescriptor struct {
	Owner   EntityID
	Field   string
	Index   int
	Element EntityID
	Node    *TemplateNode
	Layout  string
}

// GhostDescriptor holds what is needed to create the object a ghost row stands for.
type GhostDescriptor struct {
	Owner       EntityID
	Field       string
	FieldKind   FieldKind
	TargetClass ClassID
	TargetField string
	WS          string
	Initializer string
}

// Row is one line of the detail tree ("slice").
type Row struct {
	Variant   Variant
	Entity    EntityID
	Field     string
	Node      *TemplateNode
	Label     string
	Editor    string
	WS        string
	Indent    int
	Key       PathKey
	Expansion ExpansionState
	Weight    Weight
	Control   Control
	Value     any

	// DataErr is a validation failure shown inline on the row.
	DataErr error
	// Err is the configuration error an error row stands for.
	Err error

	Dummy *DummyDescriptor
	Ghost *GhostDescriptor
}

// HasChildTemplate reports whether the row carries nested child template nodes.
func (r *Row) HasChildTemplate() bool {
	return r.Variant == VariantReal && r.Node != nil && len(r.Node.Children) > 0
}

// Reusable reports whether the row has enough identity to be recycled by a rebuild.
func (r *Row) Reusable() bool {
	return !r.Key.IsZero() && (r.Variant == VariantReal || r.Variant == VariantGhost)
}

// Dispose releases the bound control.
func (r *Row) Dispose() {
	if r.Control != nil {
		r.Control.Dispose()
		r.Control = nil
	}
}

// SubtreeEnd returns the index just past the rows nested under rows[i]: every following
// row with a strictly greater indent, up to the next same-or-lower-indent row.
func SubtreeEnd(rows []*Row, i int) int {
	end := i + 1
	for end < len(rows) && rows[end].Indent > rows[i].Indent {
		end++
	}
	return end
}

// Prefs are the persisted per-view preferences read at rebuild time.
type Prefs struct {
	// ShowHiddenLevel > 0 shows fields whose visibility is "never".
	ShowHiddenLevel int `json:"show_hidden_level" yaml:"show_hidden_level"`
	LabelWidth      int `json:"label_width" yaml:"label_width"`
}
