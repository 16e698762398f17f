package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeKind defines what a template node contributes to the row list.
type NodeKind string

const (
	// NodeLayout is the root container of a layout; it produces no row itself.
	NodeLayout NodeKind = "layout"
	// NodeField produces one row bound to a field (or a header row when Field is empty).
	NodeField NodeKind = "slice"
	// NodeObject descends into the object held by an atomic field.
	NodeObject NodeKind = "obj"
	// NodeSequence descends into every element of a collection or sequence field.
	NodeSequence NodeKind = "seq"
	// NodeIf descends into its children when Condition holds.
	NodeIf NodeKind = "if"
	// NodeChoice descends into the first NodeIf child whose Condition holds.
	// A child with an empty condition acts as the otherwise branch.
	NodeChoice NodeKind = "choice"
	// NodePart references a part defined elsewhere ({class}-Detail-{part}).
	NodePart NodeKind = "part"
	// NodeCustomFields marks where runtime-declared fields are spliced in.
	NodeCustomFields NodeKind = "customFields"
)

// Visibility controls when a node produces rows.
type Visibility string

const (
	VisibilityAlways Visibility = "always"
	VisibilityIfData Visibility = "ifdata"
	VisibilityNever  Visibility = "never"
)

// Expansion is the auto-expand policy of a node with children.
type Expansion string

const (
	ExpansionDefault   Expansion = ""
	ExpansionExpanded  Expansion = "expanded"
	ExpansionCollapsed Expansion = "collapsed"
)

// Weight is the visual weight of a row (how strongly it separates from its neighbours).
type Weight string

const (
	WeightNormal Weight = "normal"
	WeightHeavy  Weight = "heavy"
	WeightLight  Weight = "light"
)

// GhostSpec describes the placeholder shown for an empty owned field.
type GhostSpec struct {
	// Field is the string field of the not-yet-created target that the ghost edits.
	Field string `json:"field" yaml:"field" mapstructure:"field"`
	// Class overrides the target class inferred from the field signature.
	Class ClassID `json:"class,omitempty" yaml:"class,omitempty" mapstructure:"class"`
	// WS selects the writing system of Field when it is a multistring.
	WS string `json:"ws,omitempty" yaml:"ws,omitempty" mapstructure:"ws"`
	// Initializer names a post-creation hook run inside the creation transaction.
	Initializer string `json:"initializer,omitempty" yaml:"initializer,omitempty" mapstructure:"initializer"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
}

// TemplateNode is one node of a layout or part definition.
//
// Nodes handed out by a template source are canonical and must be treated as
// immutable; anything that needs a variant works on a Clone.
type TemplateNode struct {
	// Key is the stable identity of the node, used in PathKeys.
	Key        string          `json:"key,omitempty" yaml:"key,omitempty" mapstructure:"key"`
	Kind       NodeKind        `json:"kind" yaml:"kind" mapstructure:"kind"`
	Field      string          `json:"field,omitempty" yaml:"field,omitempty" mapstructure:"field"`
	Label      string          `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Editor     string          `json:"editor,omitempty" yaml:"editor,omitempty" mapstructure:"editor"`
	Visibility Visibility      `json:"visibility,omitempty" yaml:"visibility,omitempty" mapstructure:"visibility"`
	WS         string          `json:"ws,omitempty" yaml:"ws,omitempty" mapstructure:"ws"`
	Indent     bool            `json:"indent,omitempty" yaml:"indent,omitempty" mapstructure:"indent"`
	Ghost      *GhostSpec      `json:"ghost,omitempty" yaml:"ghost,omitempty" mapstructure:"ghost"`
	Layout     string          `json:"layout,omitempty" yaml:"layout,omitempty" mapstructure:"layout"`
	Part       string          `json:"part,omitempty" yaml:"part,omitempty" mapstructure:"part"`
	Condition  string          `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`
	Expansion  Expansion       `json:"expansion,omitempty" yaml:"expansion,omitempty" mapstructure:"expansion"`
	Weight     Weight          `json:"weight,omitempty" yaml:"weight,omitempty" mapstructure:"weight"`
	Validator  string          `json:"validator,omitempty" yaml:"validator,omitempty" mapstructure:"validator"`
	Custom     bool            `json:"custom,omitempty" yaml:"custom,omitempty" mapstructure:"custom"`
	Children   []*TemplateNode `json:"children,omitempty" yaml:"children,omitempty" mapstructure:"children"`
}

// EffectiveVisibility treats an unset visibility as "always".
func (n *TemplateNode) EffectiveVisibility() Visibility {
	if n.Visibility == "" {
		return VisibilityAlways
	}
	return n.Visibility
}

// Clone returns a deep copy of the node.
func (n *TemplateNode) Clone() *TemplateNode {
	if n == nil {
		return nil
	}
	c := *n
	if n.Ghost != nil {
		g := *n.Ghost
		c.Ghost = &g
	}
	if n.Children != nil {
		c.Children = make([]*TemplateNode, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Walk visits the node and its descendants depth-first. Returning false from fn
// skips the descendants of that node.
func (n *TemplateNode) Walk(fn func(*TemplateNode) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// References reports whether the node names the given field, either directly or
// through a part of the same name.
func (n *TemplateNode) References(field string) bool {
	return n.Field == field || (n.Kind == NodePart && n.Part == field)
}

// AssignKeys gives every node without a key a stable one derived from the source key
// and its child index path (e.g. "LexEntry.detail.default#0.2").
func AssignKeys(root *TemplateNode, sourceKey string) {
	sourceKey = strings.ReplaceAll(sourceKey, keySeparator, "_")
	var visit func(n *TemplateNode, path string)
	visit = func(n *TemplateNode, path string) {
		if n.Key == "" {
			n.Key = sourceKey + "#" + path
		} else {
			n.Key = strings.ReplaceAll(n.Key, keySeparator, "_")
		}
		for i, c := range n.Children {
			p := strconv.Itoa(i)
			if path != "" {
				p = path + "." + p
			}
			visit(c, p)
		}
	}
	visit(root, "")
}

// Unify merges a caller-supplied override into a base template: every attribute set on
// the override wins, and override children, when present, replace the base children.
// Neither argument is modified; the base key and kind are kept.
func Unify(base, override *TemplateNode) *TemplateNode {
	if base == nil {
		return override.Clone()
	}
	out := base.Clone()
	if override == nil {
		return out
	}
	if override.Field != "" && out.Field == "" {
		out.Field = override.Field
	}
	if override.Label != "" {
		out.Label = override.Label
	}
	if override.Editor != "" {
		out.Editor = override.Editor
	}
	if override.Visibility != "" {
		out.Visibility = override.Visibility
	}
	if override.WS != "" {
		out.WS = override.WS
	}
	if override.Indent {
		out.Indent = true
	}
	if override.Ghost != nil {
		g := *override.Ghost
		out.Ghost = &g
	}
	if override.Layout != "" {
		out.Layout = override.Layout
	}
	if override.Expansion != "" {
		out.Expansion = override.Expansion
	}
	if override.Weight != "" {
		out.Weight = override.Weight
	}
	if override.Validator != "" {
		out.Validator = override.Validator
	}
	if len(override.Children) > 0 {
		out.Children = make([]*TemplateNode, len(override.Children))
		for i, c := range override.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// LayoutKey is the lookup key of a layout definition.
func LayoutKey(class ClassID, layoutType, name string) string {
	return string(class) + "." + layoutType + "." + name
}

// PartKey is the lookup key of a part definition ({class}-Detail-{part}).
func PartKey(class ClassID, part string) string {
	return string(class) + "-Detail-" + part
}

// Definition kinds of a TemplateDoc.
const (
	DocLayout = "layout"
	DocPart   = "part"
)

// TemplateDoc is the stored form of one layout or part definition.
type TemplateDoc struct {
	Kind  string          `json:"kind" yaml:"kind" mapstructure:"kind"`
	Class ClassID         `json:"class" yaml:"class" mapstructure:"class"`
	Type  string          `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Name  string          `json:"name" yaml:"name" mapstructure:"name"`
	Nodes []*TemplateNode `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
}

// Key returns the lookup key of the definition.
func (d *TemplateDoc) Key() string {
	if d.Kind == DocPart {
		return PartKey(d.Class, d.Name)
	}
	t := d.Type
	if t == "" {
		t = "detail"
	}
	return LayoutKey(d.Class, t, d.Name)
}

// Root returns the keyed template tree of the definition. A layout is wrapped in a
// NodeLayout container; a single-node part is returned as is.
func (d *TemplateDoc) Root() (*TemplateNode, error) {
	if d.Class == "" || d.Name == "" {
		return nil, fmt.Errorf("template definition needs class and name (got %q, %q)", d.Class, d.Name)
	}
	var root *TemplateNode
	switch {
	case d.Kind == DocPart && len(d.Nodes) == 1:
		root = d.Nodes[0].Clone()
	case d.Kind == DocPart || d.Kind == DocLayout || d.Kind == "":
		root = &TemplateNode{Kind: NodeLayout}
		for _, n := range d.Nodes {
			root.Children = append(root.Children, n.Clone())
		}
	default:
		return nil, fmt.Errorf("unknown template definition kind %q", d.Kind)
	}
	if err := root.Check(); err != nil {
		return nil, fmt.Errorf("%s: %w", d.Key(), err)
	}
	AssignKeys(root, d.Key())
	return root, nil
}

// Check reports missing mandatory attributes in the tree.
func (n *TemplateNode) Check() error {
	var err error
	n.Walk(func(c *TemplateNode) bool {
		if err != nil {
			return false
		}
		switch c.Kind {
		case NodeLayout, NodeField, NodeIf, NodeChoice, NodeCustomFields:
		case NodeObject, NodeSequence:
			if c.Field == "" {
				err = fmt.Errorf("%s node without field", c.Kind)
			}
		case NodePart:
			if c.Part == "" {
				err = fmt.Errorf("part node without part name")
			}
		default:
			err = fmt.Errorf("unknown node kind %q", c.Kind)
		}
		if c.Kind == NodeChoice {
			for _, alt := range c.Children {
				if alt.Kind != NodeIf {
					err = fmt.Errorf("choice children must be if nodes, got %q", alt.Kind)
				}
			}
		}
		return true
	})
	return err
}
