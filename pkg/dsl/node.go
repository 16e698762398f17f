package dsl

import "github.com/aretw0/detailtree/pkg/domain"

// container appends child nodes; it is shared by documents and nodes.
type container struct {
	children *[]*domain.TemplateNode
}

func (c container) add(n *domain.TemplateNode) *NodeBuilder {
	*c.children = append(*c.children, n)
	return &NodeBuilder{container: container{children: &n.Children}, node: n}
}

// Field adds a row bound to a field.
func (c container) Field(name string) *NodeBuilder {
	return c.add(&domain.TemplateNode{Kind: domain.NodeField, Field: name})
}

// Header adds a row with a label and no field, typically grouping children.
func (c container) Header(label string) *NodeBuilder {
	return c.add(&domain.TemplateNode{Kind: domain.NodeField, Label: label})
}

// Object descends into the object held by an atomic field.
func (c container) Object(field string) *NodeBuilder {
	return c.add(&domain.TemplateNode{Kind: domain.NodeObject, Field: field})
}

// Sequence descends into every element of a vector field.
func (c container) Sequence(field string) *NodeBuilder {
	return c.add(&domain.TemplateNode{Kind: domain.NodeSequence, Field: field})
}

// If adds children shown only while condition holds.
func (c container) If(condition string) *NodeBuilder {
	return c.add(&domain.TemplateNode{Kind: domain.NodeIf, Condition: condition})
}

// Choice adds a node that shows the first matching branch.
func (c container) Choice() *ChoiceBuilder {
	nb := c.add(&domain.TemplateNode{Kind: domain.NodeChoice})
	return &ChoiceBuilder{node: nb}
}

// PartRef references the part {class}-Detail-{name} of the current class.
func (c container) PartRef(name string) *NodeBuilder {
	return c.add(&domain.TemplateNode{Kind: domain.NodePart, Part: name})
}

// CustomFields marks where runtime-declared fields are inserted.
func (c container) CustomFields() *NodeBuilder {
	return c.add(&domain.TemplateNode{Kind: domain.NodeCustomFields})
}

// NodeBuilder provides a fluent API for configuring a template node.
type NodeBuilder struct {
	container
	node *domain.TemplateNode
}

// Key sets the stable identity of the node.
func (n *NodeBuilder) Key(key string) *NodeBuilder {
	n.node.Key = key
	return n
}

// Label sets the row label.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	n.node.Label = label
	return n
}

// Editor selects the editor kind instead of the one implied by the field.
func (n *NodeBuilder) Editor(kind string) *NodeBuilder {
	n.node.Editor = kind
	return n
}

// IfData shows the node only when its field holds data.
func (n *NodeBuilder) IfData() *NodeBuilder {
	n.node.Visibility = domain.VisibilityIfData
	return n
}

// Never hides the node unless hidden fields are shown.
func (n *NodeBuilder) Never() *NodeBuilder {
	n.node.Visibility = domain.VisibilityNever
	return n
}

// WS selects the writing system of a multistring field.
func (n *NodeBuilder) WS(ws string) *NodeBuilder {
	n.node.WS = ws
	return n
}

// Indent nests the node's rows one level deeper.
func (n *NodeBuilder) Indent() *NodeBuilder {
	n.node.Indent = true
	return n
}

// Ghost shows a placeholder for an empty owned field; field is the string field of
// the object created on first edit.
func (n *NodeBuilder) Ghost(field string) *NodeBuilder {
	n.node.Ghost = &domain.GhostSpec{Field: field}
	return n
}

// GhostSpec sets the full placeholder description.
func (n *NodeBuilder) GhostSpec(spec domain.GhostSpec) *NodeBuilder {
	n.node.Ghost = &spec
	return n
}

// Layout names the layout used for the objects an obj or seq node reaches.
func (n *NodeBuilder) Layout(name string) *NodeBuilder {
	n.node.Layout = name
	return n
}

// Expanded makes the row start expanded.
func (n *NodeBuilder) Expanded() *NodeBuilder {
	n.node.Expansion = domain.ExpansionExpanded
	return n
}

// Collapsed makes the row start collapsed.
func (n *NodeBuilder) Collapsed() *NodeBuilder {
	n.node.Expansion = domain.ExpansionCollapsed
	return n
}

// Weight sets the visual weight of the row.
func (n *NodeBuilder) Weight(w domain.Weight) *NodeBuilder {
	n.node.Weight = w
	return n
}

// Validator names the value type the field is checked against (see schema.ParseType).
func (n *NodeBuilder) Validator(typ string) *NodeBuilder {
	n.node.Validator = typ
	return n
}

// Build returns the underlying node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() *domain.TemplateNode {
	return n.node
}

// ChoiceBuilder adds the branches of a choice node.
type ChoiceBuilder struct {
	node *NodeBuilder
}

// When adds a branch taken when condition holds and no earlier branch was.
func (c *ChoiceBuilder) When(condition string) *NodeBuilder {
	return c.node.If(condition)
}

// Otherwise adds the branch taken when no other branch is.
func (c *ChoiceBuilder) Otherwise() *NodeBuilder {
	return c.node.If("")
}
