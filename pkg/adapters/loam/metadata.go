package loam

// DocMetadata is the frontmatter of a template document:
//
//	---
//	kind: layout
//	class: Entry
//	name: default
//	nodes:
//	  - {kind: slice, field: CitationForm}
//	  - {kind: seq, field: Senses, visibility: ifdata}
//	---
//	Free text describing the layout.
//
// Kind defaults to "layout", Type to "detail" and Name to the file name.
type DocMetadata struct {
	Kind  string `json:"kind" mapstructure:"kind"`
	Class string `json:"class" mapstructure:"class"`
	Type  string `json:"type,omitempty" mapstructure:"type"`
	Name  string `json:"name" mapstructure:"name"`
	// Nodes are decoded into domain.TemplateNode values with mapstructure.
	Nodes []any `json:"nodes" mapstructure:"nodes"`
}
