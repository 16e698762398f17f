package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/detailtree/pkg/domain"
)

// GraphOverlay contains view state to visualize on the graph.
type GraphOverlay struct {
	// Produced lists the keys of template nodes that produced at least one row.
	Produced []string
	// Current is the key of the node of the selected row.
	Current string
}

// GenerateMermaid produces a Mermaid flowchart of a layout tree.
// It applies semantic styling:
// - Layout root: ((Circle))
// - obj / seq: [[Subroutine]]
// - if / choice: {Rhombus}
// - part / customFields: {{Hexagon}}
// - Default (slice): [Rectangle]
// Conditions label the edges into the nodes they guard; nodes shown only with data
// or never are drawn with a dotted edge.
func GenerateMermaid(root *domain.TemplateNode, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if root == nil {
		return sb.String()
	}

	var visit func(n *domain.TemplateNode)
	visit = func(n *domain.TemplateNode) {
		id := sanitizeMermaidID(n.Key)
		opener, closer := shape(n.Kind)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, escape(caption(n)), closer)
		for _, c := range n.Children {
			fmt.Fprintf(&sb, "    %s %s %s\n", id, edge(n, c), sanitizeMermaidID(c.Key))
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(root)

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef produced fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, key := range overlay.Produced {
			safeID := sanitizeMermaidID(key)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s produced;\n", safeID)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}
	return sb.String()
}

func shape(kind domain.NodeKind) (string, string) {
	switch kind {
	case domain.NodeLayout:
		return "((", "))"
	case domain.NodeObject, domain.NodeSequence:
		return "[[", "]]"
	case domain.NodeIf, domain.NodeChoice:
		return "{", "}"
	case domain.NodePart, domain.NodeCustomFields:
		return "{{", "}}"
	default:
		return "[", "]"
	}
}

func caption(n *domain.TemplateNode) string {
	switch n.Kind {
	case domain.NodeLayout:
		return "layout"
	case domain.NodeObject, domain.NodeSequence:
		s := string(n.Kind) + " " + n.Field
		if n.Layout != "" {
			s += " (" + n.Layout + ")"
		}
		return s
	case domain.NodeIf:
		if n.Condition == "" {
			return "otherwise"
		}
		return "if"
	case domain.NodeChoice:
		return "choice"
	case domain.NodePart:
		return "part " + n.Part
	case domain.NodeCustomFields:
		return "custom fields"
	}
	label := n.Label
	if label == "" {
		label = n.Field
	}
	if n.WS != "" {
		label += " [" + n.WS + "]"
	}
	return label
}

func edge(parent, child *domain.TemplateNode) string {
	dotted := child.EffectiveVisibility() != domain.VisibilityAlways
	if child.Kind == domain.NodeIf && child.Condition != "" {
		cond := escape(child.Condition)
		if dotted {
			return fmt.Sprintf("-. \"%s\" .->", cond)
		}
		return fmt.Sprintf("-- \"%s\" -->", cond)
	}
	if dotted {
		return fmt.Sprintf("-. %s .->", child.EffectiveVisibility())
	}
	return "-->"
}

// escape replaces double quotes, which end a Mermaid label.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "#", "_", "|", "_", ":", "_", " ", "_")
	return r.Replace(id)
}
