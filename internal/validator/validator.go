// Package validator checks template definitions against the class metadata before
// any entity is shown.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/aretw0/detailtree/internal/runtime"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/aretw0/detailtree/pkg/schema"
)

type target struct {
	class  domain.ClassID
	layout string
}

// ValidateLayouts crawls the layouts reachable from the layout of class (through
// obj/seq nodes and parts) and reports unknown fields, fields used with the wrong
// node kind, missing layouts and parts, bad validator names and conditions that
// do not compile. Names in named are accepted as validators besides the built-in
// types.
func ValidateLayouts(templates ports.TemplateSource, meta ports.Metadata, class domain.ClassID, layout string, named schema.Schema) error {
	resolver := runtime.NewResolver(templates, meta)

	visited := make(map[target]bool)
	queue := []target{{class, layout}}

	var problems []string
	report := func(t target, format string, args ...any) {
		problems = append(problems, fmt.Sprintf("%s (%s): %s", t.class, layoutName(t.layout), fmt.Sprintf(format, args...)))
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true

		if current.layout != "" && current.layout != "default" && !hasLayout(templates, meta, current.class, current.layout) {
			report(current, "missing layout, falling back to default")
		}
		root, err := resolver.Resolve(current.class, current.layout)
		if err != nil {
			if errors.Is(err, domain.ErrLayoutNotFound) {
				report(current, "missing layout")
			} else {
				report(current, "%v", err)
			}
			continue
		}

		var visit func(n *domain.TemplateNode)
		visit = func(n *domain.TemplateNode) {
			if n.Condition != "" {
				if _, err := expr.Compile(n.Condition); err != nil {
					report(current, "node %q: condition %q: %v", n.Key, n.Condition, err)
				}
			}
			if _, ok := named[n.Validator]; n.Validator != "" && !ok {
				if _, err := schema.ParseType(n.Validator); err != nil {
					report(current, "node %q: %v", n.Key, err)
				}
			}

			switch n.Kind {
			case domain.NodePart:
				part, err := resolver.ResolvePart(current.class, n)
				if err != nil {
					report(current, "part %q: %v", n.Part, err)
				} else if part == nil {
					report(current, "missing part %q", n.Part)
				} else {
					for _, c := range part.Children {
						visit(c)
					}
				}
			case domain.NodeObject, domain.NodeSequence:
				f, err := meta.Field(current.class, n.Field)
				if err != nil {
					report(current, "node %q: unknown field %q", n.Key, n.Field)
					break
				}
				if n.Kind == domain.NodeObject && !f.Kind.IsAtomic() {
					report(current, "node %q: obj needs an atomic object field, %s is %s", n.Key, n.Field, f.Kind)
					break
				}
				if n.Kind == domain.NodeSequence && !f.Kind.IsVector() {
					report(current, "node %q: seq needs a vector field, %s is %s", n.Key, n.Field, f.Kind)
					break
				}
				targetClass := f.Target
				if n.Ghost != nil && n.Ghost.Class != "" {
					targetClass = n.Ghost.Class
				}
				if n.Ghost != nil {
					if _, err := meta.Field(targetClass, n.Ghost.Field); err != nil {
						report(current, "node %q: ghost field %q not in %s", n.Key, n.Ghost.Field, targetClass)
					}
				}
				next := target{targetClass, n.Layout}
				if !visited[next] {
					queue = append(queue, next)
				}
			case domain.NodeField:
				if n.Field != "" {
					if _, err := meta.Field(current.class, n.Field); err != nil {
						report(current, "node %q: unknown field %q", n.Key, n.Field)
					}
				}
			}

			for _, c := range n.Children {
				visit(c)
			}
		}
		visit(root)
	}

	if len(problems) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}

// hasLayout reports whether class or a superclass defines the named layout.
func hasLayout(templates ports.TemplateSource, meta ports.Metadata, class domain.ClassID, name string) bool {
	for c := class; c != ""; {
		if _, err := templates.LookupLayout(c, "detail", name); err == nil {
			return true
		}
		def, err := meta.Class(c)
		if err != nil {
			return false
		}
		c = def.Super
	}
	return false
}

func layoutName(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
