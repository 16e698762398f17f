package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/detailtree/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Templates implements ports.TemplateSource using in-memory maps.
// Stored nodes are keyed copies; lookups hand out the canonical node.
type Templates struct {
	mu      sync.RWMutex
	layouts map[string]*domain.TemplateNode
	parts   map[string]*domain.TemplateNode
}

// NewTemplates creates an empty template source.
func NewTemplates() *Templates {
	return &Templates{
		layouts: make(map[string]*domain.TemplateNode),
		parts:   make(map[string]*domain.TemplateNode),
	}
}

// NewFromDocs creates a template source from definition documents.
func NewFromDocs(docs ...*domain.TemplateDoc) (*Templates, error) {
	t := NewTemplates()
	for _, d := range docs {
		if err := t.AddDoc(d); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// LoadTemplates parses a YAML list of definition documents.
func LoadTemplates(data []byte) (*Templates, error) {
	var docs []*domain.TemplateDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return NewFromDocs(docs...)
}

// AddDoc stores one definition, replacing any previous one with the same key.
func (t *Templates) AddDoc(d *domain.TemplateDoc) error {
	root, err := d.Root()
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if d.Kind == domain.DocPart {
		t.parts[d.Key()] = root
	} else {
		t.layouts[d.Key()] = root
	}
	return nil
}

// AddLayout stores a layout whose children are nodes.
func (t *Templates) AddLayout(class domain.ClassID, name string, nodes ...*domain.TemplateNode) error {
	return t.AddDoc(&domain.TemplateDoc{Kind: domain.DocLayout, Class: class, Name: name, Nodes: nodes})
}

// AddPart stores a part definition under {class}-Detail-{name}.
func (t *Templates) AddPart(class domain.ClassID, name string, nodes ...*domain.TemplateNode) error {
	return t.AddDoc(&domain.TemplateDoc{Kind: domain.DocPart, Class: class, Name: name, Nodes: nodes})
}

// LookupLayout returns the layout stored for exactly this class.
func (t *Templates) LookupLayout(class domain.ClassID, layoutType, name string) (*domain.TemplateNode, error) {
	key := domain.LayoutKey(class, layoutType, name)
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.layouts[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrLayoutNotFound)
	}
	return n, nil
}

// LookupPart returns the part stored under key.
func (t *Templates) LookupPart(key string) (*domain.TemplateNode, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.parts[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrPartNotFound)
	}
	return n, nil
}

// Unify merges a layout with a caller-supplied override.
func (t *Templates) Unify(base, override *domain.TemplateNode) *domain.TemplateNode {
	return domain.Unify(base, override)
}

// ListTemplates returns every layout and part key.
func (t *Templates) ListTemplates() ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.layouts)+len(t.parts))
	for k := range t.layouts {
		keys = append(keys, k)
	}
	for k := range t.parts {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
