package memory

import (
	"fmt"
	"sync"

	"github.com/aretw0/detailtree/pkg/domain"
)

// Metadata implements ports.Metadata over a fixed set of class definitions plus
// fields declared at runtime. Safe for concurrent use.
type Metadata struct {
	mu      sync.RWMutex
	classes map[domain.ClassID]*domain.ClassDef
	order   []domain.ClassID
}

// NewMetadata validates the class set and builds the metadata. The universal base
// class is added when missing.
func NewMetadata(classes ...domain.ClassDef) (*Metadata, error) {
	m := &Metadata{classes: make(map[domain.ClassID]*domain.ClassDef)}
	m.add(domain.ClassDef{Name: domain.BaseClass, Abstract: true})
	for _, c := range classes {
		if c.Name == "" {
			return nil, fmt.Errorf("class without name")
		}
		if c.Name != domain.BaseClass && c.Super == "" {
			c.Super = domain.BaseClass
		}
		for i := range c.Fields {
			c.Fields[i].Owner = c.Name
		}
		m.add(c)
	}
	for _, c := range m.classes {
		if _, ok := m.classes[c.Super]; c.Super != "" && !ok {
			return nil, fmt.Errorf("class %s: superclass %s: %w", c.Name, c.Super, domain.ErrClassNotFound)
		}
		for _, f := range c.Fields {
			if f.Kind == domain.KindUnknown {
				return nil, fmt.Errorf("class %s: field %s has no kind", c.Name, f.Name)
			}
			if !f.Kind.IsValue() {
				if _, ok := m.classes[f.Target]; !ok {
					return nil, fmt.Errorf("class %s: field %s targets %s: %w", c.Name, f.Name, f.Target, domain.ErrClassNotFound)
				}
			}
		}
	}
	for _, id := range m.order {
		if err := m.checkCycle(id); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metadata) add(c domain.ClassDef) {
	if _, ok := m.classes[c.Name]; !ok {
		m.order = append(m.order, c.Name)
	}
	def := c
	def.Fields = append([]domain.FieldDef(nil), c.Fields...)
	m.classes[c.Name] = &def
}

func (m *Metadata) checkCycle(id domain.ClassID) error {
	seen := map[domain.ClassID]bool{}
	for c := id; c != ""; c = m.classes[c].Super {
		if seen[c] {
			return fmt.Errorf("class %s: inheritance cycle", id)
		}
		seen[c] = true
	}
	return nil
}

// Class returns the definition of a class.
func (m *Metadata) Class(class domain.ClassID) (domain.ClassDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[class]
	if !ok {
		return domain.ClassDef{}, fmt.Errorf("%s: %w", class, domain.ErrClassNotFound)
	}
	def := *c
	def.Fields = append([]domain.FieldDef(nil), c.Fields...)
	return def, nil
}

// Field returns a field of a class, searching superclasses.
func (m *Metadata) Field(class domain.ClassID, name string) (domain.FieldDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.classes[class]; !ok {
		return domain.FieldDef{}, fmt.Errorf("%s: %w", class, domain.ErrClassNotFound)
	}
	for c := class; c != ""; c = m.classes[c].Super {
		for _, f := range m.classes[c].Fields {
			if f.Name == name {
				return f, nil
			}
		}
	}
	return domain.FieldDef{}, fmt.Errorf("%s.%s: %w", class, name, domain.ErrFieldNotFound)
}

// Fields returns every field applicable to the class, inherited ones first.
func (m *Metadata) Fields(class domain.ClassID) ([]domain.FieldDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.classes[class]; !ok {
		return nil, fmt.Errorf("%s: %w", class, domain.ErrClassNotFound)
	}
	var chain []domain.ClassID
	for c := class; c != ""; c = m.classes[c].Super {
		chain = append(chain, c)
	}
	var out []domain.FieldDef
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, m.classes[chain[i]].Fields...)
	}
	return out, nil
}

// IsA reports whether class is base or inherits from it.
func (m *Metadata) IsA(class, base domain.ClassID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := class; c != ""; {
		if c == base {
			return true
		}
		def, ok := m.classes[c]
		if !ok {
			return false
		}
		c = def.Super
	}
	return false
}

// Classes lists class ids in declaration order.
func (m *Metadata) Classes() []domain.ClassID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ClassID(nil), m.order...)
}

// DeclareField adds a runtime-declared (custom) field to a class.
func (m *Metadata) DeclareField(class domain.ClassID, f domain.FieldDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[class]
	if !ok {
		return fmt.Errorf("%s: %w", class, domain.ErrClassNotFound)
	}
	for _, existing := range c.Fields {
		if existing.Name == f.Name {
			return fmt.Errorf("%s.%s already declared", class, f.Name)
		}
	}
	if !f.Kind.IsValue() {
		if _, ok := m.classes[f.Target]; !ok {
			return fmt.Errorf("field %s targets %s: %w", f.Name, f.Target, domain.ErrClassNotFound)
		}
	}
	f.Owner = class
	f.Custom = true
	c.Fields = append(c.Fields, f)
	return nil
}
