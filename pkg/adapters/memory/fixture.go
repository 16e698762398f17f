package memory

import (
	"fmt"
	"os"
	"sort"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

type fixtureField struct {
	Name   string `mapstructure:"name"`
	Kind   string `mapstructure:"kind"`
	Target string `mapstructure:"target"`
	Custom bool   `mapstructure:"custom"`
	Label  string `mapstructure:"label"`
}

type fixtureClass struct {
	Name     string         `mapstructure:"name"`
	Super    string         `mapstructure:"super"`
	Abstract bool           `mapstructure:"abstract"`
	Fields   []fixtureField `mapstructure:"fields"`
}

type fixtureEntity struct {
	ID     any            `mapstructure:"id"`
	Class  string         `mapstructure:"class"`
	Values map[string]any `mapstructure:"values"`
}

type fixture struct {
	Classes    []fixtureClass    `mapstructure:"classes"`
	Validators map[string]string `mapstructure:"validators"`
	Entities   []fixtureEntity   `mapstructure:"entities"`
}

type pendingRef struct {
	owner   domain.EntityID
	field   domain.FieldDef
	targets []any
}

// LoadFixture builds a repository from a YAML document of the form:
//
//	classes:
//	  - name: Entry
//	    fields:
//	      - {name: CitationForm, kind: string}
//	      - {name: Senses, kind: owning-sequence, target: Sense}
//	validators:
//	  headword: "pattern:^[a-z]+$"
//	entities:
//	  - id: 1
//	    class: Entry
//	    values:
//	      CitationForm: run
//	      Senses:
//	        - class: Sense
//	          values: {Gloss: {en: to move fast}}
//
// Top-level entities become roots. Owned objects nest under their owning field;
// reference fields hold entity ids and are resolved after every entity exists.
// Validators name type expressions that layouts can then refer to by name.
func LoadFixture(data []byte) (*Repository, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	var fx fixture
	if err := mapstructure.Decode(raw, &fx); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}

	classes := make([]domain.ClassDef, 0, len(fx.Classes))
	for _, c := range fx.Classes {
		def := domain.ClassDef{Name: domain.ClassID(c.Name), Super: domain.ClassID(c.Super), Abstract: c.Abstract}
		for _, f := range c.Fields {
			kind, err := domain.ParseFieldKind(f.Kind)
			if err != nil {
				return nil, fmt.Errorf("class %s field %s: %w", c.Name, f.Name, err)
			}
			def.Fields = append(def.Fields, domain.FieldDef{
				Name: f.Name, Kind: kind, Target: domain.ClassID(f.Target), Custom: f.Custom, Label: f.Label,
			})
		}
		classes = append(classes, def)
	}
	meta, err := NewMetadata(classes...)
	if err != nil {
		return nil, err
	}
	repo := NewRepository(meta)
	if len(fx.Validators) > 0 {
		if repo.validators, err = schema.ParseTypeMap(fx.Validators); err != nil {
			return nil, fmt.Errorf("fixture validators: %w", err)
		}
	}

	maxID, err := maxFixtureID(fx.Entities)
	if err != nil {
		return nil, err
	}
	repo.nextID = maxID + 1

	uow := repo.begin("load fixture")
	var refs []pendingRef
	for _, e := range fx.Entities {
		id, err := fixtureID(e.ID)
		if err != nil {
			return nil, err
		}
		id, err = repo.newRoot(id, domain.ClassID(e.Class))
		if err != nil {
			return nil, err
		}
		if err := loadValues(uow, id, e.Values, &refs); err != nil {
			return nil, err
		}
	}
	for _, p := range refs {
		ids := make([]domain.EntityID, 0, len(p.targets))
		for _, t := range p.targets {
			id, err := domain.ToEntityID(t)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", p.owner, p.field.Name, err)
			}
			ids = append(ids, id)
		}
		if p.field.Kind.IsAtomic() {
			err = uow.SetAtomic(p.owner, p.field.Name, ids[0])
		} else {
			err = uow.SetReferences(p.owner, p.field.Name, ids)
		}
		if err != nil {
			return nil, err
		}
	}
	uow.done = true
	return repo, nil
}

// LoadFixtureFile reads and loads a fixture file.
func LoadFixtureFile(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	repo, err := LoadFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return repo, nil
}

func fixtureID(v any) (domain.EntityID, error) {
	if v == nil {
		return domain.NoEntity, nil
	}
	return domain.ToEntityID(v)
}

func maxFixtureID(entities []fixtureEntity) (domain.EntityID, error) {
	var hi domain.EntityID
	var visit func(e fixtureEntity) error
	visit = func(e fixtureEntity) error {
		id, err := fixtureID(e.ID)
		if err != nil {
			return err
		}
		if id > hi {
			hi = id
		}
		for _, v := range e.Values {
			for _, nested := range nestedEntities(v) {
				if err := visit(nested); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, e := range entities {
		if err := visit(e); err != nil {
			return 0, err
		}
	}
	return hi, nil
}

// nestedEntities returns the entity maps held by a fixture value, if any.
func nestedEntities(v any) []fixtureEntity {
	var items []any
	switch tv := v.(type) {
	case map[string]any:
		items = []any{tv}
	case []any:
		items = tv
	}
	var out []fixtureEntity
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, isEntity := m["class"]; !isEntity {
			continue
		}
		var e fixtureEntity
		if mapstructure.Decode(m, &e) == nil {
			out = append(out, e)
		}
	}
	return out
}

func loadValues(uow *unitOfWork, id domain.EntityID, values map[string]any, refs *[]pendingRef) error {
	class, err := uow.repo.ClassOf(id)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := values[name]
		f, err := uow.repo.meta.Field(class, name)
		if err != nil {
			return err
		}
		switch {
		case f.Kind == domain.KindString:
			err = uow.SetString(id, name, fmt.Sprint(v))
		case f.Kind == domain.KindMultiString:
			alts, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("%s.%s: multistring values are maps of writing system to text", class, name)
			}
			for ws, s := range alts {
				if err = uow.SetMultiString(id, name, ws, fmt.Sprint(s)); err != nil {
					break
				}
			}
		case f.Kind.IsValue():
			err = uow.SetValue(id, name, v)
		case f.Kind.IsOwning():
			nested := nestedEntities(v)
			if len(nested) == 0 && v != nil {
				return fmt.Errorf("%s.%s: owned values need a class", class, name)
			}
			for _, e := range nested {
				childID, idErr := fixtureID(e.ID)
				if idErr != nil {
					return idErr
				}
				childID, err = uow.create(childID, domain.ClassID(e.Class), id, name, -1)
				if err != nil {
					break
				}
				if err = loadValues(uow, childID, e.Values, refs); err != nil {
					break
				}
			}
		default:
			targets, ok := v.([]any)
			if !ok {
				targets = []any{v}
			}
			if f.Kind.IsAtomic() && len(targets) != 1 {
				return fmt.Errorf("%s.%s: atomic reference takes one id", class, name)
			}
			*refs = append(*refs, pendingRef{owner: id, field: f, targets: targets})
		}
		if err != nil {
			return fmt.Errorf("%s.%s: %w", class, name, err)
		}
	}
	return nil
}
