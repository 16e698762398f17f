package runtime

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
)

// Conditions compiles and evaluates the boolean expressions of if/choice nodes.
//
// An expression sees the current entity through:
//
//	class            class name
//	id               entity id
//	is("Class")      class is or inherits from Class
//	has("Field")     field holds data
//	size("Field")    number of items in a vector field
//	str("Field")     string (or best multistring) value
//	num("Field")     integer value
//	flag("Field")    boolean value
//
// Compiled programs are cached by source; Conditions is safe for concurrent use.
type Conditions struct {
	mu       sync.Mutex
	programs map[string]*vm.Program
}

// NewConditions creates an empty condition cache.
func NewConditions() *Conditions {
	return &Conditions{programs: make(map[string]*vm.Program)}
}

func (c *Conditions) compile(src string) (*vm.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, ok := c.programs[src]; ok {
		return prg, nil
	}
	prg, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}
	c.programs[src] = prg
	return prg, nil
}

// Eval runs the condition against an entity. Compile errors and non-boolean results
// are configuration errors.
func (c *Conditions) Eval(src string, repo ports.Repository, res *Resolver, id domain.EntityID) (bool, error) {
	prg, err := c.compile(src)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", src, err)
	}
	out, err := expr.Run(prg, conditionEnv(repo, res, id))
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", src, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q: expected bool, got %T", src, out)
	}
	return b, nil
}

func conditionEnv(repo ports.Repository, res *Resolver, id domain.EntityID) map[string]any {
	class, _ := repo.ClassOf(id)
	field := func(name string) (domain.FieldDef, bool) {
		f, err := repo.Metadata().Field(class, name)
		return f, err == nil
	}
	return map[string]any{
		"class": string(class),
		"id":    int64(id),
		"is": func(base string) bool {
			return res.IsA(class, domain.ClassID(base))
		},
		"has": func(name string) bool {
			f, ok := field(name)
			if !ok {
				return false
			}
			empty, err := fieldEmpty(repo, id, f, "")
			return err == nil && !empty
		},
		"size": func(name string) int {
			n, _ := repo.VectorSize(id, name)
			return n
		},
		"str": func(name string) string {
			f, ok := field(name)
			if !ok {
				return ""
			}
			if f.Kind == domain.KindMultiString {
				s, _ := repo.MultiString(id, name, "")
				return s
			}
			s, _ := repo.String(id, name)
			return s
		},
		"num": func(name string) int {
			v, _ := repo.Value(id, name)
			switch n := v.(type) {
			case int64:
				return int(n)
			case int:
				return n
			}
			return 0
		},
		"flag": func(name string) bool {
			v, _ := repo.Value(id, name)
			b, _ := v.(bool)
			return b
		},
	}
}
