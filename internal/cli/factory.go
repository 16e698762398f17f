package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/detailtree"
	loamAdapter "github.com/aretw0/detailtree/pkg/adapters/loam"
	"github.com/aretw0/detailtree/pkg/adapters/memory"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/aretw0/loam"
)

// Sources are the entities and templates a command works on.
type Sources struct {
	Repo      *memory.Repository
	Templates ports.TemplateSource
	Name      string
}

// LoadSources reads the entity fixture and opens the template source.
func LoadSources(opts Options) (*Sources, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	repo, err := memory.LoadFixtureFile(opts.Data)
	if err != nil {
		return nil, fmt.Errorf("error loading data: %w", err)
	}
	tmpl, name, err := openTemplates(opts)
	if err != nil {
		return nil, err
	}
	return &Sources{Repo: repo, Templates: tmpl, Name: name}, nil
}

func openTemplates(opts Options) (ports.TemplateSource, string, error) {
	if opts.Templates != "" {
		data, err := os.ReadFile(opts.Templates)
		if err != nil {
			return nil, "", err
		}
		tmpl, err := memory.LoadTemplates(data)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", opts.Templates, err)
		}
		return tmpl, filepath.Base(opts.Templates), nil
	}

	absPath, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, "", fmt.Errorf("invalid path: %w", err)
	}
	lr, err := loam.Init(absPath, loam.WithStrict(true), loam.WithReadOnly(true))
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize loam: %w", err)
	}
	return loamAdapter.New(loam.NewTypedRepository[loamAdapter.DocMetadata](lr)), filepath.Base(absPath), nil
}

// newTree creates a tree over the sources with standard CLI conventions.
// Trees share the sources' repository, so extra options decide who subscribes to
// its changes.
func newTree(src *Sources, logger *slog.Logger, extra ...detailtree.Option) (*detailtree.Tree, error) {
	opts := []detailtree.Option{
		detailtree.WithTemplates(src.Templates),
		detailtree.WithLogger(logger),
		detailtree.WithValidators(src.Repo.Validators()),
	}
	opts = append(opts, extra...)
	tree, err := detailtree.New(src.Name, src.Repo, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing tree: %w", err)
	}
	return tree, nil
}

// determineRoot picks the requested entity, or the first root of the data.
func determineRoot(repo *memory.Repository, requested int64) (domain.EntityID, error) {
	if requested != 0 {
		id := domain.EntityID(requested)
		if !repo.Valid(id) {
			return 0, fmt.Errorf("%w: %d", domain.ErrEntityNotFound, requested)
		}
		return id, nil
	}
	roots := repo.Roots()
	if len(roots) == 0 {
		return 0, fmt.Errorf("the data has no root entity")
	}
	return roots[0], nil
}
