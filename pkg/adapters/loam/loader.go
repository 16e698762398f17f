package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/detailtree/pkg/adapters/memory"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"
)

// Loader adapts a Loam repository of template documents to ports.TemplateSource.
// Documents are parsed once into an in-memory index that Watch refreshes.
type Loader struct {
	Repo *loam.TypedRepository[DocMetadata]

	mu    sync.RWMutex
	index *memory.Templates
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[DocMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Load (re)reads every document of the repository. Lookups call it on first use.
func (l *Loader) Load(ctx context.Context) error {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loam list failed: %w", err)
	}

	index := memory.NewTemplates()
	seen := make(map[string]string)
	for _, doc := range docs {
		td, err := toTemplateDoc(doc.ID, doc.Data)
		if err != nil {
			return fmt.Errorf("template %s: %w", doc.ID, err)
		}
		key := td.Key()
		if existing, ok := seen[key]; ok {
			return fmt.Errorf("collision detected: template '%s' is defined in both '%s' and '%s'", key, existing, doc.ID)
		}
		seen[key] = doc.ID
		if err := index.AddDoc(td); err != nil {
			return fmt.Errorf("template %s: %w", doc.ID, err)
		}
	}

	l.mu.Lock()
	l.index = index
	l.mu.Unlock()
	return nil
}

func toTemplateDoc(docID string, meta DocMetadata) (*domain.TemplateDoc, error) {
	td := &domain.TemplateDoc{
		Kind:  meta.Kind,
		Class: domain.ClassID(meta.Class),
		Type:  meta.Type,
		Name:  meta.Name,
	}
	if td.Kind == "" {
		td.Kind = domain.DocLayout
	}
	if td.Name == "" {
		td.Name = filepath.Base(trimExtension(docID))
	}
	for i, raw := range meta.Nodes {
		var n domain.TemplateNode
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &n,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(raw); err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		td.Nodes = append(td.Nodes, &n)
	}
	return td, nil
}

func (l *Loader) templates() (*memory.Templates, error) {
	l.mu.RLock()
	index := l.index
	l.mu.RUnlock()
	if index != nil {
		return index, nil
	}
	if err := l.Load(context.Background()); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.index, nil
}

// LookupLayout implements ports.TemplateSource.
func (l *Loader) LookupLayout(class domain.ClassID, layoutType, name string) (*domain.TemplateNode, error) {
	index, err := l.templates()
	if err != nil {
		return nil, err
	}
	return index.LookupLayout(class, layoutType, name)
}

// LookupPart implements ports.TemplateSource.
func (l *Loader) LookupPart(key string) (*domain.TemplateNode, error) {
	index, err := l.templates()
	if err != nil {
		return nil, err
	}
	return index.LookupPart(key)
}

// Unify implements ports.TemplateSource.
func (l *Loader) Unify(base, override *domain.TemplateNode) *domain.TemplateNode {
	return domain.Unify(base, override)
}

// ListTemplates lists the lookup keys of every definition in the repository.
func (l *Loader) ListTemplates() ([]string, error) {
	index, err := l.templates()
	if err != nil {
		return nil, err
	}
	return index.ListTemplates()
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable. The index is reloaded before each signal; a
// reload failure keeps the previous index and is not signalled.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if err := l.Load(ctx); err != nil {
					continue
				}
				select {
				case ch <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
