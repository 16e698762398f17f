package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/detailtree/internal/presentation/graph"
	"github.com/aretw0/detailtree/internal/runtime"
	"github.com/aretw0/detailtree/pkg/domain"
)

// RenderLayout prints the Mermaid graph of the layout of class, with its custom
// fields spliced in. An empty class means the class of the root entity. With
// overlay set, the nodes that produce rows in the view of the root are marked.
func RenderLayout(w io.Writer, opts Options, class string, overlay bool) error {
	logger := createLogger(opts.Debug)
	src, err := LoadSources(opts)
	if err != nil {
		return err
	}

	cls := domain.ClassID(class)
	if cls == "" {
		root, err := determineRoot(src.Repo, opts.Root)
		if err != nil {
			return err
		}
		if cls, err = src.Repo.ClassOf(root); err != nil {
			return err
		}
	}

	resolver := runtime.NewResolver(src.Templates, src.Repo.Metadata())
	layout, err := resolver.Resolve(cls, opts.Layout)
	if err != nil {
		return fmt.Errorf("error resolving layout: %w", err)
	}
	if layout, err = resolver.SpliceCustomFields(layout, cls); err != nil {
		return err
	}

	var ov *graph.GraphOverlay
	if overlay {
		tree, closeTree, err := openView(context.Background(), src, opts, logger)
		if err != nil {
			return err
		}
		defer closeTree()
		ov = &graph.GraphOverlay{}
		for _, row := range tree.Rows() {
			if row.Node != nil {
				ov.Produced = append(ov.Produced, row.Node.Key)
			}
		}
		if _, row := tree.CurrentRow(); row != nil && row.Node != nil {
			ov.Current = row.Node.Key
		}
	}

	_, err = io.WriteString(w, graph.GenerateMermaid(layout, ov))
	return err
}
