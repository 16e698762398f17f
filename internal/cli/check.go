package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/detailtree/internal/validator"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/schema"
)

// CheckView validates the root entity against the validators of its layout and
// prints every failure.
func CheckView(w io.Writer, opts Options) error {
	logger := createLogger(opts.Debug)
	src, err := LoadSources(opts)
	if err != nil {
		return err
	}
	ctx := context.Background()
	tree, closeTree, err := openView(ctx, src, opts, logger)
	if err != nil {
		return err
	}
	defer closeTree()

	err = tree.Check(ctx)
	if err == nil {
		fmt.Fprintln(w, "Entity is valid! ✅")
		return nil
	}
	failures := schema.ValidationErrors(err)
	if failures == nil {
		return err
	}
	for _, f := range failures {
		fmt.Fprintf(w, "  ✗ %v\n", f)
	}
	return fmt.Errorf("%d validation errors", len(failures))
}

// ValidateTemplates checks the layouts reachable from class (default: the class of
// the root entity) against the class metadata.
func ValidateTemplates(w io.Writer, opts Options, class string) error {
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
	if err := validator.ValidateLayouts(src.Templates, src.Repo.Metadata(), cls, opts.Layout, src.Repo.Validators()); err != nil {
		return err
	}
	fmt.Fprintln(w, "Layouts are valid! ✅")
	return nil
}
