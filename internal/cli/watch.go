package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/internal/presentation/outline"
	"github.com/aretw0/detailtree/internal/presentation/tui"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/fatih/color"
)

// RunWatch prints the outline of the view and, whenever the template documents
// change, the line diff against the previous outline.
func RunWatch(w io.Writer, opts Options) error {
	logger := createLogger(opts.Debug)
	tui.PrintBanner(w)

	src, err := LoadSources(opts)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	tree, closeTree, err := openView(sigCtx, src, opts, logger)
	if err != nil {
		return err
	}
	defer closeTree()

	events, err := tree.Watch(sigCtx)
	if err != nil {
		return err
	}

	logger.Info("Starting Watcher", "templates", src.Name)
	printSystemMessage(w, "Watching '%s'.", src.Name)
	err = watchLoop(sigCtx, tree, events, w, outline.NewDiffer(!color.NoColor), logger)
	if sigCtx.Signal() != nil {
		printSystemMessage(w, "Watcher stopped.")
	}
	return handleExecutionError(err)
}

func watchLoop(ctx context.Context, tree *detailtree.Tree, events <-chan struct{}, w io.Writer, differ *outline.Differ, logger *slog.Logger) error {
	last := outline.Text(tree.Rows())
	if _, err := io.WriteString(w, last); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			if err := tree.Refresh(ctx, true); err != nil {
				var rebuildErr *domain.RebuildError
				if !errors.As(err, &rebuildErr) {
					logger.Error("Refresh failed", "err", err)
					printSystemMessage(w, "Refresh failed: %v", err)
					continue
				}
			}
			next := outline.Text(tree.Rows())
			diff, changed := differ.Diff(last, next)
			if !changed {
				printSystemMessage(w, "Templates changed, rows unchanged.")
				continue
			}
			printSystemMessage(w, "Templates changed.")
			if _, err := io.WriteString(w, diff); err != nil {
				return err
			}
			last = next
		}
	}
}
