package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/internal/presentation/tui"
	redisAdapter "github.com/aretw0/detailtree/pkg/adapters/redis"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
)

// RunSession opens the detail view of the root entity and drives it with line
// commands read from stdin.
func RunSession(opts Options) error {
	logger := createLogger(opts.Debug)

	if !opts.Headless {
		tui.PrintBanner(os.Stdout)
	}

	src, err := LoadSources(opts)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	tree, closeTree, err := openView(sigCtx, src, opts, logger, detailtree.WithNotifier(src.Repo))
	if err != nil {
		return err
	}
	defer closeTree()

	render, err := rowRenderer(opts, tree)
	if err != nil {
		return err
	}

	r := detailtree.NewRunner()
	r.Input = NewInterruptibleReader(os.Stdin, sigCtx.Done())
	r.Output = os.Stdout
	r.Headless = opts.Headless
	r.Renderer = render

	runErr := r.Run(sigCtx, tree)
	if sigCtx.Err() != nil && runErr == nil {
		runErr = sigCtx.Err()
	}
	if sig := sigCtx.Signal(); sig != nil && !opts.Headless {
		cur, _ := tree.CurrentRow()
		fmt.Println()
		printSystemMessage(os.Stdout, "Interrupted at row %d.", cur)
	}
	return handleExecutionError(runErr)
}

// openView creates the tree of the configured view and rebuilds it on the root
// entity. Rebuild errors that only mark rows are logged, not returned.
func openView(ctx context.Context, src *Sources, opts Options, logger *slog.Logger, extra ...detailtree.Option) (*detailtree.Tree, func(), error) {
	prefs, closePrefs, err := openPrefs(ctx, opts.RedisAddr)
	if err != nil {
		return nil, nil, err
	}

	treeOpts := []detailtree.Option{lifecycleHooks(logger, opts.Debug)}
	if opts.View != "" {
		treeOpts = append(treeOpts, detailtree.WithView(opts.View))
	}
	if prefs != nil {
		treeOpts = append(treeOpts, detailtree.WithPrefs(prefs))
	}
	treeOpts = append(treeOpts, extra...)

	tree, err := newTree(src, logger, treeOpts...)
	if err != nil {
		closePrefs()
		return nil, nil, err
	}
	cleanup := func() {
		tree.Close()
		closePrefs()
	}

	root, err := determineRoot(src.Repo, opts.Root)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := tree.Rebuild(ctx, root, opts.Layout); err != nil {
		var rebuildErr *domain.RebuildError
		if !errors.As(err, &rebuildErr) {
			cleanup()
			return nil, nil, err
		}
		logger.Warn("rebuild produced error rows", "root", int64(root), "errors", len(rebuildErr.Errors))
	}
	return tree, cleanup, nil
}

// openPrefs connects the Redis preference store when addr is set.
func openPrefs(ctx context.Context, addr string) (ports.PrefsStore, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}
	store := redisAdapter.New(addr)
	if err := store.Client().Ping(ctx).Err(); err != nil {
		_ = store.Client().Close()
		return nil, nil, fmt.Errorf("redis unavailable at %s: %w", addr, err)
	}
	return store, func() { _ = store.Client().Close() }, nil
}

// rowRenderer picks the row output of the configured mode.
func rowRenderer(opts Options, tree *detailtree.Tree) (detailtree.RowRenderer, error) {
	switch {
	case opts.Markdown:
		return tui.NewMarkdownRenderer(tui.TerminalWidth())
	case opts.Headless:
		return detailtree.PlainRenderer, nil
	default:
		return tui.NewRenderer(tui.WithLabelWidth(tree.LabelWidth())).Render, nil
	}
}

// RenderOnce prints the rows of the view once and returns.
func RenderOnce(w io.Writer, opts Options) error {
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

	render, err := rowRenderer(opts, tree)
	if err != nil {
		return err
	}
	out, err := render(tree.Rows(), -1)
	if err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
