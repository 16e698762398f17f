package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/detailtree"
	httpAdapter "github.com/aretw0/detailtree/pkg/adapters/http"
	"github.com/aretw0/detailtree/pkg/adapters/mcp"
	"github.com/aretw0/detailtree/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/detailtree/pkg/adapters/redis"
	"github.com/aretw0/detailtree/pkg/observability"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/aretw0/detailtree/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 5 * time.Second

// newViewManager builds the view manager of the server commands. Every view is a
// tree over the shared repository. When Redis is configured it stores the view
// preferences and serializes view access across processes.
func newViewManager(ctx context.Context, src *Sources, opts Options, logger *slog.Logger, reg prometheus.Registerer) (*session.Manager, func(), error) {
	metrics := observability.NewMetrics(reg)

	var prefs ports.PrefsStore = memory.NewPrefsStore()
	managerOpts := []session.Option{
		session.WithNotifier(src.Repo),
		session.WithLogger(logger),
	}
	cleanup := func() {}
	if opts.RedisAddr != "" {
		store := redisAdapter.New(opts.RedisAddr)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Client().Close()
			return nil, nil, fmt.Errorf("redis unavailable at %s: %w", opts.RedisAddr, err)
		}
		prefs = store
		managerOpts = append(managerOpts, session.WithLocker(redisAdapter.NewLocker(store.Client(), "detailtree:")))
		cleanup = func() { _ = store.Client().Close() }
	}

	factory := func(ctx context.Context, view string) (*detailtree.Tree, error) {
		return newTree(src, logger,
			detailtree.WithView(view),
			detailtree.WithPrefs(prefs),
			lifecycleHooks(logger, opts.Debug, metrics.Hooks()),
		)
	}
	return session.NewManager(factory, managerOpts...), cleanup, nil
}

// Serve runs the HTTP API until SIGINT or SIGTERM.
func Serve(opts Options, port string) error {
	logger := createLogger(opts.Debug)
	src, err := LoadSources(opts)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	reg := prometheus.NewRegistry()
	views, cleanup, err := newViewManager(sigCtx, src, opts, logger, reg)
	if err != nil {
		return err
	}
	defer cleanup()

	handlerOpts := []httpAdapter.Option{
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMetrics(reg),
	}
	if w, ok := src.Templates.(ports.Watchable); ok {
		handlerOpts = append(handlerOpts, httpAdapter.WithWatcher(w))
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: httpAdapter.NewHandler(views, handlerOpts...),
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		fmt.Printf("Starting detailtree server on %s\n", srv.Addr)
		fmt.Printf("Serving templates from: %s\n", src.Name)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-sigCtx.Done():
		fmt.Printf("\nStart shutdown... Signal: %v\n", sigCtx.Signal())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Graceful shutdown did not complete in %v: %v\n", shutdownTimeout, err)
			if err := srv.Close(); err != nil {
				fmt.Printf("Error killing server: %v\n", err)
			}
		}
		if err := views.Shutdown(ctx); err != nil {
			logger.Warn("closing views failed", "err", err)
		}
		fmt.Println("detailtree server stopped gracefully")
		return nil
	}
}

// ServeMCP runs the MCP server over stdio or SSE.
func ServeMCP(opts Options, transport string, port int) error {
	// MCP logs always go to stderr; stdout carries JSON-RPC.
	logger := createLogger(opts.Debug)
	src, err := LoadSources(opts)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	views, cleanup, err := newViewManager(sigCtx, src, opts, logger, nil)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = views.Shutdown(context.Background()) }()

	srv := mcp.NewServer(views, mcp.WithLogger(logger), mcp.WithTemplates(src.Templates))

	switch transport {
	case "stdio":
		log.SetOutput(os.Stderr)
		logger.Info("Starting detailtree MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		logger.Info("Starting detailtree MCP Server (SSE)", "port", port)
		if err := srv.ServeSSE(sigCtx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("MCP Server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}
}
