package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/internal/logging"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/aretw0/detailtree/pkg/session"
	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RowResponse is one row as an agent sees it.
type RowResponse struct {
	Index     int    `json:"index"`
	Key       string `json:"key" jsonschema_description:"Stable path key of the row"`
	Variant   string `json:"variant" jsonschema_description:"real, dummy (not yet loaded), ghost (empty owned field) or error"`
	Indent    int    `json:"indent"`
	Expansion string `json:"expansion" jsonschema_description:"fixed, collapsed, collapsed-empty or expanded"`
	Text      string `json:"text" jsonschema_description:"Label and value of the row"`
}

// ViewResponse aligns with the HTTP View schema and provides a unified structure across adapters.
type ViewResponse struct {
	View    string        `json:"view"`
	Root    int64         `json:"root"`
	Layout  string        `json:"layout,omitempty"`
	Current int           `json:"current" jsonschema_description:"Index of the selected row, -1 when none"`
	Rows    []RowResponse `json:"rows"`
	Errors  []string      `json:"errors,omitempty" jsonschema_description:"Template configuration errors of the last rebuild"`
}

// ViewArgs names a view.
type ViewArgs struct {
	View string `json:"view"`
}

// RebuildArgs are the arguments of rebuild_view.
type RebuildArgs struct {
	View   string `json:"view"`
	Root   int64  `json:"root"`
	Layout string `json:"layout,omitempty"`
}

// RowArgs are the arguments of row_action.
type RowArgs struct {
	View   string `json:"view"`
	Index  int    `json:"index"`
	Action string `json:"action"`
}

// EditArgs are the arguments of edit_row.
type EditArgs struct {
	View  string `json:"view"`
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// InsertArgs are the arguments of insert_child.
type InsertArgs struct {
	View  string `json:"view"`
	Field string `json:"field"`
	Class string `json:"class"`
}

// Server exposes the views of a session.Manager as an MCP Server.
type Server struct {
	views     *session.Manager
	templates ports.TemplateSource
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTemplates publishes the template keys as the detailtree://templates resource.
func WithTemplates(src ports.TemplateSource) Option {
	return func(s *Server) {
		s.templates = src
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(views *session.Manager, opts ...Option) *Server {
	s := &Server{
		views:     views,
		mcpServer: server.NewMCPServer("detailtree-mcp", strings.TrimSpace(detailtree.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Baggage, Sentry-Trace")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	viewParam := mcp.WithString("view", mcp.Required(), mcp.Description("Name of the view; views are created on first use"))

	s.mcpServer.AddTool(mcp.NewTool("get_view",
		mcp.WithDescription("Show the rows of a view."),
		viewParam,
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetView))

	s.mcpServer.AddTool(mcp.NewTool("rebuild_view",
		mcp.WithDescription("Show an entity in a view, using a named layout of its class."),
		viewParam,
		mcp.WithNumber("root", mcp.Required(), mcp.Description("Id of the entity to show")),
		mcp.WithString("layout", mcp.Description("Layout name (default: default)")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleRebuild))

	s.mcpServer.AddTool(mcp.NewTool("row_action",
		mcp.WithDescription("Expand, collapse or toggle a row, or load a dummy row."),
		viewParam,
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Row index")),
		mcp.WithString("action", mcp.Required(), mcp.Enum("expand", "collapse", "toggle", "real")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleRowAction))

	s.mcpServer.AddTool(mcp.NewTool("edit_row",
		mcp.WithDescription("Write a value into the field shown by a row. On a ghost row this creates the missing object."),
		viewParam,
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Row index")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New value, parsed for the field's kind")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleEdit))

	s.mcpServer.AddTool(mcp.NewTool("insert_child",
		mcp.WithDescription("Create an object in an owning field of the selected row's object (or its nearest owner with that field)."),
		viewParam,
		mcp.WithString("field", mcp.Required(), mcp.Description("Owning field")),
		mcp.WithString("class", mcp.Required(), mcp.Description("Class of the new object")),
		mcp.WithOutputSchema[ViewResponse](),
	), mcp.NewStructuredToolHandler(s.handleInsert))
}

func (s *Server) handleGetView(ctx context.Context, _ mcp.CallToolRequest, args ViewArgs) (ViewResponse, error) {
	return s.apply(ctx, args.View, func(context.Context, *detailtree.Tree) error { return nil })
}

func (s *Server) handleRebuild(ctx context.Context, _ mcp.CallToolRequest, args RebuildArgs) (ViewResponse, error) {
	return s.apply(ctx, args.View, func(ctx context.Context, t *detailtree.Tree) error {
		return t.Rebuild(ctx, domain.EntityID(args.Root), args.Layout)
	})
}

func (s *Server) handleRowAction(ctx context.Context, _ mcp.CallToolRequest, args RowArgs) (ViewResponse, error) {
	return s.apply(ctx, args.View, func(ctx context.Context, t *detailtree.Tree) error {
		switch args.Action {
		case "expand":
			return t.Expand(ctx, args.Index)
		case "collapse":
			return t.Collapse(ctx, args.Index)
		case "toggle":
			return t.Toggle(ctx, args.Index)
		case "real":
			return t.MakeReal(ctx, args.Index)
		}
		return fmt.Errorf("unknown action %q", args.Action)
	})
}

func (s *Server) handleEdit(ctx context.Context, _ mcp.CallToolRequest, args EditArgs) (ViewResponse, error) {
	return s.apply(ctx, args.View, func(ctx context.Context, t *detailtree.Tree) error {
		return t.Edit(ctx, args.Index, args.Text)
	})
}

func (s *Server) handleInsert(ctx context.Context, _ mcp.CallToolRequest, args InsertArgs) (ViewResponse, error) {
	return s.apply(ctx, args.View, func(ctx context.Context, t *detailtree.Tree) error {
		_, err := t.InsertChild(ctx, args.Field, domain.ClassID(args.Class))
		return err
	})
}

func (s *Server) apply(ctx context.Context, view string, op func(context.Context, *detailtree.Tree) error) (ViewResponse, error) {
	if view == "" {
		return ViewResponse{}, fmt.Errorf("view is required")
	}
	var resp ViewResponse
	err := s.views.WithView(ctx, view, func(ctx context.Context, t *detailtree.Tree) error {
		err := op(ctx, t)
		var rebuildErr *domain.RebuildError
		if err != nil && !errors.As(err, &rebuildErr) {
			return err
		}
		resp = viewResponse(view, t)
		return nil
	})
	if err != nil {
		s.logger.Warn("MCP tool failed", "view", view, "err", err)
		return ViewResponse{}, err
	}
	return resp, nil
}

func viewResponse(name string, t *detailtree.Tree) ViewResponse {
	root, layout := t.Root()
	cur, _ := t.CurrentRow()
	resp := ViewResponse{
		View:    name,
		Root:    int64(root),
		Layout:  layout,
		Current: cur,
		Rows:    make([]RowResponse, len(t.Rows())),
	}
	for i, r := range t.Rows() {
		resp.Rows[i] = RowResponse{
			Index:     i,
			Key:       r.Key.String(),
			Variant:   r.Variant.String(),
			Indent:    r.Indent,
			Expansion: r.Expansion.String(),
			Text:      detailtree.RowText(r),
		}
	}
	for _, err := range t.Errors() {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return resp
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("detailtree://views", "Open views",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.views.List())
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: "detailtree://views", MIMEType: "application/json", Text: string(data)},
		}, nil
	})

	lister, ok := s.templates.(ports.TemplateLister)
	if !ok {
		return
	}
	s.mcpServer.AddResource(mcp.NewResource("detailtree://templates", "Template definitions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		keys, err := lister.ListTemplates()
		if err != nil {
			return nil, fmt.Errorf("failed to list templates: %w", err)
		}
		data, err := json.Marshal(keys)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: "detailtree://templates", MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
