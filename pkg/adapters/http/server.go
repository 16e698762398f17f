package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/internal/logging"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/aretw0/detailtree/pkg/schema"
	"github.com/aretw0/detailtree/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server implements ServerInterface over the views of a session.Manager.
type Server struct {
	Views   *session.Manager
	Streams *StreamManager

	watcher  ports.Watchable
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Ensure Server implements ServerInterface
var _ ServerInterface = (*Server)(nil)

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithWatcher streams template reloads on GET /events without a view.
func WithWatcher(w ports.Watchable) Option {
	return func(s *Server) {
		s.watcher = w
	}
}

// WithMetrics serves the gatherer on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates a new HTTP handler for the views.
func NewHandler(views *session.Manager, opts ...Option) http.Handler {
	server := &Server{
		Views:   views,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams.logger = server.logger

	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		spec, err := rawSpec()
		if err != nil {
			http.Error(w, "Failed to load spec", http.StatusInternalServerError)
			server.logger.Error("Failed to load OpenAPI spec", "err", err)
			return
		}
		_, _ = w.Write(spec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if server.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	}

	handler := HandlerFromMux(server, r)
	return enableCORS(handler)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>detailtree API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "detailtree-http",
		"version":     strings.TrimSpace(detailtree.Version),
		"api_version": apiVersion,
	})
}

// ListViews handles the GET /views request.
func (s *Server) ListViews(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Views.List())
}

// GetView handles the GET /views/{view} request, opening the view if needed.
func (s *Server) GetView(w http.ResponseWriter, r *http.Request, view string) {
	s.apply(w, r, view, func(context.Context, *detailtree.Tree) error { return nil })
}

// CloseView handles the DELETE /views/{view} request.
func (s *Server) CloseView(w http.ResponseWriter, r *http.Request, view string) {
	if err := s.Views.Close(r.Context(), view); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RebuildView handles the POST /views/{view}/rebuild request.
func (s *Server) RebuildView(w http.ResponseWriter, r *http.Request, view string) {
	var body RebuildRequest
	if !s.decode(w, r, "RebuildRequest", &body) {
		return
	}
	layout := ""
	if body.Layout != nil {
		layout = *body.Layout
	}
	s.apply(w, r, view, func(ctx context.Context, t *detailtree.Tree) error {
		return t.Rebuild(ctx, domain.EntityID(body.Root), layout)
	})
}

// RefreshView handles the POST /views/{view}/refresh request.
func (s *Server) RefreshView(w http.ResponseWriter, r *http.Request, view string) {
	s.apply(w, r, view, func(ctx context.Context, t *detailtree.Tree) error {
		return t.Refresh(ctx, true)
	})
}

// CheckView handles the GET /views/{view}/check request.
func (s *Server) CheckView(w http.ResponseWriter, r *http.Request, view string) {
	var res CheckResult
	err := s.Views.WithView(r.Context(), view, func(ctx context.Context, t *detailtree.Tree) error {
		err := t.Check(ctx)
		if err == nil {
			res.Valid = true
			return nil
		}
		fields := schema.ValidationErrors(err)
		if fields == nil {
			return err
		}
		for _, fe := range fields {
			res.Errors = append(res.Errors, fe.Error())
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// SelectRow handles the POST /views/{view}/select request.
func (s *Server) SelectRow(w http.ResponseWriter, r *http.Request, view string) {
	var body SelectRequest
	if !s.decode(w, r, "SelectRequest", &body) {
		return
	}
	s.apply(w, r, view, func(_ context.Context, t *detailtree.Tree) error {
		return t.SetCurrentRow(body.Index)
	})
}

// InsertChild handles the POST /views/{view}/insert request.
func (s *Server) InsertChild(w http.ResponseWriter, r *http.Request, view string) {
	var body InsertRequest
	if !s.decode(w, r, "InsertRequest", &body) {
		return
	}
	s.apply(w, r, view, func(ctx context.Context, t *detailtree.Tree) error {
		_, err := t.InsertChild(ctx, body.Field, domain.ClassID(body.Class))
		return err
	})
}

// EditRow handles the PUT /views/{view}/rows/{index} request.
func (s *Server) EditRow(w http.ResponseWriter, r *http.Request, view string, index int) {
	var body EditRequest
	if !s.decode(w, r, "EditRequest", &body) {
		return
	}
	s.apply(w, r, view, func(ctx context.Context, t *detailtree.Tree) error {
		return t.Edit(ctx, index, body.Text)
	})
}

// RowAction handles the POST /views/{view}/rows/{index}/{action} request.
func (s *Server) RowAction(w http.ResponseWriter, r *http.Request, view string, index int, action RowAction) {
	s.apply(w, r, view, func(ctx context.Context, t *detailtree.Tree) error {
		switch action {
		case RowActionExpand:
			return t.Expand(ctx, index)
		case RowActionCollapse:
			return t.Collapse(ctx, index)
		case RowActionToggle:
			return t.Toggle(ctx, index)
		default:
			return t.MakeReal(ctx, index)
		}
	})
}

// apply runs op on the view, broadcasts the resulting row diff and responds with
// the view. Configuration errors of a rebuild are reported in the view, not as a
// failure.
func (s *Server) apply(w http.ResponseWriter, r *http.Request, view string, op func(context.Context, *detailtree.Tree) error) {
	var resp View
	var diff domain.RowsDiff
	err := s.Views.WithView(r.Context(), view, func(ctx context.Context, t *detailtree.Tree) error {
		before := append([]*domain.Row(nil), t.Rows()...)
		err := op(ctx, t)
		var rebuildErr *domain.RebuildError
		if err != nil && !errors.As(err, &rebuildErr) {
			return err
		}
		diff = domain.DiffRows(before, t.Rows())
		resp = viewFromTree(view, t)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !diff.Empty() {
		if data, err := json.Marshal(diff); err == nil {
			s.Streams.Broadcast(view, string(data))
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body and checks it against the named schema of the API.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schemaName string, dest any) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, Error{Message: "Invalid request body"})
		return false
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		s.writeJSON(w, http.StatusBadRequest, Error{Message: "Invalid request body"})
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	if swagger, err := GetSwagger(); err == nil {
		if ref, ok := swagger.Components.Schemas[schemaName]; ok && ref.Value != nil {
			if err := ref.Value.VisitJSON(raw); err != nil {
				s.writeJSON(w, http.StatusBadRequest, Error{Message: fmt.Sprintf("Invalid %s: %v", schemaName, err)})
				return false
			}
		}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.writeJSON(w, http.StatusBadRequest, Error{Message: "Invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrViewNotFound),
		errors.Is(err, domain.ErrEntityNotFound),
		errors.Is(err, domain.ErrLayoutNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRowOutOfRange),
		errors.Is(err, domain.ErrNotExpandable),
		errors.Is(err, domain.ErrNotDummy),
		errors.Is(err, domain.ErrNotGhost),
		errors.Is(err, domain.ErrFieldNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRebuildInProgress),
		errors.Is(err, domain.ErrNoRoot):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, Error{Message: err.Error()})
}

func viewFromTree(name string, t *detailtree.Tree) View {
	root, layout := t.Root()
	cur, _ := t.CurrentRow()
	v := View{
		Name:    name,
		Root:    int64(root),
		Layout:  layout,
		Current: cur,
		Top:     t.Top(),
		Rows:    make([]Row, len(t.Rows())),
	}
	for i, r := range t.Rows() {
		v.Rows[i] = rowFromDomain(i, r)
	}
	for _, err := range t.Errors() {
		v.Errors = append(v.Errors, err.Error())
	}
	return v
}

func rowFromDomain(i int, r *domain.Row) Row {
	row := Row{
		Index:     i,
		Key:       r.Key.String(),
		Variant:   r.Variant.String(),
		Label:     r.Label,
		Editor:    r.Editor,
		WS:        r.WS,
		Indent:    r.Indent,
		Expansion: r.Expansion.String(),
		Weight:    string(r.Weight),
	}
	if r.Variant == domain.VariantReal {
		row.Value = detailtree.ValueText(r)
	}
	switch {
	case r.Err != nil:
		row.Error = r.Err.Error()
	case r.DataErr != nil:
		row.Error = r.DataErr.Error()
	}
	return row
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // View -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logging.NewNop(),
	}
}

func (sm *StreamManager) Subscribe(view string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[view]; !ok {
		sm.subscribers[view] = make(map[chan<- string]struct{})
	}
	sm.subscribers[view][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[view]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, view)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(view string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[view] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "view", view)
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request, params SubscribeEventsParams) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Template reloads
	if params.View == nil {
		if s.watcher == nil {
			http.Error(w, "Watch error: template source does not support watching", http.StatusNotImplemented)
			return
		}
		events, err := s.watcher.Watch(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("Watch error: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: reload\ndata: templates\n\n")
				flusher.Flush()
			}
		}
	}

	view := *params.View
	s.logger.Info("SSE: Subscribing to view updates", "view", view)

	ch, cancel := s.Streams.Subscribe(view)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
