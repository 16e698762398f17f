package http

import (
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var specYAML []byte

// Row is one line of a view.
type Row struct {
	Index     int    `json:"index"`
	Key       string `json:"key"`
	Variant   string `json:"variant"`
	Label     string `json:"label"`
	Value     string `json:"value,omitempty"`
	Editor    string `json:"editor,omitempty"`
	WS        string `json:"ws,omitempty"`
	Indent    int    `json:"indent"`
	Expansion string `json:"expansion"`
	Weight    string `json:"weight,omitempty"`
	Error     string `json:"error,omitempty"`
}

// View is the row list of a view with its selection.
type View struct {
	Name    string   `json:"name"`
	Root    int64    `json:"root,omitempty"`
	Layout  string   `json:"layout,omitempty"`
	Current int      `json:"current"`
	Top     int      `json:"top"`
	Rows    []Row    `json:"rows"`
	Errors  []string `json:"errors,omitempty"`
}

// RebuildRequest defines model for RebuildRequest.
type RebuildRequest struct {
	Root   int64   `json:"root"`
	Layout *string `json:"layout,omitempty"`
}

// SelectRequest defines model for SelectRequest.
type SelectRequest struct {
	Index int `json:"index"`
}

// InsertRequest defines model for InsertRequest.
type InsertRequest struct {
	Field string `json:"field"`
	Class string `json:"class"`
}

// EditRequest defines model for EditRequest.
type EditRequest struct {
	Text string `json:"text"`
}

// CheckResult defines model for CheckResult.
type CheckResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Error defines model for Error.
type Error struct {
	Message string `json:"message"`
}

// RowAction defines the actions of POST /views/{view}/rows/{index}/{action}.
type RowAction string

const (
	RowActionExpand   RowAction = "expand"
	RowActionCollapse RowAction = "collapse"
	RowActionToggle   RowAction = "toggle"
	RowActionReal     RowAction = "real"
)

// SubscribeEventsParams defines parameters for SubscribeEvents.
type SubscribeEventsParams struct {
	View *string `form:"view,omitempty" json:"view,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// (GET /info)
	GetInfo(w http.ResponseWriter, r *http.Request)
	// (GET /views)
	ListViews(w http.ResponseWriter, r *http.Request)
	// (GET /views/{view})
	GetView(w http.ResponseWriter, r *http.Request, view string)
	// (DELETE /views/{view})
	CloseView(w http.ResponseWriter, r *http.Request, view string)
	// (POST /views/{view}/rebuild)
	RebuildView(w http.ResponseWriter, r *http.Request, view string)
	// (POST /views/{view}/refresh)
	RefreshView(w http.ResponseWriter, r *http.Request, view string)
	// (GET /views/{view}/check)
	CheckView(w http.ResponseWriter, r *http.Request, view string)
	// (POST /views/{view}/select)
	SelectRow(w http.ResponseWriter, r *http.Request, view string)
	// (POST /views/{view}/insert)
	InsertChild(w http.ResponseWriter, r *http.Request, view string)
	// (PUT /views/{view}/rows/{index})
	EditRow(w http.ResponseWriter, r *http.Request, view string, index int)
	// (POST /views/{view}/rows/{index}/{action})
	RowAction(w http.ResponseWriter, r *http.Request, view string, index int, action RowAction)
	// (GET /events)
	SubscribeEvents(w http.ResponseWriter, r *http.Request, params SubscribeEventsParams)
}

// InvalidParamFormatError is passed to the error handler when a parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) bindPath(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

func (siw *ServerInterfaceWrapper) withView(fn func(w http.ResponseWriter, r *http.Request, view string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var view string
		if !siw.bindPath(w, r, "view", &view) {
			return
		}
		fn(w, r, view)
	}
}

func (siw *ServerInterfaceWrapper) EditRow(w http.ResponseWriter, r *http.Request) {
	var view string
	var index int
	if !siw.bindPath(w, r, "view", &view) || !siw.bindPath(w, r, "index", &index) {
		return
	}
	siw.Handler.EditRow(w, r, view, index)
}

func (siw *ServerInterfaceWrapper) RowAction(w http.ResponseWriter, r *http.Request) {
	var view string
	var index int
	var action RowAction
	if !siw.bindPath(w, r, "view", &view) || !siw.bindPath(w, r, "index", &index) || !siw.bindPath(w, r, "action", &action) {
		return
	}
	switch action {
	case RowActionExpand, RowActionCollapse, RowActionToggle, RowActionReal:
	default:
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "action", Err: fmt.Errorf("unknown action %q", action)})
		return
	}
	siw.Handler.RowAction(w, r, view, index, action)
}

func (siw *ServerInterfaceWrapper) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	var params SubscribeEventsParams
	if err := runtime.BindQueryParameter("form", true, false, "view", r.URL.Query(), &params.View); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "view", Err: err})
		return
	}
	siw.Handler.SubscribeEvents(w, r, params)
}

// HandlerFromMux creates http.Handler with routing matching OpenAPI spec based on the provided mux.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		},
	}

	r.Get("/health", si.GetHealth)
	r.Get("/info", si.GetInfo)
	r.Get("/views", si.ListViews)
	r.Get("/views/{view}", wrapper.withView(si.GetView))
	r.Delete("/views/{view}", wrapper.withView(si.CloseView))
	r.Post("/views/{view}/rebuild", wrapper.withView(si.RebuildView))
	r.Post("/views/{view}/refresh", wrapper.withView(si.RefreshView))
	r.Get("/views/{view}/check", wrapper.withView(si.CheckView))
	r.Post("/views/{view}/select", wrapper.withView(si.SelectRow))
	r.Post("/views/{view}/insert", wrapper.withView(si.InsertChild))
	r.Put("/views/{view}/rows/{index}", wrapper.EditRow)
	r.Post("/views/{view}/rows/{index}/{action}", wrapper.RowAction)
	r.Get("/events", wrapper.SubscribeEvents)
	return r
}

// rawSpec returns the embedded OpenAPI document.
func rawSpec() ([]byte, error) {
	return specYAML, nil
}

var loadSwagger = sync.OnceValues(func() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("error loading Swagger: %w", err)
	}
	return doc, nil
})

// GetSwagger returns the parsed OpenAPI document of the API.
func GetSwagger() (*openapi3.T, error) {
	return loadSwagger()
}
