package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/internal/testutils"
	"github.com/aretw0/detailtree/pkg/observability"
	"github.com/aretw0/detailtree/pkg/session"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	mgr := session.NewManager(func(ctx context.Context, view string) (*detailtree.Tree, error) {
		return detailtree.New("", repo,
			detailtree.WithTemplates(tmpl),
			detailtree.WithView(view),
			detailtree.WithLifecycleHooks(metrics.Hooks()),
		)
	}, session.WithNotifier(repo))
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })
	return NewHandler(mgr, append([]Option{WithMetrics(reg)}, opts...)...)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) View {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var v View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestSpec_Valid(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	for _, p := range []string{"/health", "/views/{view}", "/views/{view}/rows/{index}", "/views/{view}/rows/{index}/{action}", "/events"} {
		assert.NotNil(t, doc.Paths.Value(p), p)
	}
}

func TestRebuildAndEdit(t *testing.T) {
	h := newHandler(t)

	v := decodeView(t, do(t, h, "POST", "/views/main/rebuild", RebuildRequest{Root: 2}))
	assert.Equal(t, "main", v.Name)
	assert.Equal(t, int64(2), v.Root)
	require.NotEmpty(t, v.Rows)
	assert.Equal(t, "walk", v.Rows[0].Value)
	assert.Equal(t, "ghost", v.Rows[1].Variant)

	v = decodeView(t, do(t, h, "PUT", "/views/main/rows/0", EditRequest{Text: "stroll"}))
	assert.Equal(t, "stroll", v.Rows[0].Value)

	v = decodeView(t, do(t, h, "POST", "/views/main/select", SelectRequest{Index: 1}))
	assert.Equal(t, 1, v.Current)

	w := do(t, h, "GET", "/views", nil)
	assert.JSONEq(t, `["main"]`, w.Body.String())
}

func TestRequestErrors(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, "POST", "/views/main/rebuild", map[string]any{"layout": "default"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "root is required")

	w = do(t, h, "POST", "/views/main/rebuild", RebuildRequest{Root: 999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	decodeView(t, do(t, h, "POST", "/views/main/rebuild", RebuildRequest{Root: 2}))

	w = do(t, h, "POST", "/views/main/rows/abc/expand", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/views/main/rows/0/explode", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/views/main/rows/99/expand", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "DELETE", "/views/main", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, "DELETE", "/views/main", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckAndInfo(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, "GET", "/views/main/check", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "no root yet")

	decodeView(t, do(t, h, "POST", "/views/main/rebuild", RebuildRequest{Root: 2}))
	w = do(t, h, "GET", "/views/main/check", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true}`, w.Body.String())

	w = do(t, h, "GET", "/info", nil)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.Equal(t, strings.TrimSpace(detailtree.Version), info["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHandler(t)
	decodeView(t, do(t, h, "POST", "/views/main/rebuild", RebuildRequest{Root: 2}))

	w := do(t, h, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `detailtree_rebuilds_total{view="main"} 1`)
}

func TestSubscribeEvents_View(t *testing.T) {
	h := newHandler(t)
	decodeView(t, do(t, h, "POST", "/views/main/rebuild", RebuildRequest{Root: 2}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest("GET", "/events?view=main", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(wSub, reqSub)
	}()

	time.Sleep(100 * time.Millisecond) // Wait for subscription to register

	decodeView(t, do(t, h, "POST", "/views/main/insert", InsertRequest{Field: "Senses", Class: "Sense"}))

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	output := wSub.Body.String()
	assert.Contains(t, output, "event: ping")
	assert.Contains(t, output, `"added"`)
}

func TestSubscribeEvents_NoWatcher(t *testing.T) {
	h := newHandler(t)
	w := do(t, h, "GET", "/events", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
