package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/crawlplane/internal/api"
	"github.com/jonesrussell/crawlplane/internal/blob"
	"github.com/jonesrussell/crawlplane/internal/coordinator"
	"github.com/jonesrussell/crawlplane/internal/logger"
	"github.com/jonesrussell/crawlplane/internal/store"
)

const startTimeMs = int64(1700000000000)

// testServer wires the router over in-memory stores and a controllable
// clock, so handler tests exercise the real coordinator end to end.
type testServer struct {
	router  *gin.Engine
	pages   *store.MemoryPageStore
	configs *store.MemoryConfigStore
	blobs   *blob.MemoryStore
	nowMs   int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	return newTestServerWithKey(t, "")
}

func newTestServerWithKey(t *testing.T, apiKey string) *testServer {
	t.Helper()

	return newTestServerWith(t, apiKey, nil)
}

// newTestServerWith wires the router with an optional content store override
// so tests can drive upload failure paths. Nil keeps the in-memory default.
func newTestServerWith(t *testing.T, apiKey string, blobs blob.Store) *testServer {
	t.Helper()

	gin.SetMode(gin.TestMode)

	ts := &testServer{
		pages:   store.NewMemoryPageStore(),
		configs: store.NewMemoryConfigStore(),
		blobs:   blob.NewMemoryStore(),
		nowMs:   startTimeMs,
	}
	if blobs == nil {
		blobs = ts.blobs
	}

	coord, err := coordinator.New(coordinator.Config{
		Store:  store.NewMemoryStateStore(),
		Pages:  ts.pages,
		Logger: logger.NewNoOp(),
		Now:    func() int64 { return ts.nowMs },
		Rand:   func() float64 { return 0 },
	})
	require.NoError(t, err)

	ts.router = api.SetupRouter(api.Deps{
		Coordinator: coord,
		Pages:       ts.pages,
		Configs:     ts.configs,
		Blobs:       blobs,
		Logger:      logger.NewNoOp(),
		APIKey:      apiKey,
	})

	return ts
}

// advance moves the coordinator clock forward.
func (ts *testServer) advance(ms int64) {
	ts.nowMs += ms
}

// do performs a request against the router and records the response.
func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	return w
}

// decode unmarshals a recorded JSON response body.
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), "body: %s", w.Body.String())
}

// errorCode extracts the wire error code from a failure envelope.
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode(t, w, &envelope)
	assert.False(t, envelope.Success)

	return envelope.Error.Code
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.CodeNotFound, errorCode(t, w))
}

func TestAPIKeyGuardsAPIRoutes(t *testing.T) {
	ts := newTestServerWithKey(t, "secret")

	w := ts.do(t, http.MethodGet, "/api/runs", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, api.CodeUnauthorized, errorCode(t, w))

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("X-API-Key", "secret")
	authed := httptest.NewRecorder()
	ts.router.ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)

	// Health stays public.
	health := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodOptions, "/api/runs", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestListRunsEmpty(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/runs", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"runs":[],"total":0}`, w.Body.String())
}
