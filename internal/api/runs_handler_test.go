package api_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/crawlplane/internal/api"
	"github.com/jonesrussell/crawlplane/internal/blob"
	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

func TestSeedAdmitsAndDeduplicates(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/seed", map[string]any{
		"urls": []string{"https://a.test/p1", "https://B.test/P1/", "https://a.test/p1#x"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"admitted":2,"rejected":0,"queueSize":2}`, w.Body.String())
}

func TestSeedRequiresURLs(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/seed", map[string]any{"urls": []string{}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.CodeInvalidRequest, errorCode(t, w))
}

func TestSeedRejectsMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/runs/run-1/seed", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.CodeInvalidRequest, errorCode(t, w))
}

func TestLifecycleTransitions(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/runs/run-1/seed", map[string]any{"urls": []string{"https://a.test/"}})

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"running"}`, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/runs/run-1/pause", nil)
	assert.JSONEq(t, `{"status":"paused"}`, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/runs/run-1/resume", nil)
	assert.JSONEq(t, `{"status":"running"}`, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/runs/run-1/cancel", nil)
	assert.JSONEq(t, `{"status":"cancelled"}`, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/runs/run-1/reset", nil)
	assert.JSONEq(t, `{"status":"pending"}`, w.Body.String())
}

func TestPauseBeforeStartConflicts(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/pause", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, api.CodeRunNotRunning, errorCode(t, w))
}

func TestStartAfterCancelConflicts(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/runs/run-1/seed", map[string]any{"urls": []string{"https://a.test/"}})
	ts.do(t, http.MethodPost, "/api/runs/run-1/cancel", nil)

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/start", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, api.CodeRunCompleted, errorCode(t, w))
}

func TestStatsUnknownRunNotFound(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/runs/ghost/stats", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.CodeRunNotFound, errorCode(t, w))
}

func TestStatsAfterSeed(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/runs/run-1/seed", map[string]any{
		"urls": []string{"https://a.test/p1", "https://b.test/p2"},
	})

	w := ts.do(t, http.MethodGet, "/api/runs/run-1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view coordinator.StatsView
	decode(t, w, &view)

	assert.Equal(t, "run-1", view.Run.ID)
	assert.Equal(t, coordinator.StatusPending, view.Run.Status)
	assert.Equal(t, int64(2), view.Stats.URLsQueued)
}

func TestConfigureInline(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/configure", map[string]any{
		"config": map[string]any{"crawlBehavior": map[string]any{"maxDepth": 3}},
		"name":   "tight",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ConfigID string `json:"configId"`
	}
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.ConfigID)

	status := ts.do(t, http.MethodGet, "/api/runs/run-1/status", nil)
	require.Equal(t, http.StatusOK, status.Code)

	var view coordinator.StatusView
	decode(t, status, &view)
	require.NotNil(t, view.Config)
	assert.Equal(t, resp.ConfigID, view.Config.ID)
	assert.Equal(t, "tight", view.Config.Name)
}

func TestConfigureRejectsUnknownSection(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/configure", map[string]any{
		"config": map[string]any{"turboMode": map[string]any{"enabled": true}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.CodeInvalidRequest, errorCode(t, w))
}

func TestConfigureRejectsBothSources(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/configure", map[string]any{
		"config":   map[string]any{"crawlBehavior": map[string]any{"maxDepth": 3}},
		"configId": "e1a7c7e4-0000-0000-0000-000000000000",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.CodeInvalidRequest, errorCode(t, w))
}

func TestConfigureRequiresASource(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/configure", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.CodeInvalidRequest, errorCode(t, w))
}

func TestConfigureByStoredConfig(t *testing.T) {
	ts := newTestServer(t)

	created := ts.do(t, http.MethodPost, "/api/configs", map[string]any{
		"name":   "news-sites",
		"config": map[string]any{"crawlBehavior": map[string]any{"maxDepth": 4}},
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var cfg struct {
		ID string `json:"id"`
	}
	decode(t, created, &cfg)

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/configure", map[string]any{"configId": cfg.ID})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ConfigID string `json:"configId"`
	}
	decode(t, w, &resp)
	assert.Equal(t, cfg.ID, resp.ConfigID)

	status := ts.do(t, http.MethodGet, "/api/runs/run-1/status", nil)
	var view coordinator.StatusView
	decode(t, status, &view)
	require.NotNil(t, view.Config)
	assert.Equal(t, "news-sites", view.Config.Name)
}

func TestConfigureUnknownStoredConfig(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/configure", map[string]any{"configId": "nope"})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.CodeConfigNotFound, errorCode(t, w))
}

func TestOnCronReportsQueueSize(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/runs/run-1/seed", map[string]any{
		"urls": []string{"https://a.test/p1", "https://a.test/p2"},
	})

	w := ts.do(t, http.MethodPost, "/api/runs/run-1/on-cron", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"queueSize":2}`, w.Body.String())
}

func TestErrorsEmptyRing(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/runs/run-1/seed", map[string]any{"urls": []string{"https://a.test/"}})

	w := ts.do(t, http.MethodGet, "/api/runs/run-1/errors", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"errors":[],"total":0}`, w.Body.String())
}

func seedPageFixtures(t *testing.T, ts *testServer) {
	t.Helper()

	ctx := context.Background()

	pages := []coordinator.PageRecord{
		{
			RunID:          "run-1",
			URL:            "https://a.test/p1",
			Domain:         "a.test",
			Status:         200,
			ContentHash:    "abcdef0123456789abcdef0123456789",
			ContentSize:    2048,
			ResponseTimeMs: 120,
			FetchedAt:      startTimeMs + 1000,
		},
		{
			RunID:     "run-1",
			URL:       "https://a.test/p2",
			Domain:    "a.test",
			Status:    500,
			Error:     "server error",
			FetchedAt: startTimeMs + 2000,
		},
	}

	for _, page := range pages {
		require.NoError(t, ts.pages.UpsertPage(ctx, page))
	}

	key := blob.ObjectKey("run-1", "a.test", "abcdef0123456789abcdef0123456789")
	require.NoError(t, ts.blobs.Put(ctx, key, []byte("<html>p1</html>"), "text/html; charset=utf-8", nil))
}

func TestListPagesWithFilters(t *testing.T) {
	ts := newTestServer(t)
	seedPageFixtures(t, ts)

	w := ts.do(t, http.MethodGet, "/api/runs/run-1/pages?failed=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Pages []coordinator.PageRecord `json:"pages"`
		Total int                      `json:"total"`
	}
	decode(t, w, &resp)

	require.Len(t, resp.Pages, 1)
	assert.Equal(t, "https://a.test/p2", resp.Pages[0].URL)
	assert.Equal(t, 2, resp.Total)
}

func TestListPagesRejectsBadStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/runs/run-1/pages?status=teapot", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.CodeInvalidRequest, errorCode(t, w))
}

func TestGetContentRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	seedPageFixtures(t, ts)

	query := url.Values{"url": {"https://a.test/p1"}}
	w := ts.do(t, http.MethodGet, "/api/runs/run-1/content?"+query.Encode(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>p1</html>", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	// Lookups normalize, so URL variants resolve to the same page.
	variant := url.Values{"url": {"https://A.TEST:443/p1#section"}}
	w = ts.do(t, http.MethodGet, "/api/runs/run-1/content?"+variant.Encode(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>p1</html>", w.Body.String())
}

func TestGetContentRequiresURL(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/runs/run-1/content", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.CodeInvalidRequest, errorCode(t, w))
}

func TestGetContentUnknownPage(t *testing.T) {
	ts := newTestServer(t)
	seedPageFixtures(t, ts)

	query := url.Values{"url": {"https://a.test/ghost"}}
	w := ts.do(t, http.MethodGet, "/api/runs/run-1/content?"+query.Encode(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.CodeNotFound, errorCode(t, w))
}

func TestGetContentWithoutStoredBlob(t *testing.T) {
	ts := newTestServer(t)
	seedPageFixtures(t, ts)

	// p2 failed and has no content hash.
	query := url.Values{"url": {"https://a.test/p2"}}
	w := ts.do(t, http.MethodGet, "/api/runs/run-1/content?"+query.Encode(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.CodeContentNotFound, errorCode(t, w))
}

func TestDeleteRunLifecycle(t *testing.T) {
	ts := newTestServer(t)
	seedPageFixtures(t, ts)

	ts.do(t, http.MethodPost, "/api/runs/run-1/seed", map[string]any{"urls": []string{"https://a.test/"}})

	// Pending runs cannot be deleted.
	w := ts.do(t, http.MethodDelete, "/api/runs/run-1", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, api.CodeInvalidRunState, errorCode(t, w))

	ts.do(t, http.MethodPost, "/api/runs/run-1/cancel", nil)

	w = ts.do(t, http.MethodDelete, "/api/runs/run-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The run and its page metadata are gone.
	w = ts.do(t, http.MethodGet, "/api/runs/run-1/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	total, err := ts.pages.CountPages(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDeleteRunUnknown(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodDelete, "/api/runs/ghost", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.CodeRunNotFound, errorCode(t, w))
}

func TestListRunsAfterActivity(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/runs/run-a/seed", map[string]any{"urls": []string{"https://a.test/"}})
	ts.do(t, http.MethodPost, "/api/runs/run-b/seed", map[string]any{"urls": []string{"https://b.test/"}})

	w := ts.do(t, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Runs  []coordinator.RunListItem `json:"runs"`
		Total int                       `json:"total"`
	}
	decode(t, w, &resp)

	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Runs, 2)
	assert.Equal(t, "run-a", resp.Runs[0].ID)
	assert.Equal(t, "run-b", resp.Runs[1].ID)
}
