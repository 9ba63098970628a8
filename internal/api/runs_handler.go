package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/crawlplane/internal/blob"
	"github.com/jonesrussell/crawlplane/internal/coordinator"
	"github.com/jonesrussell/crawlplane/internal/logger"
	"github.com/jonesrussell/crawlplane/internal/store"
	"github.com/jonesrussell/crawlplane/internal/urlnorm"
)

const (
	defaultPageLimit  = 50
	defaultPageOffset = 0

	htmlContentType = "text/html; charset=utf-8"
)

// RunsHandler serves the operator-facing run endpoints.
type RunsHandler struct {
	coord   *coordinator.Coordinator
	pages   store.PageStore
	configs store.ConfigStore
	blobs   blob.Store
	log     logger.Interface
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(
	coord *coordinator.Coordinator,
	pages store.PageStore,
	configs store.ConfigStore,
	blobs blob.Store,
	log logger.Interface,
) *RunsHandler {
	return &RunsHandler{
		coord:   coord,
		pages:   pages,
		configs: configs,
		blobs:   blobs,
		log:     log,
	}
}

// run resolves the run actor addressed by the request path.
func (h *RunsHandler) run(c *gin.Context) *coordinator.Run {
	return h.coord.Run(c.Param("runId"))
}

// respondStatus writes the {status} payload lifecycle transitions share.
func (h *RunsHandler) respondStatus(c *gin.Context, status coordinator.RunStatus, err error) {
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(c *gin.Context) {
	items, err := h.coord.ListRuns(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": items, "total": len(items)})
}

// Seed handles POST /api/runs/:runId/seed
func (h *RunsHandler) Seed(c *gin.Context) {
	var req seedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if len(req.URLs) == 0 {
		respondError(c, CodeInvalidRequest, "urls must not be empty")
		return
	}

	result, err := h.run(c).Seed(c.Request.Context(), coordinator.SeedParams{
		URLs:     req.URLs,
		Depth:    req.Depth,
		Priority: req.Priority,
	})
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Configure handles POST /api/runs/:runId/configure. The body carries either
// an inline config section map or the id of a stored config.
func (h *RunsHandler) Configure(c *gin.Context) {
	var req configureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if req.ConfigID != "" && len(req.Config) > 0 {
		respondError(c, CodeInvalidRequest, "provide either config or configId, not both")
		return
	}

	updates := req.Config
	var ref *coordinator.ConfigRef

	switch {
	case req.ConfigID != "":
		stored, err := h.configs.GetConfig(c.Request.Context(), req.ConfigID)
		if err != nil {
			respondDomainError(c, h.log, err)
			return
		}

		updates, err = configAsUpdates(stored.Config)
		if err != nil {
			respondDomainError(c, h.log, err)
			return
		}

		ref = &coordinator.ConfigRef{ID: stored.ID, Name: stored.Name}
	case len(req.Config) == 0:
		respondError(c, CodeInvalidRequest, "config must not be empty")
		return
	case req.Name != "":
		ref = &coordinator.ConfigRef{ID: uuid.NewString(), Name: req.Name}
	}

	applied, err := h.run(c).Configure(c.Request.Context(), updates, ref)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"configId": applied.ID})
}

// configAsUpdates flattens a stored config document into the section map
// Configure applies.
func configAsUpdates(cfg *coordinator.CrawlConfig) (map[string]any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal stored config: %w", err)
	}

	var updates map[string]any
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("unmarshal stored config: %w", err)
	}

	return updates, nil
}

// Start handles POST /api/runs/:runId/start
func (h *RunsHandler) Start(c *gin.Context) {
	status, err := h.run(c).Start(c.Request.Context())
	h.respondStatus(c, status, err)
}

// Pause handles POST /api/runs/:runId/pause
func (h *RunsHandler) Pause(c *gin.Context) {
	status, err := h.run(c).Pause(c.Request.Context())
	h.respondStatus(c, status, err)
}

// Resume handles POST /api/runs/:runId/resume
func (h *RunsHandler) Resume(c *gin.Context) {
	status, err := h.run(c).Resume(c.Request.Context())
	h.respondStatus(c, status, err)
}

// Cancel handles POST /api/runs/:runId/cancel
func (h *RunsHandler) Cancel(c *gin.Context) {
	status, err := h.run(c).Cancel(c.Request.Context())
	h.respondStatus(c, status, err)
}

// Reset handles POST /api/runs/:runId/reset
func (h *RunsHandler) Reset(c *gin.Context) {
	status, err := h.run(c).Reset(c.Request.Context())
	h.respondStatus(c, status, err)
}

// DeleteRun handles DELETE /api/runs/:runId. Only terminal runs can be
// deleted; their page metadata goes with them. Stored content blobs are left
// to the bucket's lifecycle policy.
func (h *RunsHandler) DeleteRun(c *gin.Context) {
	ctx := c.Request.Context()
	runID := c.Param("runId")

	if err := h.coord.DeleteRun(ctx, runID); err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	if err := h.pages.DeletePages(ctx, runID); err != nil {
		h.log.Warn("Failed to delete page metadata", "runId", runID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// OnCron handles POST /api/runs/:runId/on-cron
func (h *RunsHandler) OnCron(c *gin.Context) {
	queueSize, err := h.run(c).Maintenance(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"queueSize": queueSize})
}

// Stats handles GET /api/runs/:runId/stats
func (h *RunsHandler) Stats(c *gin.Context) {
	view, err := h.run(c).Stats(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Status handles GET /api/runs/:runId/status
func (h *RunsHandler) Status(c *gin.Context) {
	view, err := h.run(c).Status(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Errors handles GET /api/runs/:runId/errors
func (h *RunsHandler) Errors(c *gin.Context) {
	recent, err := h.run(c).Errors(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"errors": recent, "total": len(recent)})
}

// ListPages handles GET /api/runs/:runId/pages
func (h *RunsHandler) ListPages(c *gin.Context) {
	limit, offset := parseLimitOffset(c, defaultPageLimit, defaultPageOffset)

	params := store.ListPagesParams{
		Domain:     c.Query("domain"),
		FailedOnly: c.Query("failed") == "true",
		Limit:      limit,
		Offset:     offset,
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status, err := strconv.Atoi(statusStr)
		if err != nil {
			respondError(c, CodeInvalidRequest, "status must be an integer")
			return
		}
		params.Status = status
	}

	ctx := c.Request.Context()
	runID := c.Param("runId")

	pages, err := h.pages.ListPages(ctx, runID, params)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	total, err := h.pages.CountPages(ctx, runID)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pages": pages, "total": total})
}

// GetContent handles GET /api/runs/:runId/content?url=. It resolves the page
// record first, then reads the stored HTML back from the blob store.
func (h *RunsHandler) GetContent(c *gin.Context) {
	pageURL := c.Query("url")
	if pageURL == "" {
		respondError(c, CodeInvalidRequest, "url query parameter is required")
		return
	}

	// Page records are keyed by normalized URL, so the lookup goes through
	// the same normalization reports do.
	normalized, normErr := urlnorm.Normalize(pageURL)
	if normErr != nil {
		respondError(c, CodeInvalidRequest, "url is not a valid http(s) url")
		return
	}

	ctx := c.Request.Context()
	runID := c.Param("runId")

	page, err := h.pages.GetPage(ctx, runID, normalized)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	if page.ContentHash == "" {
		respondError(c, CodeContentNotFound, "no content stored for this page")
		return
	}

	data, err := h.blobs.Get(ctx, blob.ObjectKey(runID, page.Domain, page.ContentHash))
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.Data(http.StatusOK, htmlContentType, data)
}
