package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/crawlplane/internal/blob"
	"github.com/jonesrussell/crawlplane/internal/coordinator"
	"github.com/jonesrussell/crawlplane/internal/logger"
)

// WorkerHandler serves the dispatch/report pair workers poll.
type WorkerHandler struct {
	coord *coordinator.Coordinator
	blobs blob.Store
	log   logger.Interface
}

// NewWorkerHandler creates a worker handler.
func NewWorkerHandler(coord *coordinator.Coordinator, blobs blob.Store, log logger.Interface) *WorkerHandler {
	return &WorkerHandler{
		coord: coord,
		blobs: blobs,
		log:   log,
	}
}

// RequestWork handles POST /api/request-work
func (h *WorkerHandler) RequestWork(c *gin.Context) {
	var req requestWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if req.RunID == "" {
		respondError(c, CodeInvalidRequest, "runId is required")
		return
	}

	workerID := req.WorkerID
	if workerID == "" {
		workerID = uuid.NewString()
	}

	batch, err := h.coord.Run(req.RunID).RequestWork(c.Request.Context(), req.BatchSize, workerID)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// ReportResult handles POST /api/report-result. Inline content is written to
// the blob store first; a failed write aborts the report so the coordinator
// never acknowledges a result whose content was lost.
func (h *WorkerHandler) ReportResult(c *gin.Context) {
	var req reportResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if req.RunID == "" || req.URL == "" {
		respondError(c, CodeInvalidRequest, "runId and url are required")
		return
	}

	ctx := c.Request.Context()

	if req.Content != "" {
		if err := h.storeContent(ctx, &req); err != nil {
			respondDomainError(c, h.log, err)
			return
		}
	}

	report := coordinator.Report{
		URL:            req.URL,
		Status:         req.Status,
		Depth:          req.Depth,
		ContentHash:    req.ContentHash,
		ContentSize:    req.ContentSize,
		ResponseTimeMs: req.ResponseTimeMs,
		DiscoveredURLs: req.DiscoveredURLs,
		Error:          req.Error,
		FetchedAt:      req.FetchedAt,
	}

	if err := h.coord.Run(req.RunID).ReportResult(ctx, report); err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// storeContent uploads inline page HTML. The hash and size are backfilled
// from the content when the worker omitted them, so the page record always
// matches the blob key.
func (h *WorkerHandler) storeContent(ctx context.Context, req *reportResultRequest) error {
	if req.ContentHash == "" {
		sum := sha256.Sum256([]byte(req.Content))
		req.ContentHash = hex.EncodeToString(sum[:])
	}

	if req.ContentSize == 0 {
		req.ContentSize = int64(len(req.Content))
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		return fmt.Errorf("%w: parse report url: %s", coordinator.ErrInvalidRequest, err)
	}

	key := blob.ObjectKey(req.RunID, strings.ToLower(parsed.Hostname()), req.ContentHash)
	metadata := map[string]string{
		"source-url": req.URL,
		"fetched-at": strconv.FormatInt(req.FetchedAt, 10),
	}

	if err := h.blobs.Put(ctx, key, []byte(req.Content), htmlContentType, metadata); err != nil {
		return fmt.Errorf("store page content: %w", err)
	}

	return nil
}
