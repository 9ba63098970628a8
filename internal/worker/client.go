// Package worker implements the fetch side of the crawler: a polling loop
// that requests URL batches from the coordinator, fetches each page under
// the batch's frozen policy snapshot, and reports results back.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

const (
	defaultClientTimeout = 60 * time.Second

	// maxAPIResponseBytes limits coordinator response bodies we will read.
	maxAPIResponseBytes = 4 * 1024 * 1024

	requestWorkPath  = "/api/request-work"
	reportResultPath = "/api/report-result"
)

// APIError is a coordinator failure response.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coordinator: %s (%s, http %d)", e.Message, e.Code, e.Status)
}

// ResultReport is the report-result payload. Depth echoes the dispatched
// work item so discovered links inherit the right depth.
type ResultReport struct {
	RunID          string   `json:"runId"`
	URL            string   `json:"url"`
	Status         int      `json:"status"`
	Depth          int      `json:"depth"`
	ContentHash    string   `json:"contentHash,omitempty"`
	ContentSize    int64    `json:"contentSize,omitempty"`
	ResponseTimeMs int64    `json:"responseTimeMs,omitempty"`
	DiscoveredURLs []string `json:"discoveredUrls,omitempty"`
	Error          string   `json:"error,omitempty"`
	FetchedAt      int64    `json:"fetchedAt"`
	Content        string   `json:"content,omitempty"`
}

// Client talks to the coordinator's worker endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a coordinator API client. An empty apiKey sends no
// authentication header.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// RequestWork asks the coordinator for the next batch of URLs.
func (c *Client) RequestWork(ctx context.Context, runID, workerID string, batchSize int) (*coordinator.WorkBatch, error) {
	payload := map[string]any{
		"runId":     runID,
		"batchSize": batchSize,
		"workerId":  workerID,
	}

	var batch coordinator.WorkBatch
	if err := c.post(ctx, requestWorkPath, payload, &batch); err != nil {
		return nil, err
	}

	return &batch, nil
}

// ReportResult submits one fetch result.
func (c *Client) ReportResult(ctx context.Context, report ResultReport) error {
	return c.post(ctx, reportResultPath, report, nil)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	raw, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return fmt.Errorf("marshal request: %w", marshalErr)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if reqErr != nil {
		return fmt.Errorf("create request: %w", reqErr)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("post %s: %w", path, doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if readErr != nil {
		return fmt.Errorf("read response: %w", readErr)
	}

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp.StatusCode, body)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// decodeAPIError converts a failure envelope into an APIError, falling back
// to the raw status when the body is not an envelope.
func decodeAPIError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Code == "" {
		return &APIError{Status: status, Code: "UNKNOWN", Message: http.StatusText(status)}
	}

	return &APIError{Status: status, Code: envelope.Error.Code, Message: envelope.Error.Message}
}
