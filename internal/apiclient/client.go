// Package apiclient provides the operator-side HTTP client for the
// coordinator API. The runs CLI is its only consumer; workers use the
// leaner client in internal/worker.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

const (
	// DefaultBaseURL is where a locally started coordinator listens.
	DefaultBaseURL = "http://localhost:8080"
	// DefaultTimeout bounds every API request.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 4 * 1024 * 1024
)

// APIError is a decoded failure envelope from the coordinator.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s, http %d)", e.Message, e.Code, e.Status)
}

// Client is an HTTP client for the coordinator's operator endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the coordinator base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithAPIKey sets the key sent in the X-API-Key header. Empty sends none.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a coordinator API client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// ListRuns retrieves every run the coordinator knows about.
func (c *Client) ListRuns(ctx context.Context) ([]coordinator.RunListItem, error) {
	var response struct {
		Runs []coordinator.RunListItem `json:"runs"`
	}

	if err := c.get(ctx, "/api/runs", &response); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return response.Runs, nil
}

// Status retrieves the lightweight status view of one run.
func (c *Client) Status(ctx context.Context, runID string) (*coordinator.StatusView, error) {
	var view coordinator.StatusView
	if err := c.get(ctx, runPath(runID, "status"), &view); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	return &view, nil
}

// Stats retrieves the full stats view of one run, including the per-domain
// breakdown.
func (c *Client) Stats(ctx context.Context, runID string) (*coordinator.StatsView, error) {
	var view coordinator.StatsView
	if err := c.get(ctx, runPath(runID, "stats"), &view); err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	return &view, nil
}

// Errors retrieves the recent failures of one run, newest last.
func (c *Client) Errors(ctx context.Context, runID string) ([]coordinator.RecentError, error) {
	var response struct {
		Errors []coordinator.RecentError `json:"errors"`
	}

	if err := c.get(ctx, runPath(runID, "errors"), &response); err != nil {
		return nil, fmt.Errorf("get errors: %w", err)
	}

	return response.Errors, nil
}

// Seed submits seed URLs to a run. Depth and priority are optional; nil
// leaves the choice to the run.
func (c *Client) Seed(ctx context.Context, runID string, urls []string, depth, priority *int) (*coordinator.SeedResult, error) {
	payload := map[string]any{"urls": urls}
	if depth != nil {
		payload["depth"] = *depth
	}

	if priority != nil {
		payload["priority"] = *priority
	}

	var result coordinator.SeedResult
	if err := c.post(ctx, runPath(runID, "seed"), payload, &result); err != nil {
		return nil, fmt.Errorf("seed run: %w", err)
	}

	return &result, nil
}

// Configure applies config section updates to a run. Name optionally labels
// the applied config. The returned id identifies the applied configuration.
func (c *Client) Configure(ctx context.Context, runID string, updates map[string]any, name string) (string, error) {
	payload := map[string]any{"config": updates}
	if name != "" {
		payload["name"] = name
	}

	var response struct {
		ConfigID string `json:"configId"`
	}

	if err := c.post(ctx, runPath(runID, "configure"), payload, &response); err != nil {
		return "", fmt.Errorf("configure run: %w", err)
	}

	return response.ConfigID, nil
}

// Lifecycle action names accepted by Transition.
const (
	ActionStart  = "start"
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionCancel = "cancel"
	ActionReset  = "reset"
)

// Transition drives one lifecycle action and returns the resulting status.
func (c *Client) Transition(ctx context.Context, runID, action string) (string, error) {
	switch action {
	case ActionStart, ActionPause, ActionResume, ActionCancel, ActionReset:
	default:
		return "", fmt.Errorf("unknown lifecycle action %q", action)
	}

	var response struct {
		Status string `json:"status"`
	}

	if err := c.post(ctx, runPath(runID, action), nil, &response); err != nil {
		return "", fmt.Errorf("%s run: %w", action, err)
	}

	return response.Status, nil
}

// OnCron triggers one maintenance sweep and returns the queue size after it.
func (c *Client) OnCron(ctx context.Context, runID string) (int, error) {
	var response struct {
		QueueSize int `json:"queueSize"`
	}

	if err := c.post(ctx, runPath(runID, "on-cron"), nil, &response); err != nil {
		return 0, fmt.Errorf("trigger maintenance: %w", err)
	}

	return response.QueueSize, nil
}

// Delete removes a finished run and its page metadata. Runs that are still
// pending, running, or paused are rejected by the coordinator.
func (c *Client) Delete(ctx context.Context, runID string) error {
	path := "/api/runs/" + url.PathEscape(runID)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, http.NoBody)
	if reqErr != nil {
		return fmt.Errorf("create request: %w", reqErr)
	}

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}

	return nil
}

func runPath(runID, op string) string {
	return "/api/runs/" + url.PathEscape(runID) + "/" + op
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if reqErr != nil {
		return fmt.Errorf("create request: %w", reqErr)
	}

	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body := io.Reader(http.NoBody)

	if payload != nil {
		raw, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return fmt.Errorf("marshal request: %w", marshalErr)
		}

		body = bytes.NewReader(raw)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if reqErr != nil {
		return fmt.Errorf("create request: %w", reqErr)
	}

	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		var urlErr *url.Error
		if errors.As(doErr, &urlErr) && urlErr.Op == "dial" {
			return fmt.Errorf("cannot reach coordinator at %s: %w", c.baseURL, doErr)
		}

		return fmt.Errorf("request failed: %w", doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		return fmt.Errorf("read response: %w", readErr)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}

	if unmarshalErr := json.Unmarshal(body, out); unmarshalErr != nil {
		return fmt.Errorf("decode response: %w", unmarshalErr)
	}

	return nil
}

func decodeError(status int, body []byte) error {
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
