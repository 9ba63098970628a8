package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

// ErrTooManyRedirects is returned when the redirect hop limit is exceeded.
var ErrTooManyRedirects = errors.New("too many redirects")

// retryDelay is the pause between transport-failure retries of one URL.
const retryDelay = 500 * time.Millisecond

// acceptHeader mirrors what browsers send for page navigation.
const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// fallbackMaxBodyBytes bounds response reads when the policy sets no limit.
const fallbackMaxBodyBytes = 10 * 1024 * 1024 // 10 MB

// fetchedPage is the raw outcome of one page GET.
type fetchedPage struct {
	status         int
	contentType    string
	body           []byte
	responseTimeMs int64

	// skipReason is set when content policy stopped the body read; the
	// fetch itself succeeded.
	skipReason string
}

// redirectPolicy returns a CheckRedirect function that follows redirects
// until the hop count reaches maxHops. maxHops <= 0 keeps the http client's
// default limit.
func redirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if maxHops > 0 && len(via) >= maxHops {
			return ErrTooManyRedirects
		}
		return nil
	}
}

// clientFor builds an http.Client for one batch's policy snapshot, sharing
// the pool's transport so connections are reused across batches.
func clientFor(transport http.RoundTripper, cfg *coordinator.WorkerConfig) *http.Client {
	client := &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
	}

	if cfg.FollowRedirects {
		client.CheckRedirect = redirectPolicy(cfg.MaxRedirects)
	} else {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client
}

// fetchPage GETs one URL under the batch policy, retrying transport failures
// up to the policy's retry budget. HTTP error statuses are results, not
// retryable failures.
func fetchPage(ctx context.Context, httpClient *http.Client, cfg *coordinator.WorkerConfig, pageURL string) (*fetchedPage, error) {
	attempts := cfg.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		page, err := doFetch(ctx, httpClient, cfg, pageURL)
		if err == nil {
			return page, nil
		}

		lastErr = err
	}

	return nil, lastErr
}

// doFetch performs a single GET attempt.
func doFetch(ctx context.Context, httpClient *http.Client, cfg *coordinator.WorkerConfig, pageURL string) (*fetchedPage, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf("create request: %w", reqErr)
	}

	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", acceptHeader)
	for key, value := range cfg.CustomHeaders {
		req.Header.Set(key, value)
	}

	start := time.Now()

	resp, doErr := httpClient.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("http fetch: %w", doErr)
	}
	defer resp.Body.Close()

	page := &fetchedPage{
		status:         resp.StatusCode,
		contentType:    resp.Header.Get("Content-Type"),
		responseTimeMs: time.Since(start).Milliseconds(),
	}

	if !contentTypeAllowed(cfg.AllowedContentTypes, page.contentType) {
		page.skipReason = fmt.Sprintf("unsupported content type %q", page.contentType)
		return page, nil
	}

	maxBytes := cfg.MaxContentSizeBytes
	if maxBytes <= 0 {
		maxBytes = fallbackMaxBodyBytes
	}

	if resp.ContentLength > maxBytes {
		page.skipReason = fmt.Sprintf("content too large (%d bytes)", resp.ContentLength)
		return page, nil
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if readErr != nil {
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	if int64(len(body)) > maxBytes {
		page.skipReason = fmt.Sprintf("content too large (over %d bytes)", maxBytes)
		return page, nil
	}

	page.body = body
	page.responseTimeMs = time.Since(start).Milliseconds()

	return page, nil
}

// contentTypeAllowed matches a Content-Type header against the policy list.
// An empty list allows everything.
func contentTypeAllowed(allowed []string, contentType string) bool {
	if len(allowed) == 0 {
		return true
	}

	for _, candidate := range allowed {
		if strings.Contains(contentType, candidate) {
			return true
		}
	}

	return false
}
