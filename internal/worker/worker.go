package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
	"github.com/jonesrussell/crawlplane/internal/logger"
)

const (
	defaultIdleDelay       = 5 * time.Second
	defaultMaxEmptyBatches = 3
	robotsClientTimeout    = 10 * time.Second
)

// PoolStats are the worker's cumulative fetch counters.
type PoolStats struct {
	Crawled         int64 `json:"crawled"`
	Failed          int64 `json:"failed"`
	LinksFound      int64 `json:"linksFound"`
	BytesDownloaded int64 `json:"bytesDownloaded"`
}

// PoolConfig configures a worker pool.
type PoolConfig struct {
	RunID string

	// WorkerID identifies this worker to the coordinator. Generated when
	// empty.
	WorkerID string

	// BatchSize is the number of URLs requested per poll; zero lets the
	// coordinator pick its default. The batch is also the fetch concurrency
	// bound, since every URL in it belongs to a distinct domain.
	BatchSize int

	// IdleDelay is the pause after an empty batch before polling again.
	IdleDelay time.Duration

	// MaxEmptyBatches is how many consecutive empty batches end the run.
	MaxEmptyBatches int
}

// Pool polls the coordinator for work and fetches pages until the run stops
// handing URLs out.
type Pool struct {
	client    *Client
	robots    *RobotsChecker
	log       logger.Interface
	transport http.RoundTripper

	runID           string
	workerID        string
	batchSize       int
	idleDelay       time.Duration
	maxEmptyBatches int

	stats PoolStats
}

// NewPool creates a worker pool polling for the given run.
func NewPool(client *Client, log logger.Interface, cfg PoolConfig) *Pool {
	if cfg.WorkerID == "" {
		cfg.WorkerID = uuid.NewString()
	}

	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = defaultIdleDelay
	}

	if cfg.MaxEmptyBatches <= 0 {
		cfg.MaxEmptyBatches = defaultMaxEmptyBatches
	}

	transport := newTransport()

	return &Pool{
		client:          client,
		robots:          NewRobotsChecker(&http.Client{Timeout: robotsClientTimeout}, 0),
		log:             log,
		transport:       transport,
		runID:           cfg.RunID,
		workerID:        cfg.WorkerID,
		batchSize:       cfg.BatchSize,
		idleDelay:       cfg.IdleDelay,
		maxEmptyBatches: cfg.MaxEmptyBatches,
	}
}

// Stats returns the counters accumulated so far. Call after Run returns.
func (p *Pool) Stats() PoolStats {
	return p.stats
}

// Run polls for work until the configured number of consecutive empty
// batches signals the run is drained, or the context is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("Worker started",
		"runId", p.runID,
		"workerId", p.workerID,
		"batchSize", p.batchSize,
	)

	emptyBatches := 0

	for emptyBatches < p.maxEmptyBatches {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := p.client.RequestWork(ctx, p.runID, p.workerID, p.batchSize)
		if err != nil {
			p.log.Error("Work request failed", "error", err)
		}

		if err != nil || len(batch.URLs) == 0 {
			emptyBatches++
			p.log.Info("No work available", "attempt", emptyBatches, "max", p.maxEmptyBatches)

			if emptyBatches < p.maxEmptyBatches && p.sleepOrCancel(ctx) {
				return ctx.Err()
			}

			continue
		}

		emptyBatches = 0
		p.log.Info("Batch received", "urls", len(batch.URLs), "queueSize", batch.QueueSize)
		p.processBatch(ctx, batch)
	}

	p.log.Info("No more work available, stopping",
		"runId", p.runID,
		"crawled", p.stats.Crawled,
		"failed", p.stats.Failed,
		"links", p.stats.LinksFound,
		"bytes", p.stats.BytesDownloaded,
	)

	return nil
}

// sleepOrCancel sleeps for the idle delay or returns true if the context is
// cancelled first.
func (p *Pool) sleepOrCancel(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(p.idleDelay):
		return false
	}
}

// processBatch fetches every URL in the batch concurrently under its frozen
// policy snapshot, then reports results in dispatch order.
func (p *Pool) processBatch(ctx context.Context, batch *coordinator.WorkBatch) {
	cfg := &batch.Config
	httpClient := clientFor(p.transport, cfg)

	results := make([]ResultReport, len(batch.URLs))

	var wg sync.WaitGroup

	for i := range batch.URLs {
		wg.Add(1)

		go func(i int, item coordinator.WorkItem) {
			defer wg.Done()
			results[i] = p.crawl(ctx, httpClient, cfg, item)
		}(i, batch.URLs[i])
	}

	wg.Wait()

	for i := range results {
		p.recordResult(&results[i])

		if reportErr := p.client.ReportResult(ctx, results[i]); reportErr != nil {
			p.log.Warn("Result report failed", "url", results[i].URL, "error", reportErr)
		}
	}

	p.log.Info("Batch finished",
		"crawled", p.stats.Crawled,
		"failed", p.stats.Failed,
		"links", p.stats.LinksFound,
		"bytes", p.stats.BytesDownloaded,
	)
}

// recordResult updates the pool counters for one report.
func (p *Pool) recordResult(report *ResultReport) {
	if report.Error != "" {
		p.stats.Failed++
		return
	}

	p.stats.Crawled++
	p.stats.LinksFound += int64(len(report.DiscoveredURLs))
	p.stats.BytesDownloaded += report.ContentSize
}

// crawl processes one work item into a result report.
func (p *Pool) crawl(ctx context.Context, httpClient *http.Client, cfg *coordinator.WorkerConfig, item coordinator.WorkItem) ResultReport {
	report := ResultReport{
		RunID:     p.runID,
		URL:       item.URL,
		Depth:     item.Depth,
		FetchedAt: time.Now().UnixMilli(),
	}

	if cfg.RespectRobotsTxt {
		allowed, robotsErr := p.robots.IsAllowed(ctx, item.URL, cfg.UserAgent)
		if robotsErr != nil {
			report.Error = fmt.Sprintf("robots check failed: %s", robotsErr)
			return report
		}

		if !allowed {
			report.Error = "blocked by robots.txt"
			return report
		}
	}

	page, fetchErr := fetchPage(ctx, httpClient, cfg, item.URL)
	if fetchErr != nil {
		report.Error = fetchErr.Error()
		return report
	}

	report.Status = page.status
	report.ResponseTimeMs = page.responseTimeMs

	if page.status >= http.StatusBadRequest {
		report.Error = fmt.Sprintf("http status %d", page.status)
		return report
	}

	if page.skipReason != "" {
		report.Error = "skipped: " + page.skipReason
		return report
	}

	report.ContentSize = int64(len(page.body))

	sum := sha256.Sum256(page.body)
	report.ContentHash = hex.EncodeToString(sum[:])

	data, extractErr := extractPage(item.URL, page.body)
	if extractErr != nil {
		p.log.Warn("Extraction failed", "url", item.URL, "error", extractErr)
	} else {
		report.DiscoveredURLs = data.Links
		p.log.Debug("Page fetched",
			"url", item.URL,
			"title", data.Title,
			"links", len(data.Links),
		)
	}

	if cfg.StoreContent {
		report.Content = string(page.body)
	}

	return report
}
