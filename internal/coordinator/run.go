package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/crawlplane/internal/logger"
	"github.com/jonesrussell/crawlplane/internal/urlnorm"
)

const (
	maxBatchSize       = 100
	maxRecentErrors    = 50
	maxDomainBreakdown = 50
)

// Run is the single-writer actor for one crawl run. Every public operation
// holds the run mutex from hydration through the final snapshot write, so
// the frontier, visited index, and domain scheduler never race. Different
// runs share nothing and proceed concurrently.
type Run struct {
	mu sync.Mutex

	id     string
	store  StateStore
	pages  PageWriter
	logger logger.Interface
	nowFn  func() int64
	randFn func() float64

	hydrated bool
	exists   bool

	state        *RunState
	frontier     *frontier
	visited      *visitedIndex
	domains      *domainScheduler
	recentErrors []RecentError
	scope        *scopeMatcher
	rate         rateWindow
}

func newRun(id string, cfg Config) *Run {
	return &Run{
		id:     id,
		store:  cfg.Store,
		pages:  cfg.Pages,
		logger: cfg.Logger.With("runId", id),
		nowFn:  cfg.Now,
		randFn: cfg.Rand,
	}
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// ensureHydrated loads the five snapshot slots on first touch. Missing slots
// are treated as empty; a missing snapshot means the run has never existed,
// which matters only to read-only operations.
func (r *Run) ensureHydrated(ctx context.Context) error {
	if r.hydrated {
		return nil
	}

	snap, err := r.store.LoadSnapshot(ctx, r.id)
	if err != nil {
		return fmt.Errorf("hydrate run %s: %w", r.id, err)
	}

	r.frontier = newFrontier()
	r.visited = newVisitedIndex()
	r.domains = newDomainScheduler()

	if snap == nil {
		r.state = &RunState{ID: r.id, Status: StatusPending, Config: DefaultConfig()}
		r.exists = false
	} else {
		r.state = snap.RunState
		if r.state == nil {
			r.state = &RunState{ID: r.id, Status: StatusPending}
		}

		if r.state.Config == nil {
			r.state.Config = DefaultConfig()
		}

		r.frontier.restore(snap.PendingQueue)
		r.visited.restore(snap.VisitedURLs)
		r.domains.restore(snap.DomainStates)
		r.recentErrors = snap.RecentErrors
		r.exists = true
	}

	scope, scopeErr := newScopeMatcher(&r.state.Config.DomainScope)
	if scopeErr != nil {
		return fmt.Errorf("hydrate run %s: %w", r.id, scopeErr)
	}

	r.scope = scope
	r.hydrated = true

	return nil
}

// persist writes all five slots atomically. If this fails the operation must
// not acknowledge success; in-memory state stays ahead of storage and is
// written again by the next successful mutation.
func (r *Run) persist(ctx context.Context) error {
	recent := r.recentErrors
	if recent == nil {
		recent = []RecentError{}
	}

	snap := &Snapshot{
		PendingQueue: r.frontier.snapshot(),
		VisitedURLs:  r.visited.snapshot(),
		DomainStates: r.domains.snapshot(),
		RunState:     r.state,
		RecentErrors: recent,
	}

	if err := r.store.SaveSnapshot(ctx, r.id, snap); err != nil {
		return fmt.Errorf("persist run %s: %w", r.id, err)
	}

	r.exists = true

	return nil
}

// requireExists guards read-only operations: a run nobody has mutated yet is
// not observable.
func (r *Run) requireExists() error {
	if !r.exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, r.id)
	}

	return nil
}

// SeedParams carries a seed request. Depth defaults to 0; Priority defaults
// to -depth so shallower URLs outrank deeper ones on dispatch.
type SeedParams struct {
	URLs     []string
	Depth    *int
	Priority *int
}

// Seed admits URLs into the frontier. Returns ErrQueueFull without mutating
// anything when the frontier is already at capacity.
func (r *Run) Seed(ctx context.Context, params SeedParams) (*SeedResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return nil, err
	}

	if r.frontier.size() >= r.state.Config.CrawlBehavior.MaxQueueSize {
		return nil, fmt.Errorf("%w: %d urls queued", ErrQueueFull, r.frontier.size())
	}

	depth := 0
	if params.Depth != nil {
		depth = *params.Depth
	}

	priority := -depth
	if params.Priority != nil {
		priority = *params.Priority
	}

	now := r.nowFn()
	result := &SeedResult{}

	for _, raw := range params.URLs {
		reason, admitted := r.admitURL(now, raw, depth, priority)
		if admitted {
			result.Admitted++
			continue
		}

		// Duplicates are skipped silently; they count as neither admitted
		// nor rejected.
		if reason == RejectAlreadyVisited || reason == RejectAlreadyQueued {
			r.logger.Debug("Seed URL skipped", "url", raw, "reason", reason)
			continue
		}

		result.Rejected++
		r.logger.Debug("Seed URL rejected", "url", raw, "reason", reason)
	}

	r.state.recomputeProgress(r.frontier.size())
	result.QueueSize = r.frontier.size()

	if result.Admitted > 0 {
		r.state.LastActivityAt = now

		if err := r.persist(ctx); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// admitURL runs the full admission pipeline for one URL. The checks run in a
// fixed order so a URL failing several rules reports the first one.
func (r *Run) admitURL(now int64, raw string, depth, priority int) (string, bool) {
	normalized, err := urlnorm.Normalize(raw)
	if err != nil {
		if errors.Is(err, urlnorm.ErrUnsupportedScheme) {
			return RejectUnsupportedScheme, false
		}

		return RejectInvalidURL, false
	}

	host, hostErr := urlnorm.Host(normalized)
	if hostErr != nil {
		return RejectInvalidURL, false
	}

	if !r.scope.hostAllowed(host) {
		return RejectDomainNotAllowed, false
	}

	if !r.scope.urlAllowed(normalized) {
		return RejectExcludedByPattern, false
	}

	if depth > r.state.Config.CrawlBehavior.MaxDepth {
		return RejectMaxDepthExceeded, false
	}

	if r.visited.contains(urlnorm.Hash(normalized)) {
		return RejectAlreadyVisited, false
	}

	if r.frontier.contains(normalized) {
		return RejectAlreadyQueued, false
	}

	if r.frontier.size() >= r.state.Config.CrawlBehavior.MaxQueueSize {
		return RejectQueueFull, false
	}

	r.frontier.push(QueuedURL{
		URL:      normalized,
		Domain:   host,
		Depth:    depth,
		AddedAt:  now,
		Priority: priority,
	})
	r.state.Stats.URLsQueued++

	return "", true
}

// Configure merges section updates into the run config and records which
// named config (if any) the run now follows. Allowed in any state; dispatched
// batches are unaffected because each batch carries its own policy snapshot.
func (r *Run) Configure(ctx context.Context, updates map[string]any, ref *ConfigRef) (*ConfigRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return nil, err
	}

	// Updates land on a clone first so a rejected merge cannot leave the
	// live config half-applied.
	next := r.state.Config.Clone()

	if err := next.Apply(updates); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	scope, scopeErr := newScopeMatcher(&next.DomainScope)
	if scopeErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, scopeErr)
	}

	r.state.Config = next
	r.scope = scope

	if ref == nil {
		ref = &ConfigRef{ID: uuid.NewString()}
	}

	r.state.ConfigID = ref.ID
	r.state.ConfigName = ref.Name

	if err := r.persist(ctx); err != nil {
		return nil, err
	}

	r.logger.Info("Run configured", "configId", ref.ID, "configName", ref.Name)

	return ref, nil
}

// Start moves a pending run to running. Starting a running run is an
// idempotent no-op; starting a finished run fails with ErrRunCompleted.
func (r *Run) Start(ctx context.Context) (RunStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return "", err
	}

	switch {
	case r.state.Status == StatusRunning:
		return StatusRunning, nil
	case IsTerminal(r.state.Status):
		return "", fmt.Errorf("%w: status %s", ErrRunCompleted, r.state.Status)
	case r.state.Status != StatusPending:
		return "", fmt.Errorf("%w: cannot start from %s", ErrInvalidRunState, r.state.Status)
	}

	now := r.nowFn()
	r.state.Status = StatusRunning
	r.state.StartedAt = now
	r.state.LastActivityAt = now
	r.state.Error = ""

	if err := r.persist(ctx); err != nil {
		return "", err
	}

	r.logger.Info("Run started")

	return StatusRunning, nil
}

// Pause suspends dispatch. Valid only while running.
func (r *Run) Pause(ctx context.Context) (RunStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return "", err
	}

	if r.state.Status != StatusRunning {
		return "", fmt.Errorf("%w: status %s", ErrRunNotRunning, r.state.Status)
	}

	r.state.Status = StatusPaused
	r.state.PausedAt = r.nowFn()

	if err := r.persist(ctx); err != nil {
		return "", err
	}

	r.logger.Info("Run paused")

	return StatusPaused, nil
}

// Resume continues a paused run. startedAt is preserved.
func (r *Run) Resume(ctx context.Context) (RunStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return "", err
	}

	if r.state.Status != StatusPaused {
		return "", fmt.Errorf("%w: cannot resume from %s", ErrInvalidRunState, r.state.Status)
	}

	r.state.Status = StatusRunning
	r.state.PausedAt = 0
	r.state.LastActivityAt = r.nowFn()

	if err := r.persist(ctx); err != nil {
		return "", err
	}

	r.logger.Info("Run resumed")

	return StatusRunning, nil
}

// Cancel terminates a run from any non-terminal state.
func (r *Run) Cancel(ctx context.Context) (RunStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return "", err
	}

	if IsTerminal(r.state.Status) {
		return "", fmt.Errorf("%w: status %s", ErrRunCompleted, r.state.Status)
	}

	r.state.Status = StatusCancelled
	r.state.CompletedAt = r.nowFn()

	if err := r.persist(ctx); err != nil {
		return "", err
	}

	r.logger.Info("Run cancelled")

	return StatusCancelled, nil
}

// Reset clears the frontier, visited index, domain states, recent errors,
// and statistics, returning the run to pending. The configuration is kept.
// External blob and page-metadata stores are not touched.
func (r *Run) Reset(ctx context.Context) (RunStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return "", err
	}

	r.frontier.clear()
	r.visited.clear()
	r.domains.clear()
	r.recentErrors = nil
	r.rate.events = nil

	r.state.Status = StatusPending
	r.state.Stats = CrawlStats{}
	r.state.Progress = Progress{}
	r.state.StartedAt = 0
	r.state.PausedAt = 0
	r.state.CompletedAt = 0
	r.state.LastActivityAt = 0
	r.state.Error = ""

	if err := r.persist(ctx); err != nil {
		return "", err
	}

	r.logger.Info("Run reset")

	return StatusPending, nil
}

// RequestWork dispatches a batch of URLs. Dispatched URLs enter the visited
// index immediately, so two work requests never hand out the same URL, and
// all URLs inside one batch belong to distinct domains.
func (r *Run) RequestWork(ctx context.Context, batchSize int, workerID string) (*WorkBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return nil, err
	}

	cfg := r.state.Config
	now := r.nowFn()

	if !CanDispatch(r.state.Status) {
		return r.emptyBatch(), nil
	}

	behavior := &cfg.CrawlBehavior
	if behavior.MaxPagesPerRun > 0 && r.state.Stats.URLsFetched >= behavior.MaxPagesPerRun {
		r.completeRun(now)

		if err := r.persist(ctx); err != nil {
			return nil, err
		}

		r.logger.Info("Run completed", "reason", "maxPagesPerRun reached")

		return r.emptyBatch(), nil
	}

	rateLimit := cfg.RateLimiting.GlobalRateLimitPerMinute
	if rateLimit > 0 && r.rate.count(now) >= rateLimit {
		return r.emptyBatch(), nil
	}

	effectiveBatch := behavior.DefaultBatchSize
	if batchSize > 0 {
		effectiveBatch = batchSize
	}

	if effectiveBatch > maxBatchSize {
		effectiveBatch = maxBatchSize
	}

	batch, remaining := r.partition(now, effectiveBatch)
	r.frontier.replace(remaining)

	autoCompleted := false
	if len(batch) == 0 && len(remaining) == 0 {
		r.completeRun(now)

		autoCompleted = true
	}

	if len(batch) > 0 {
		r.rate.record(now, len(batch))
		r.state.LastActivityAt = now
		r.state.recomputeProgress(r.frontier.size())
	}

	if len(batch) > 0 || autoCompleted {
		if err := r.persist(ctx); err != nil {
			return nil, err
		}
	}

	if autoCompleted {
		r.logger.Info("Run completed", "reason", "queue drained")
	}

	items := make([]WorkItem, 0, len(batch))
	for i := range batch {
		items = append(items, WorkItem{
			URL:        batch[i].URL,
			Depth:      batch[i].Depth,
			Priority:   batch[i].Priority,
			RetryCount: batch[i].RetryCount,
		})
	}

	r.logger.Debug("Work dispatched",
		"workerId", workerID,
		"batch", len(items),
		"queueSize", r.frontier.size(),
	)

	return &WorkBatch{
		URLs:      items,
		QueueSize: r.frontier.size(),
		Config:    cfg.WorkerConfig(),
	}, nil
}

// partition walks the dispatch-ordered frontier once, splitting it into the
// batch to hand out and the remainder. Taking an item inserts its hash into
// the visited index and stamps the domain's lastFetchAt.
func (r *Run) partition(now int64, effectiveBatch int) (batch, remaining []QueuedURL) {
	r.frontier.sortForDispatch()

	rate := &r.state.Config.RateLimiting
	batchDomains := make(map[string]struct{}, effectiveBatch)

	for _, item := range r.frontier.items {
		if len(batch) == effectiveBatch {
			remaining = append(remaining, item)
			continue
		}

		state := r.domains.get(item.Domain)

		if state.BackoffUntil > now {
			remaining = append(remaining, item)
			continue
		}

		if now-state.LastFetchAt < r.effectiveMinDelay(rate) {
			remaining = append(remaining, item)
			continue
		}

		if _, taken := batchDomains[item.Domain]; taken {
			remaining = append(remaining, item)
			continue
		}

		r.visited.insert(urlnorm.Hash(item.URL))
		state.LastFetchAt = now
		state.RequestCount++
		batchDomains[item.Domain] = struct{}{}
		batch = append(batch, item)
	}

	return batch, remaining
}

// effectiveMinDelay applies jitter to the per-domain minimum delay, drawn
// fresh for every politeness evaluation so workers do not synchronize.
func (r *Run) effectiveMinDelay(rate *RateLimitingConfig) int64 {
	if rate.JitterFactor <= 0 {
		return rate.MinDomainDelayMs
	}

	factor := 1 + rate.JitterFactor*(2*r.randFn()-1)

	return int64(float64(rate.MinDomainDelayMs) * factor)
}

func (r *Run) emptyBatch() *WorkBatch {
	return &WorkBatch{
		URLs:      []WorkItem{},
		QueueSize: r.frontier.size(),
		Config:    r.state.Config.WorkerConfig(),
	}
}

func (r *Run) completeRun(now int64) {
	r.state.Status = StatusCompleted
	r.state.CompletedAt = now
}

// ReportResult applies a worker's fetch result: domain health and backoff,
// run counters, discovered-link admission, and the progress projection. The
// page-metadata append happens after the snapshot write and is best-effort.
func (r *Run) ReportResult(ctx context.Context, report Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return err
	}

	normalized, err := urlnorm.Normalize(report.URL)
	if err != nil {
		return fmt.Errorf("%w: report url: %s", ErrInvalidRequest, err)
	}

	domain, hostErr := urlnorm.Host(normalized)
	if hostErr != nil {
		return fmt.Errorf("%w: report url: %s", ErrInvalidRequest, hostErr)
	}

	cfg := r.state.Config
	now := r.nowFn()
	failed := report.Error != "" || report.Status >= 400

	if failed {
		r.domains.recordFailure(domain, now, &cfg.RateLimiting)
		r.state.recordFetchFailure()
		r.pushRecentError(RecentError{
			URL:        normalized,
			Domain:     domain,
			StatusCode: report.Status,
			Message:    failureMessage(report),
			Timestamp:  now,
		})
	} else {
		r.domains.recordSuccess(domain, report.ResponseTimeMs, report.ContentSize)
		r.state.recordFetchSuccess(now, report.ResponseTimeMs, report.ContentSize)
	}

	if cfg.CrawlBehavior.FollowLinks && len(report.DiscoveredURLs) > 0 {
		r.admitDiscovered(now, domain, report.Depth, report.DiscoveredURLs)
	}

	r.state.recomputeProgress(r.frontier.size())
	r.state.LastActivityAt = now

	if persistErr := r.persist(ctx); persistErr != nil {
		return persistErr
	}

	if r.pages != nil {
		page := PageRecord{
			RunID:          r.id,
			URL:            normalized,
			Domain:         domain,
			Status:         report.Status,
			ContentHash:    report.ContentHash,
			ContentSize:    report.ContentSize,
			ResponseTimeMs: report.ResponseTimeMs,
			FetchedAt:      report.FetchedAt,
			Error:          report.Error,
		}
		if page.FetchedAt == 0 {
			page.FetchedAt = now
		}

		if upsertErr := r.pages.UpsertPage(ctx, page); upsertErr != nil {
			r.logger.Warn("Page metadata upsert failed", "url", normalized, "error", upsertErr)
		}
	}

	return nil
}

// admitDiscovered feeds links found by a worker back into the frontier at
// parent depth + 1, shallower pages winning dispatch priority.
func (r *Run) admitDiscovered(now int64, sourceDomain string, parentDepth int, discovered []string) {
	cfg := r.state.Config
	depth := parentDepth + 1

	for _, raw := range discovered {
		if cfg.CrawlBehavior.SameDomainOnly {
			host, hostErr := urlnorm.Host(raw)
			if hostErr != nil || host != sourceDomain {
				continue
			}
		}

		reason, admitted := r.admitURL(now, raw, depth, -depth)
		if !admitted && reason != RejectAlreadyVisited && reason != RejectAlreadyQueued {
			r.logger.Debug("Discovered URL rejected", "url", raw, "reason", reason)
		}
	}
}

func failureMessage(report Report) string {
	if report.Error != "" {
		return report.Error
	}

	return fmt.Sprintf("HTTP %d", report.Status)
}

func (r *Run) pushRecentError(entry RecentError) {
	r.recentErrors = append(r.recentErrors, entry)

	if len(r.recentErrors) > maxRecentErrors {
		r.recentErrors = r.recentErrors[len(r.recentErrors)-maxRecentErrors:]
	}
}

// Stats returns the operator stats view with a per-domain breakdown capped
// at the busiest domains.
func (r *Run) Stats(ctx context.Context) (*StatsView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return nil, err
	}

	if err := r.requireExists(); err != nil {
		return nil, err
	}

	r.state.recomputeProgress(r.frontier.size())

	return &StatsView{
		Run: RunSummary{
			ID:          r.state.ID,
			Status:      r.state.Status,
			StartedAt:   r.state.StartedAt,
			CompletedAt: r.state.CompletedAt,
		},
		Stats:           r.state.Stats,
		Progress:        r.state.Progress,
		DomainBreakdown: r.domains.breakdown(maxDomainBreakdown),
	}, nil
}

// Status returns the lightweight run status view.
func (r *Run) Status(ctx context.Context) (*StatusView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return nil, err
	}

	if err := r.requireExists(); err != nil {
		return nil, err
	}

	view := &StatusView{
		Status:         r.state.Status,
		QueueSize:      r.frontier.size(),
		VisitedCount:   r.visited.size(),
		DomainsTracked: r.domains.size(),
	}

	if r.state.ConfigID != "" {
		view.Config = &ConfigRef{ID: r.state.ConfigID, Name: r.state.ConfigName}
	}

	return view, nil
}

// Errors returns the recent-failures ring, newest last.
func (r *Run) Errors(ctx context.Context) ([]RecentError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return nil, err
	}

	if err := r.requireExists(); err != nil {
		return nil, err
	}

	out := make([]RecentError, len(r.recentErrors))
	copy(out, r.recentErrors)

	return out, nil
}

// Overview returns the run's list entry for multi-run views.
func (r *Run) Overview(ctx context.Context) (*RunListItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return nil, err
	}

	if err := r.requireExists(); err != nil {
		return nil, err
	}

	return &RunListItem{
		ID:        r.state.ID,
		Status:    r.state.Status,
		QueueSize: r.frontier.size(),
		Stats:     r.state.Stats,
	}, nil
}

// Maintenance runs the periodic hygiene pass: clear elapsed backoffs, evict
// idle domain states, flag a stalled run on its error field without touching
// its status, and persist. Returns the queue size.
func (r *Run) Maintenance(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return 0, err
	}

	now := r.nowFn()
	cleared := r.domains.clearElapsedBackoffs(now)
	evicted := r.domains.evictStale(now)

	if r.state.Status == StatusRunning &&
		r.state.LastActivityAt > 0 &&
		r.state.LastActivityAt < now-stalledAfterMs {
		r.state.Error = fmt.Sprintf("stalled: no crawl activity since %s",
			time.UnixMilli(r.state.LastActivityAt).UTC().Format(time.RFC3339))
		r.logger.Warn("Run appears stalled", "lastActivityAt", r.state.LastActivityAt)
	}

	if err := r.persist(ctx); err != nil {
		return 0, err
	}

	r.logger.Debug("Maintenance tick",
		"backoffsCleared", cleared,
		"domainsEvicted", evicted,
		"queueSize", r.frontier.size(),
	)

	return r.frontier.size(), nil
}

// delete removes the persisted snapshot of a terminal run and dehydrates the
// actor, so any later touch of the same id hydrates a fresh pending run.
// Active runs must be cancelled (or reset) first.
func (r *Run) delete(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureHydrated(ctx); err != nil {
		return err
	}

	if err := r.requireExists(); err != nil {
		return err
	}

	if !IsTerminal(r.state.Status) {
		return fmt.Errorf("%w: cannot delete while %s", ErrInvalidRunState, r.state.Status)
	}

	if err := r.store.DeleteSnapshot(ctx, r.id); err != nil {
		return fmt.Errorf("delete run %s: %w", r.id, err)
	}

	r.hydrated = false
	r.exists = false
	r.state = nil
	r.frontier = nil
	r.visited = nil
	r.domains = nil
	r.recentErrors = nil
	r.scope = nil
	r.rate.events = nil

	r.logger.Info("Run deleted")

	return nil
}
