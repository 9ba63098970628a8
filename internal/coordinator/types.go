package coordinator

// QueuedURL is a frontier entry: a normalized URL admitted but not yet
// dispatched to a worker. No two entries in one frontier share the same URL.
type QueuedURL struct {
	URL        string `json:"url"`
	Domain     string `json:"domain"`
	Depth      int    `json:"depth"`
	AddedAt    int64  `json:"addedAt"`
	Priority   int    `json:"priority"`
	RetryCount int    `json:"retryCount"`
}

// WorkItem is a dispatched frontier entry as handed to a worker. Depth is
// echoed back on the result report so discovered links inherit the right
// depth.
type WorkItem struct {
	URL        string `json:"url"`
	Depth      int    `json:"depth"`
	Priority   int    `json:"priority"`
	RetryCount int    `json:"retryCount"`
}

// DomainState tracks per-domain politeness and health counters. Created on
// first encounter, mutated on dispatch and on result report.
type DomainState struct {
	LastFetchAt         int64 `json:"lastFetchAt"`
	RequestCount        int64 `json:"requestCount"`
	SuccessCount        int64 `json:"successCount"`
	ErrorCount          int64 `json:"errorCount"`
	BackoffUntil        int64 `json:"backoffUntil"`
	TotalResponseTimeMs int64 `json:"totalResponseTimeMs"`
	BytesDownloaded     int64 `json:"bytesDownloaded"`
}

// RecentError is one entry of the recent-failures ring surfaced to operators.
type RecentError struct {
	URL        string `json:"url"`
	Domain     string `json:"domain"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}

// CrawlStats are the run counters. Conservation holds at every observable
// moment: urlsQueued >= urlsFetched + urlsFailed >= 0.
type CrawlStats struct {
	URLsQueued        int64   `json:"urlsQueued"`
	URLsFetched       int64   `json:"urlsFetched"`
	URLsFailed        int64   `json:"urlsFailed"`
	BytesDownloaded   int64   `json:"bytesDownloaded"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	PagesPerMinute    float64 `json:"pagesPerMinute"`
}

// Progress is the operator-facing completion projection derived from stats
// and the current queue size.
type Progress struct {
	Percentage                int   `json:"percentage"`
	EstimatedSecondsRemaining int64 `json:"estimatedSecondsRemaining"`
}

// RunState is the lifecycle record of one run. All timestamps are unix
// milliseconds; zero means unset.
type RunState struct {
	ID             string       `json:"id"`
	Status         RunStatus    `json:"status"`
	Config         *CrawlConfig `json:"config"`
	ConfigID       string       `json:"configId,omitempty"`
	ConfigName     string       `json:"configName,omitempty"`
	Stats          CrawlStats   `json:"stats"`
	Progress       Progress     `json:"progress"`
	StartedAt      int64        `json:"startedAt,omitempty"`
	PausedAt       int64        `json:"pausedAt,omitempty"`
	CompletedAt    int64        `json:"completedAt,omitempty"`
	LastActivityAt int64        `json:"lastActivityAt,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// Snapshot is the five-slot durable image of a run. Saving it is atomic:
// after a crash the next hydration sees either all five slots from before an
// operation or all five from after it.
type Snapshot struct {
	PendingQueue []QueuedURL             `json:"pendingQueue"`
	VisitedURLs  []uint32                `json:"visitedUrls"`
	DomainStates map[string]*DomainState `json:"domainStates"`
	RunState     *RunState               `json:"runState"`
	RecentErrors []RecentError           `json:"recentErrors"`
}

// Report is a worker's result for one dispatched URL. Depth echoes the depth
// of the dispatched work item. A report is a failure iff Error is non-empty
// or Status >= 400.
type Report struct {
	URL            string
	Status         int
	Depth          int
	ContentHash    string
	ContentSize    int64
	ResponseTimeMs int64
	DiscoveredURLs []string
	Error          string
	FetchedAt      int64
}

// SeedResult summarizes one seed call.
type SeedResult struct {
	Admitted  int `json:"admitted"`
	Rejected  int `json:"rejected"`
	QueueSize int `json:"queueSize"`
}

// WorkBatch is the response to a work request: the dispatched items, the
// remaining queue size, and the policy snapshot the worker fetches under.
type WorkBatch struct {
	URLs      []WorkItem   `json:"urls"`
	QueueSize int          `json:"queueSize"`
	Config    WorkerConfig `json:"config"`
}

// RunSummary is the run identity block of a stats view.
type RunSummary struct {
	ID          string    `json:"id"`
	Status      RunStatus `json:"status"`
	StartedAt   int64     `json:"startedAt,omitempty"`
	CompletedAt int64     `json:"completedAt,omitempty"`
}

// DomainBreakdownEntry is one row of the per-domain stats breakdown.
type DomainBreakdownEntry struct {
	Domain          string `json:"domain"`
	RequestCount    int64  `json:"requestCount"`
	SuccessCount    int64  `json:"successCount"`
	ErrorCount      int64  `json:"errorCount"`
	BackoffUntil    int64  `json:"backoffUntil,omitempty"`
	LastFetchAt     int64  `json:"lastFetchAt,omitempty"`
	BytesDownloaded int64  `json:"bytesDownloaded"`
}

// StatsView is the full operator stats response.
type StatsView struct {
	Run             RunSummary             `json:"run"`
	Stats           CrawlStats             `json:"stats"`
	Progress        Progress               `json:"progress"`
	DomainBreakdown []DomainBreakdownEntry `json:"domainBreakdown"`
}

// ConfigRef identifies the named configuration a run was configured with.
type ConfigRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// StatusView is the lightweight run status response.
type StatusView struct {
	Status         RunStatus  `json:"status"`
	QueueSize      int        `json:"queueSize"`
	VisitedCount   int        `json:"visitedCount"`
	DomainsTracked int        `json:"domainsTracked"`
	Config         *ConfigRef `json:"config,omitempty"`
}

// RunListItem is one row of a multi-run listing.
type RunListItem struct {
	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	QueueSize int        `json:"queueSize"`
	Stats     CrawlStats `json:"stats"`
}

// PageRecord is the row appended to the external page-metadata store after a
// result report has been persisted. Keyed by (runId, url).
type PageRecord struct {
	RunID          string `db:"run_id"           json:"runId"`
	URL            string `db:"url"              json:"url"`
	Domain         string `db:"domain"           json:"domain"`
	Status         int    `db:"status"           json:"status"`
	ContentHash    string `db:"content_hash"     json:"contentHash,omitempty"`
	ContentSize    int64  `db:"content_size"     json:"contentSize"`
	ResponseTimeMs int64  `db:"response_time_ms" json:"responseTimeMs"`
	FetchedAt      int64  `db:"fetched_at"       json:"fetchedAt"`
	Error          string `db:"error_message"    json:"error,omitempty"`
}
