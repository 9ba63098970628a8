package api

// errorBody is the error half of the failure envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// errorEnvelope is the uniform failure response. Success is always false.
type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// seedRequest is the POST /api/runs/:runId/seed payload. Depth and Priority
// are optional; the run decides the defaults.
type seedRequest struct {
	URLs     []string `json:"urls"`
	Depth    *int     `json:"depth"`
	Priority *int     `json:"priority"`
}

// configureRequest is the POST /api/runs/:runId/configure payload. Either an
// inline config section map or the id of a stored config, never both. Name
// labels an inline config on the run's status view.
type configureRequest struct {
	Config   map[string]any `json:"config"`
	ConfigID string         `json:"configId"`
	Name     string         `json:"name"`
}

// requestWorkRequest is the POST /api/request-work payload.
type requestWorkRequest struct {
	RunID     string `json:"runId"`
	BatchSize int    `json:"batchSize"`
	WorkerID  string `json:"workerId"`
}

// reportResultRequest is the POST /api/report-result payload. Content is the
// optional inline page HTML, stored to the blob store before the report is
// applied.
type reportResultRequest struct {
	RunID          string   `json:"runId"`
	URL            string   `json:"url"`
	Status         int      `json:"status"`
	Depth          int      `json:"depth"`
	ContentHash    string   `json:"contentHash"`
	ContentSize    int64    `json:"contentSize"`
	ResponseTimeMs int64    `json:"responseTimeMs"`
	DiscoveredURLs []string `json:"discoveredUrls"`
	Error          string   `json:"error"`
	FetchedAt      int64    `json:"fetchedAt"`
	Content        string   `json:"content"`
}

// saveConfigRequest is the payload for creating or updating a stored config.
// Config holds section maps in the same shape configure accepts.
type saveConfigRequest struct {
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
}
