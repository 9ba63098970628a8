package coordinator

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mitchellh/mapstructure"

	"github.com/jonesrussell/crawlplane/internal/urlnorm"
)

// Default configuration values. Workers learn the relevant subset through
// the WorkerConfig projection attached to every work batch.
const (
	defaultMinDomainDelayMs       = int64(1000)
	defaultMaxDomainDelayMs       = int64(60000)
	defaultErrorBackoffMultiplier = 2.0
	defaultJitterFactor           = 0.1
	defaultMaxConcurrentRequests  = 16
	defaultMaxContentSizeBytes    = int64(10 * 1024 * 1024)
	defaultMaxDepth               = 10
	defaultMaxQueueSize           = 100000
	defaultBatchSize              = 10
	defaultRequestTimeoutMs       = int64(30000)
	defaultRetryCount             = 3
	defaultMaxRedirects           = 5
	defaultUserAgent              = "CloudflareCrawler/1.0"
)

var errUnknownConfigSection = errors.New("unknown config section")

// RateLimitingConfig paces dispatch per domain and globally.
type RateLimitingConfig struct {
	MinDomainDelayMs         int64   `json:"minDomainDelayMs" mapstructure:"minDomainDelayMs"`
	MaxDomainDelayMs         int64   `json:"maxDomainDelayMs" mapstructure:"maxDomainDelayMs"`
	ErrorBackoffMultiplier   float64 `json:"errorBackoffMultiplier" mapstructure:"errorBackoffMultiplier"`
	JitterFactor             float64 `json:"jitterFactor" mapstructure:"jitterFactor"`
	MaxConcurrentRequests    int     `json:"maxConcurrentRequests" mapstructure:"maxConcurrentRequests"`
	GlobalRateLimitPerMinute int     `json:"globalRateLimitPerMinute" mapstructure:"globalRateLimitPerMinute"`
}

// ContentFilteringConfig bounds what workers download and keep.
type ContentFilteringConfig struct {
	MaxContentSizeBytes int64    `json:"maxContentSizeBytes" mapstructure:"maxContentSizeBytes"`
	AllowedContentTypes []string `json:"allowedContentTypes" mapstructure:"allowedContentTypes"`
	SkipBinaryFiles     bool     `json:"skipBinaryFiles" mapstructure:"skipBinaryFiles"`
	StoreContent        bool     `json:"storeContent" mapstructure:"storeContent"`
}

// CrawlBehaviorConfig controls admission limits, dispatch sizing, and worker
// fetch policy.
type CrawlBehaviorConfig struct {
	MaxDepth         int               `json:"maxDepth" mapstructure:"maxDepth"`
	MaxQueueSize     int               `json:"maxQueueSize" mapstructure:"maxQueueSize"`
	MaxPagesPerRun   int64             `json:"maxPagesPerRun" mapstructure:"maxPagesPerRun"`
	DefaultBatchSize int               `json:"defaultBatchSize" mapstructure:"defaultBatchSize"`
	RequestTimeoutMs int64             `json:"requestTimeoutMs" mapstructure:"requestTimeoutMs"`
	RetryCount       int               `json:"retryCount" mapstructure:"retryCount"`
	RespectRobotsTxt bool              `json:"respectRobotsTxt" mapstructure:"respectRobotsTxt"`
	FollowRedirects  bool              `json:"followRedirects" mapstructure:"followRedirects"`
	MaxRedirects     int               `json:"maxRedirects" mapstructure:"maxRedirects"`
	UserAgent        string            `json:"userAgent" mapstructure:"userAgent"`
	CustomHeaders    map[string]string `json:"customHeaders" mapstructure:"customHeaders"`
	FollowLinks      bool              `json:"followLinks" mapstructure:"followLinks"`
	SameDomainOnly   bool              `json:"sameDomainOnly" mapstructure:"sameDomainOnly"`
}

// DomainScopeConfig restricts which hosts and URL patterns are admitted.
type DomainScopeConfig struct {
	AllowedDomains    []string `json:"allowedDomains" mapstructure:"allowedDomains"`
	BlockedDomains    []string `json:"blockedDomains" mapstructure:"blockedDomains"`
	IncludePatterns   []string `json:"includePatterns" mapstructure:"includePatterns"`
	ExcludePatterns   []string `json:"excludePatterns" mapstructure:"excludePatterns"`
	IncludeSubdomains bool     `json:"includeSubdomains" mapstructure:"includeSubdomains"`
}

// RenderingConfig is accepted and persisted for forward compatibility.
// JavaScript rendering is not performed by this coordinator or its workers.
type RenderingConfig struct {
	Enabled   bool  `json:"enabled" mapstructure:"enabled"`
	TimeoutMs int64 `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// CrawlConfig is the full five-section run configuration. Updates are a
// shallow merge within each section: fields absent from an update retain
// their prior values.
type CrawlConfig struct {
	RateLimiting     RateLimitingConfig     `json:"rateLimiting" mapstructure:"rateLimiting"`
	ContentFiltering ContentFilteringConfig `json:"contentFiltering" mapstructure:"contentFiltering"`
	CrawlBehavior    CrawlBehaviorConfig    `json:"crawlBehavior" mapstructure:"crawlBehavior"`
	DomainScope      DomainScopeConfig      `json:"domainScope" mapstructure:"domainScope"`
	Rendering        RenderingConfig        `json:"rendering" mapstructure:"rendering"`
}

// WorkerConfig is the policy subset a worker needs to execute a batch. It is
// attached to every work response so workers never fetch policy separately.
type WorkerConfig struct {
	RequestTimeoutMs    int64             `json:"requestTimeoutMs"`
	RetryCount          int               `json:"retryCount"`
	RespectRobotsTxt    bool              `json:"respectRobotsTxt"`
	UserAgent           string            `json:"userAgent"`
	CustomHeaders       map[string]string `json:"customHeaders,omitempty"`
	MaxContentSizeBytes int64             `json:"maxContentSizeBytes"`
	AllowedContentTypes []string          `json:"allowedContentTypes"`
	FollowRedirects     bool              `json:"followRedirects"`
	MaxRedirects        int               `json:"maxRedirects"`
	StoreContent        bool              `json:"storeContent"`
}

// DefaultConfig returns a config with every field at its documented default.
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		RateLimiting: RateLimitingConfig{
			MinDomainDelayMs:         defaultMinDomainDelayMs,
			MaxDomainDelayMs:         defaultMaxDomainDelayMs,
			ErrorBackoffMultiplier:   defaultErrorBackoffMultiplier,
			JitterFactor:             defaultJitterFactor,
			MaxConcurrentRequests:    defaultMaxConcurrentRequests,
			GlobalRateLimitPerMinute: 0,
		},
		ContentFiltering: ContentFilteringConfig{
			MaxContentSizeBytes: defaultMaxContentSizeBytes,
			AllowedContentTypes: []string{"text/html", "application/xhtml+xml"},
			SkipBinaryFiles:     true,
			StoreContent:        true,
		},
		CrawlBehavior: CrawlBehaviorConfig{
			MaxDepth:         defaultMaxDepth,
			MaxQueueSize:     defaultMaxQueueSize,
			MaxPagesPerRun:   0,
			DefaultBatchSize: defaultBatchSize,
			RequestTimeoutMs: defaultRequestTimeoutMs,
			RetryCount:       defaultRetryCount,
			RespectRobotsTxt: true,
			FollowRedirects:  true,
			MaxRedirects:     defaultMaxRedirects,
			UserAgent:        defaultUserAgent,
			CustomHeaders:    map[string]string{},
			FollowLinks:      true,
			SameDomainOnly:   true,
		},
		DomainScope: DomainScopeConfig{
			AllowedDomains:    []string{},
			BlockedDomains:    []string{},
			IncludePatterns:   []string{},
			ExcludePatterns:   []string{},
			IncludeSubdomains: true,
		},
		Rendering: RenderingConfig{
			Enabled:   false,
			TimeoutMs: 0,
		},
	}
}

// Clone returns a deep copy. Updates are applied to a clone and committed
// only after validation, so a rejected update leaves the live config intact.
func (c *CrawlConfig) Clone() *CrawlConfig {
	clone := *c

	clone.ContentFiltering.AllowedContentTypes = append([]string(nil), c.ContentFiltering.AllowedContentTypes...)
	clone.DomainScope.AllowedDomains = append([]string(nil), c.DomainScope.AllowedDomains...)
	clone.DomainScope.BlockedDomains = append([]string(nil), c.DomainScope.BlockedDomains...)
	clone.DomainScope.IncludePatterns = append([]string(nil), c.DomainScope.IncludePatterns...)
	clone.DomainScope.ExcludePatterns = append([]string(nil), c.DomainScope.ExcludePatterns...)

	if c.CrawlBehavior.CustomHeaders != nil {
		headers := make(map[string]string, len(c.CrawlBehavior.CustomHeaders))
		for k, v := range c.CrawlBehavior.CustomHeaders {
			headers[k] = v
		}

		clone.CrawlBehavior.CustomHeaders = headers
	}

	return &clone
}

// Apply merges section updates into the config. Each top-level key must name
// one of the five sections; within a section the merge is shallow, so fields
// absent from the update keep their current values.
func (c *CrawlConfig) Apply(updates map[string]any) error {
	for key, raw := range updates {
		section, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("config section %q: expected object, got %T", key, raw)
		}

		var target any

		switch key {
		case "rateLimiting":
			target = &c.RateLimiting
		case "contentFiltering":
			target = &c.ContentFiltering
		case "crawlBehavior":
			target = &c.CrawlBehavior
		case "domainScope":
			target = &c.DomainScope
		case "rendering":
			target = &c.Rendering
		default:
			return fmt.Errorf("%w: %q", errUnknownConfigSection, key)
		}

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           target,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return fmt.Errorf("failed to create decoder for section %q: %w", key, err)
		}

		if decodeErr := decoder.Decode(section); decodeErr != nil {
			return fmt.Errorf("failed to decode config section %q: %w", key, decodeErr)
		}
	}

	return c.Validate()
}

// Validate rejects configs that would wedge the scheduler.
func (c *CrawlConfig) Validate() error {
	if c.RateLimiting.MinDomainDelayMs < 0 {
		return errors.New("rateLimiting.minDomainDelayMs must be >= 0")
	}

	if c.RateLimiting.MaxDomainDelayMs < c.RateLimiting.MinDomainDelayMs {
		return errors.New("rateLimiting.maxDomainDelayMs must be >= minDomainDelayMs")
	}

	if c.RateLimiting.ErrorBackoffMultiplier < 1 {
		return errors.New("rateLimiting.errorBackoffMultiplier must be >= 1")
	}

	if c.RateLimiting.JitterFactor < 0 || c.RateLimiting.JitterFactor > 1 {
		return errors.New("rateLimiting.jitterFactor must be in [0, 1]")
	}

	if c.CrawlBehavior.MaxDepth < 0 {
		return errors.New("crawlBehavior.maxDepth must be >= 0")
	}

	if c.CrawlBehavior.MaxQueueSize < 1 {
		return errors.New("crawlBehavior.maxQueueSize must be >= 1")
	}

	if c.CrawlBehavior.DefaultBatchSize < 1 {
		return errors.New("crawlBehavior.defaultBatchSize must be >= 1")
	}

	if _, err := newScopeMatcher(&c.DomainScope); err != nil {
		return err
	}

	return nil
}

// WorkerConfig projects the fetch policy for workers.
func (c *CrawlConfig) WorkerConfig() WorkerConfig {
	return WorkerConfig{
		RequestTimeoutMs:    c.CrawlBehavior.RequestTimeoutMs,
		RetryCount:          c.CrawlBehavior.RetryCount,
		RespectRobotsTxt:    c.CrawlBehavior.RespectRobotsTxt,
		UserAgent:           c.CrawlBehavior.UserAgent,
		CustomHeaders:       c.CrawlBehavior.CustomHeaders,
		MaxContentSizeBytes: c.ContentFiltering.MaxContentSizeBytes,
		AllowedContentTypes: c.ContentFiltering.AllowedContentTypes,
		FollowRedirects:     c.CrawlBehavior.FollowRedirects,
		MaxRedirects:        c.CrawlBehavior.MaxRedirects,
		StoreContent:        c.ContentFiltering.StoreContent,
	}
}

// scopeMatcher is the compiled form of DomainScopeConfig, rebuilt whenever
// the config changes so admission does not recompile regexes per URL.
type scopeMatcher struct {
	allowedDomains    []string
	blockedDomains    []string
	includeSubdomains bool
	includePatterns   []*regexp.Regexp
	excludePatterns   []*regexp.Regexp
}

func newScopeMatcher(scope *DomainScopeConfig) (*scopeMatcher, error) {
	m := &scopeMatcher{
		allowedDomains:    scope.AllowedDomains,
		blockedDomains:    scope.BlockedDomains,
		includeSubdomains: scope.IncludeSubdomains,
	}

	for _, pattern := range scope.IncludePatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}

		m.includePatterns = append(m.includePatterns, compiled)
	}

	for _, pattern := range scope.ExcludePatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}

		m.excludePatterns = append(m.excludePatterns, compiled)
	}

	return m, nil
}

// hostAllowed checks the domain lists. Blocked always wins; a non-empty
// allowed list requires membership.
func (m *scopeMatcher) hostAllowed(host string) bool {
	return urlnorm.HostAllowed(host, m.allowedDomains, m.blockedDomains, m.includeSubdomains)
}

// urlAllowed checks the URL pattern lists against the normalized URL.
func (m *scopeMatcher) urlAllowed(normalized string) bool {
	for _, pattern := range m.excludePatterns {
		if pattern.MatchString(normalized) {
			return false
		}
	}

	if len(m.includePatterns) == 0 {
		return true
	}

	for _, pattern := range m.includePatterns {
		if pattern.MatchString(normalized) {
			return true
		}
	}

	return false
}
