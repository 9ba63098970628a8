package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

// MemoryStateStore keeps snapshots in process memory. Payloads are stored
// serialized, so loads return fresh copies and callers can never alias the
// stored state. Meant for development mode and tests.
type MemoryStateStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewMemoryStateStore creates an empty in-memory snapshot store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{snapshots: make(map[string][]byte)}
}

// SaveSnapshot stores a serialized copy of the snapshot.
func (s *MemoryStateStore) SaveSnapshot(_ context.Context, runID string, snap *coordinator.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for run %s: %w", runID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[runID] = data

	return nil
}

// LoadSnapshot returns a fresh copy of the stored snapshot, or (nil, nil)
// when the run has never been persisted.
func (s *MemoryStateStore) LoadSnapshot(_ context.Context, runID string) (*coordinator.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.snapshots[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	snap := &coordinator.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for run %s: %w", runID, err)
	}

	return snap, nil
}

// ListRunIDs returns every persisted run ID in stable order.
func (s *MemoryStateStore) ListRunIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids, nil
}

// DeleteSnapshot removes a run's snapshot. Missing runs are not an error.
func (s *MemoryStateStore) DeleteSnapshot(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, runID)

	return nil
}

// MemoryPageStore keeps page metadata in process memory.
type MemoryPageStore struct {
	mu    sync.RWMutex
	pages map[string]map[string]coordinator.PageRecord
}

// NewMemoryPageStore creates an empty in-memory page store.
func NewMemoryPageStore() *MemoryPageStore {
	return &MemoryPageStore{pages: make(map[string]map[string]coordinator.PageRecord)}
}

// UpsertPage inserts or replaces the record for (run, url).
func (s *MemoryPageStore) UpsertPage(_ context.Context, page coordinator.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byURL, ok := s.pages[page.RunID]
	if !ok {
		byURL = make(map[string]coordinator.PageRecord)
		s.pages[page.RunID] = byURL
	}

	byURL[page.URL] = page

	return nil
}

func matchesPageFilters(page coordinator.PageRecord, params ListPagesParams) bool {
	if params.Domain != "" && page.Domain != params.Domain {
		return false
	}
	if params.Status != 0 && page.Status != params.Status {
		return false
	}
	if params.FailedOnly && page.Error == "" {
		return false
	}
	return true
}

// ListPages returns page metadata for a run, newest fetches first.
func (s *MemoryPageStore) ListPages(_ context.Context, runID string, params ListPagesParams) ([]coordinator.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]coordinator.PageRecord, 0, len(s.pages[runID]))
	for _, page := range s.pages[runID] {
		if matchesPageFilters(page, params) {
			matched = append(matched, page)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].FetchedAt != matched[j].FetchedAt {
			return matched[i].FetchedAt > matched[j].FetchedAt
		}
		return matched[i].URL < matched[j].URL
	})

	if params.Offset >= len(matched) {
		return []coordinator.PageRecord{}, nil
	}

	matched = matched[params.Offset:]
	if params.Limit > 0 && params.Limit < len(matched) {
		matched = matched[:params.Limit]
	}

	return matched, nil
}

// CountPages returns how many page records a run has.
func (s *MemoryPageStore) CountPages(_ context.Context, runID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.pages[runID]), nil
}

// GetPage returns the record for one URL of a run.
func (s *MemoryPageStore) GetPage(_ context.Context, runID, url string) (*coordinator.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page, ok := s.pages[runID][url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, url)
	}

	return &page, nil
}

// DeletePages removes every page record of a run.
func (s *MemoryPageStore) DeletePages(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pages, runID)

	return nil
}

// memoryConfigEntry holds a serialized config so reads return fresh copies.
type memoryConfigEntry struct {
	name      string
	payload   []byte
	createdAt time.Time
	updatedAt time.Time
}

// MemoryConfigStore keeps named configurations in process memory.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	entries map[string]memoryConfigEntry
	nowFn   func() time.Time
}

// NewMemoryConfigStore creates an empty in-memory config store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{
		entries: make(map[string]memoryConfigEntry),
		nowFn:   time.Now,
	}
}

// CreateConfig inserts a new named configuration. Duplicate IDs are rejected.
func (s *MemoryConfigStore) CreateConfig(_ context.Context, cfg *StoredConfig) error {
	data, err := json.Marshal(cfg.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[cfg.ID]; exists {
		return fmt.Errorf("config already exists: %s", cfg.ID)
	}

	now := s.nowFn()
	s.entries[cfg.ID] = memoryConfigEntry{
		name:      cfg.Name,
		payload:   data,
		createdAt: now,
		updatedAt: now,
	}

	return nil
}

func (e memoryConfigEntry) toStoredConfig(id string) (*StoredConfig, error) {
	cfg := &coordinator.CrawlConfig{}
	if err := json.Unmarshal(e.payload, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", id, err)
	}

	return &StoredConfig{
		ID:        id,
		Name:      e.name,
		Config:    cfg,
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}, nil
}

// GetConfig returns one named configuration by ID.
func (s *MemoryConfigStore) GetConfig(_ context.Context, id string) (*StoredConfig, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", coordinator.ErrConfigNotFound, id)
	}

	return entry.toStoredConfig(id)
}

// ListConfigs returns every named configuration, ordered by name.
func (s *MemoryConfigStore) ListConfigs(_ context.Context) ([]*StoredConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make([]*StoredConfig, 0, len(s.entries))
	for id, entry := range s.entries {
		cfg, err := entry.toStoredConfig(id)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	sort.Slice(configs, func(i, j int) bool {
		if configs[i].Name != configs[j].Name {
			return strings.Compare(configs[i].Name, configs[j].Name) < 0
		}
		return configs[i].ID < configs[j].ID
	})

	return configs, nil
}

// UpdateConfig replaces the name and payload of an existing configuration.
func (s *MemoryConfigStore) UpdateConfig(_ context.Context, cfg *StoredConfig) error {
	data, err := json.Marshal(cfg.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[cfg.ID]
	if !ok {
		return fmt.Errorf("%w: %s", coordinator.ErrConfigNotFound, cfg.ID)
	}

	entry.name = cfg.Name
	entry.payload = data
	entry.updatedAt = s.nowFn()
	s.entries[cfg.ID] = entry

	return nil
}

// DeleteConfig removes a named configuration.
func (s *MemoryConfigStore) DeleteConfig(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("%w: %s", coordinator.ErrConfigNotFound, id)
	}

	delete(s.entries, id)

	return nil
}
