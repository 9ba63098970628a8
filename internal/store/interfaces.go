package store

import (
	"context"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

// StateStore is the snapshot persistence contract the coordinator consumes.
type StateStore = coordinator.StateStore

// PageStore defines the contract for page metadata access.
type PageStore interface {
	UpsertPage(ctx context.Context, page coordinator.PageRecord) error
	ListPages(ctx context.Context, runID string, params ListPagesParams) ([]coordinator.PageRecord, error)
	CountPages(ctx context.Context, runID string) (int, error)
	GetPage(ctx context.Context, runID, url string) (*coordinator.PageRecord, error)
	DeletePages(ctx context.Context, runID string) error
}

// ConfigStore defines the contract for named crawl configuration access.
type ConfigStore interface {
	CreateConfig(ctx context.Context, cfg *StoredConfig) error
	GetConfig(ctx context.Context, id string) (*StoredConfig, error)
	ListConfigs(ctx context.Context) ([]*StoredConfig, error)
	UpdateConfig(ctx context.Context, cfg *StoredConfig) error
	DeleteConfig(ctx context.Context, id string) error
}

var (
	_ StateStore = (*SnapshotRepository)(nil)
	_ StateStore = (*RedisStateStore)(nil)
	_ StateStore = (*MemoryStateStore)(nil)

	_ PageStore = (*PageRepository)(nil)
	_ PageStore = (*MemoryPageStore)(nil)

	_ ConfigStore = (*ConfigRepository)(nil)
	_ ConfigStore = (*MemoryConfigStore)(nil)
)
