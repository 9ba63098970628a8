package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

// StoredConfig is a named, reusable crawl configuration.
type StoredConfig struct {
	ID        string                   `json:"id"`
	Name      string                   `json:"name"`
	Config    *coordinator.CrawlConfig `json:"config"`
	CreatedAt time.Time                `json:"createdAt"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

// configRow mirrors a crawl_configs row before JSON decoding.
type configRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Config    []byte    `db:"config"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row *configRow) toStoredConfig() (*StoredConfig, error) {
	cfg := &coordinator.CrawlConfig{}
	if err := json.Unmarshal(row.Config, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", row.ID, err)
	}

	return &StoredConfig{
		ID:        row.ID,
		Name:      row.Name,
		Config:    cfg,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// configSelectColumns lists columns for SELECT queries on crawl_configs.
const configSelectColumns = `id, name, config, created_at, updated_at`

// ConfigRepository handles database operations for named crawl configurations.
type ConfigRepository struct {
	db *sqlx.DB
}

// NewConfigRepository creates a new config repository.
func NewConfigRepository(db *sqlx.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// CreateConfig inserts a new named configuration.
func (r *ConfigRepository) CreateConfig(ctx context.Context, cfg *StoredConfig) error {
	data, err := json.Marshal(cfg.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `
		INSERT INTO crawl_configs (id, name, config, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`

	if _, execErr := r.db.ExecContext(ctx, query, cfg.ID, cfg.Name, data); execErr != nil {
		return fmt.Errorf("failed to create config: %w", execErr)
	}

	return nil
}

// GetConfig returns one named configuration by ID.
func (r *ConfigRepository) GetConfig(ctx context.Context, id string) (*StoredConfig, error) {
	query := `SELECT ` + configSelectColumns + ` FROM crawl_configs WHERE id = $1`

	var row configRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", coordinator.ErrConfigNotFound, id)
		}
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return row.toStoredConfig()
}

// ListConfigs returns every named configuration, ordered by name.
func (r *ConfigRepository) ListConfigs(ctx context.Context) ([]*StoredConfig, error) {
	query := `SELECT ` + configSelectColumns + ` FROM crawl_configs ORDER BY name ASC, id ASC`

	var rows []configRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}

	configs := make([]*StoredConfig, 0, len(rows))
	for i := range rows {
		cfg, err := rows[i].toStoredConfig()
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, nil
}

// UpdateConfig replaces the name and payload of an existing configuration.
func (r *ConfigRepository) UpdateConfig(ctx context.Context, cfg *StoredConfig) error {
	data, err := json.Marshal(cfg.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `UPDATE crawl_configs SET name = $2, config = $3, updated_at = NOW() WHERE id = $1`

	result, execErr := r.db.ExecContext(ctx, query, cfg.ID, cfg.Name, data)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %s", coordinator.ErrConfigNotFound, cfg.ID))
}

// DeleteConfig removes a named configuration. Whether any live run still
// references it is the caller's check; the repository only deletes.
func (r *ConfigRepository) DeleteConfig(ctx context.Context, id string) error {
	query := `DELETE FROM crawl_configs WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, err, fmt.Errorf("%w: %s", coordinator.ErrConfigNotFound, id))
}
