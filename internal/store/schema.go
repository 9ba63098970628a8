package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema contains the SQL statements that create the control-plane tables.
const Schema = `
-- Run snapshots: one row per (run, slot). The five slots of a run are always
-- written together in a single transaction, so readers never see a torn snapshot.
CREATE TABLE IF NOT EXISTS run_snapshots (
    run_id     TEXT        NOT NULL,
    slot       TEXT        NOT NULL,
    payload    JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (run_id, slot)
);

-- Page metadata: one row per fetched URL per run, upserted on re-fetch.
CREATE TABLE IF NOT EXISTS crawled_pages (
    run_id           TEXT   NOT NULL,
    url              TEXT   NOT NULL,
    domain           TEXT   NOT NULL,
    status           INTEGER NOT NULL DEFAULT 0,
    content_hash     TEXT   NOT NULL DEFAULT '',
    content_size     BIGINT NOT NULL DEFAULT 0,
    response_time_ms BIGINT NOT NULL DEFAULT 0,
    fetched_at       BIGINT NOT NULL DEFAULT 0,
    error_message    TEXT   NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, url)
);

CREATE INDEX IF NOT EXISTS idx_crawled_pages_domain ON crawled_pages(run_id, domain);
CREATE INDEX IF NOT EXISTS idx_crawled_pages_fetched_at ON crawled_pages(run_id, fetched_at);

-- Named crawl configurations, referenced by runs via config_id.
CREATE TABLE IF NOT EXISTS crawl_configs (
    id         TEXT        PRIMARY KEY,
    name       TEXT        NOT NULL,
    config     JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_crawl_configs_name ON crawl_configs(name);
`

// EnsureSchema creates the control-plane tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
