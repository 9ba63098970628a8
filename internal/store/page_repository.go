package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

// ErrPageNotFound is returned when a page record does not exist.
var ErrPageNotFound = errors.New("page not found")

// pageSelectColumns lists columns for SELECT queries on crawled_pages.
const pageSelectColumns = `run_id, url, domain, status, content_hash,
	content_size, response_time_ms, fetched_at, error_message`

// PageRepository handles database operations for per-run page metadata.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// UpsertPage inserts or replaces the metadata row for (run, url).
func (r *PageRepository) UpsertPage(ctx context.Context, page coordinator.PageRecord) error {
	query := `
		INSERT INTO crawled_pages (run_id, url, domain, status, content_hash,
			content_size, response_time_ms, fetched_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, url)
		DO UPDATE SET
			domain = EXCLUDED.domain,
			status = EXCLUDED.status,
			content_hash = EXCLUDED.content_hash,
			content_size = EXCLUDED.content_size,
			response_time_ms = EXCLUDED.response_time_ms,
			fetched_at = EXCLUDED.fetched_at,
			error_message = EXCLUDED.error_message
	`

	_, err := r.db.ExecContext(
		ctx, query,
		page.RunID, page.URL, page.Domain, page.Status, page.ContentHash,
		page.ContentSize, page.ResponseTimeMs, page.FetchedAt, page.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert page: %w", err)
	}

	return nil
}

// ListPagesParams filters page listings. Zero values mean "no filter".
type ListPagesParams struct {
	Domain     string
	Status     int
	FailedOnly bool
	Limit      int
	Offset     int
}

// ListPages returns page metadata for a run, newest fetches first.
func (r *PageRepository) ListPages(ctx context.Context, runID string, params ListPagesParams) ([]coordinator.PageRecord, error) {
	whereClauses := []string{"run_id = $1"}
	args := []any{runID}
	argIndex := 2

	if params.Domain != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("domain = $%d", argIndex))
		args = append(args, params.Domain)
		argIndex++
	}

	if params.Status != 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, params.Status)
		argIndex++
	}

	if params.FailedOnly {
		whereClauses = append(whereClauses, "error_message <> ''")
	}

	query := fmt.Sprintf(`
		SELECT `+pageSelectColumns+`
		FROM crawled_pages
		WHERE %s
		ORDER BY fetched_at DESC, url ASC
		LIMIT $%d OFFSET $%d
	`, strings.Join(whereClauses, " AND "), argIndex, argIndex+1)

	args = append(args, params.Limit, params.Offset)

	var pages []coordinator.PageRecord
	if err := r.db.SelectContext(ctx, &pages, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	return pages, nil
}

// CountPages returns how many page rows a run has.
func (r *PageRepository) CountPages(ctx context.Context, runID string) (int, error) {
	query := `SELECT COUNT(*) FROM crawled_pages WHERE run_id = $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, runID); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}

	return count, nil
}

// GetPage returns the metadata row for one URL of a run.
func (r *PageRepository) GetPage(ctx context.Context, runID, url string) (*coordinator.PageRecord, error) {
	query := `SELECT ` + pageSelectColumns + ` FROM crawled_pages WHERE run_id = $1 AND url = $2`

	var page coordinator.PageRecord
	if err := r.db.GetContext(ctx, &page, query, runID, url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPageNotFound, url)
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	return &page, nil
}

// DeletePages removes every page row of a run.
func (r *PageRepository) DeletePages(ctx context.Context, runID string) error {
	query := `DELETE FROM crawled_pages WHERE run_id = $1`

	if _, err := r.db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to delete pages for run %s: %w", runID, err)
	}

	return nil
}
