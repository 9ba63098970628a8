package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
)

// Slot names for the five persisted parts of a run snapshot.
const (
	SlotPendingQueue = "pendingQueue"
	SlotVisitedURLs  = "visitedUrls"
	SlotDomainStates = "domainStates"
	SlotRunState     = "runState"
	SlotRecentErrors = "recentErrors"
)

// SnapshotRepository persists run snapshots as five JSONB slot rows per run.
// All five slots are written in a single transaction so a crash between writes
// can never leave a reader with a torn snapshot.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// slotPayload pairs a slot name with its serialized payload.
type slotPayload struct {
	slot    string
	payload []byte
}

// marshalSlots serializes the five parts of a snapshot.
func marshalSlots(snap *coordinator.Snapshot) ([]slotPayload, error) {
	parts := []struct {
		slot  string
		value any
	}{
		{SlotPendingQueue, snap.PendingQueue},
		{SlotVisitedURLs, snap.VisitedURLs},
		{SlotDomainStates, snap.DomainStates},
		{SlotRunState, snap.RunState},
		{SlotRecentErrors, snap.RecentErrors},
	}

	payloads := make([]slotPayload, 0, len(parts))
	for _, part := range parts {
		data, err := json.Marshal(part.value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal slot %s: %w", part.slot, err)
		}
		payloads = append(payloads, slotPayload{slot: part.slot, payload: data})
	}

	return payloads, nil
}

// SaveSnapshot upserts all five slots of a run inside one transaction.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, runID string, snap *coordinator.Snapshot) error {
	payloads, err := marshalSlots(snap)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO run_snapshots (run_id, slot, payload, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (run_id, slot)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`

	for _, p := range payloads {
		if _, execErr := tx.ExecContext(ctx, query, runID, p.slot, p.payload); execErr != nil {
			return fmt.Errorf("failed to upsert slot %s: %w", p.slot, execErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit snapshot transaction: %w", commitErr)
	}

	return nil
}

// snapshotRow is one persisted slot of a run snapshot.
type snapshotRow struct {
	Slot    string `db:"slot"`
	Payload []byte `db:"payload"`
}

// LoadSnapshot reads whatever slots exist for a run. Returns (nil, nil) when
// the run has never been persisted; missing individual slots are left zero so
// the caller hydrates them as empty.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, runID string) (*coordinator.Snapshot, error) {
	query := `SELECT slot, payload FROM run_snapshots WHERE run_id = $1`

	var rows []snapshotRow
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("failed to load snapshot for run %s: %w", runID, err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	snap := &coordinator.Snapshot{}
	for _, row := range rows {
		if err := unmarshalSlot(snap, row); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot for run %s: %w", runID, err)
		}
	}

	return snap, nil
}

// unmarshalSlot decodes one slot row into its snapshot field. Unknown slot
// names are ignored so old rows survive schema evolution.
func unmarshalSlot(snap *coordinator.Snapshot, row snapshotRow) error {
	var err error

	switch row.Slot {
	case SlotPendingQueue:
		err = json.Unmarshal(row.Payload, &snap.PendingQueue)
	case SlotVisitedURLs:
		err = json.Unmarshal(row.Payload, &snap.VisitedURLs)
	case SlotDomainStates:
		err = json.Unmarshal(row.Payload, &snap.DomainStates)
	case SlotRunState:
		err = json.Unmarshal(row.Payload, &snap.RunState)
	case SlotRecentErrors:
		err = json.Unmarshal(row.Payload, &snap.RecentErrors)
	}

	if err != nil {
		return fmt.Errorf("slot %s: %w", row.Slot, err)
	}

	return nil
}

// ListRunIDs returns the IDs of every persisted run, ordered for stable output.
func (r *SnapshotRepository) ListRunIDs(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT run_id FROM run_snapshots ORDER BY run_id`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list run ids: %w", err)
	}

	return ids, nil
}

// DeleteSnapshot removes every slot of a run. Missing runs are not an error.
func (r *SnapshotRepository) DeleteSnapshot(ctx context.Context, runID string) error {
	query := `DELETE FROM run_snapshots WHERE run_id = $1`

	if _, err := r.db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to delete snapshot for run %s: %w", runID, err)
	}

	return nil
}
