// Package coordinator implements the control plane of a distributed web
// crawler: per-run frontier, visited index, domain politeness scheduler, and
// run lifecycle, with an atomic five-slot snapshot persisted at the end of
// every mutating operation.
package coordinator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jonesrussell/crawlplane/internal/logger"
)

// StateStore persists run snapshots. Implementations must make SaveSnapshot
// atomic: a reader never observes some slots from before a save and some
// from after.
type StateStore interface {
	LoadSnapshot(ctx context.Context, runID string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, runID string, snap *Snapshot) error
	ListRunIDs(ctx context.Context) ([]string, error)
	DeleteSnapshot(ctx context.Context, runID string) error
}

// PageWriter appends fetch results to the external page-metadata store.
// Writes happen after the snapshot barrier and may fail without affecting
// coordinator state.
type PageWriter interface {
	UpsertPage(ctx context.Context, page PageRecord) error
}

// Config wires a Coordinator. Store is required; Now and Rand default to the
// wall clock and math/rand and exist so tests can pin time and jitter.
type Config struct {
	Store  StateStore
	Pages  PageWriter
	Logger logger.Interface
	Now    func() int64
	Rand   func() float64
}

// Coordinator hands out the single Run actor per run id. Run actors are
// created lazily and live for the life of the process; their state is
// hydrated from the StateStore on first touch.
type Coordinator struct {
	mu   sync.RWMutex
	runs map[string]*Run
	cfg  Config
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, errors.New("coordinator: state store is required")
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOp()
	}

	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().UnixMilli() }
	}

	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}

	return &Coordinator{
		runs: make(map[string]*Run),
		cfg:  cfg,
	}, nil
}

// Run returns the actor for a run id, creating it on first use. The same id
// always yields the same actor, which is what serializes operations per run.
func (c *Coordinator) Run(runID string) *Run {
	c.mu.RLock()
	run, ok := c.runs[runID]
	c.mu.RUnlock()

	if ok {
		return run
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if run, ok = c.runs[runID]; ok {
		return run
	}

	run = newRun(runID, c.cfg)
	c.runs[runID] = run

	return run
}

// ListRuns returns an overview of every persisted run.
func (c *Coordinator) ListRuns(ctx context.Context) ([]RunListItem, error) {
	ids, err := c.cfg.Store.ListRunIDs(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]RunListItem, 0, len(ids))

	for _, id := range ids {
		item, overviewErr := c.Run(id).Overview(ctx)
		if overviewErr != nil {
			if errors.Is(overviewErr, ErrRunNotFound) {
				continue
			}

			return nil, overviewErr
		}

		items = append(items, *item)
	}

	return items, nil
}

// DeleteRun removes a terminal run: its persisted snapshot and its actor.
// Page metadata and stored content live outside the coordinator and are the
// API layer's to clean up.
func (c *Coordinator) DeleteRun(ctx context.Context, runID string) error {
	if err := c.Run(runID).delete(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.runs, runID)
	c.mu.Unlock()

	return nil
}

// Maintenance runs the hygiene tick for every persisted run. Errors on
// individual runs are logged and do not stop the sweep.
func (c *Coordinator) Maintenance(ctx context.Context) error {
	ids, err := c.cfg.Store.ListRunIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if _, tickErr := c.Run(id).Maintenance(ctx); tickErr != nil {
			c.cfg.Logger.Error("Maintenance tick failed", "runId", id, "error", tickErr)
		}
	}

	return nil
}
