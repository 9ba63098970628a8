package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/crawlplane/internal/coordinator"
	"github.com/jonesrussell/crawlplane/internal/store"
)

// snapshotColumns lists the columns returned by run_snapshots SELECT queries.
var snapshotColumns = []string{"slot", "payload"}

func newSnapshotRepo(t *testing.T) (*store.SnapshotRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := store.NewSnapshotRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func sampleSnapshot() *coordinator.Snapshot {
	return &coordinator.Snapshot{
		PendingQueue: []coordinator.QueuedURL{
			{URL: "https://example.com/a", Domain: "example.com", AddedAt: 1000},
		},
		VisitedURLs: []uint32{42, 77},
		DomainStates: map[string]*coordinator.DomainState{
			"example.com": {LastFetchAt: 900, RequestCount: 3},
		},
		RunState: &coordinator.RunState{
			ID:     "run-1",
			Status: coordinator.StatusRunning,
			Config: coordinator.DefaultConfig(),
		},
		RecentErrors: []coordinator.RecentError{},
	}
}

func TestSnapshotRepository_SaveSnapshot_UpsertsAllSlotsInOneTransaction(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepo(t)
	defer cleanup()

	ctx := context.Background()

	mock.ExpectBegin()
	for _, slot := range []string{
		store.SlotPendingQueue,
		store.SlotVisitedURLs,
		store.SlotDomainStates,
		store.SlotRunState,
		store.SlotRecentErrors,
	} {
		mock.ExpectExec("INSERT INTO run_snapshots").
			WithArgs("run-1", slot, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := repo.SaveSnapshot(ctx, "run-1", sampleSnapshot()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestSnapshotRepository_SaveSnapshot_RollsBackOnSlotError(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepo(t)
	defer cleanup()

	ctx := context.Background()
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO run_snapshots").
		WithArgs("run-1", store.SlotPendingQueue, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO run_snapshots").
		WithArgs("run-1", store.SlotVisitedURLs, sqlmock.AnyArg()).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.SaveSnapshot(ctx, "run-1", sampleSnapshot())
	if err == nil {
		t.Fatal("SaveSnapshot() expected error, got nil")
	}
	if !errors.Is(err, boom) {
		t.Errorf("SaveSnapshot() error = %v, want wrapped %v", err, boom)
	}

	expectationsMet(t, mock)
}

func TestSnapshotRepository_LoadSnapshot_MissingRunReturnsNil(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepo(t)
	defer cleanup()

	ctx := context.Background()

	mock.ExpectQuery("SELECT slot, payload FROM run_snapshots").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(snapshotColumns))

	snap, err := repo.LoadSnapshot(ctx, "ghost")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if snap != nil {
		t.Errorf("LoadSnapshot() = %+v, want nil for unknown run", snap)
	}

	expectationsMet(t, mock)
}

func TestSnapshotRepository_LoadSnapshot_AssemblesSlots(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepo(t)
	defer cleanup()

	ctx := context.Background()

	rows := sqlmock.NewRows(snapshotColumns).
		AddRow(store.SlotPendingQueue, []byte(`[{"url":"https://example.com/a","domain":"example.com","depth":0,"addedAt":1000,"priority":0,"retryCount":0}]`)).
		AddRow(store.SlotVisitedURLs, []byte(`[42,77]`)).
		AddRow(store.SlotDomainStates, []byte(`{"example.com":{"lastFetchAt":900,"requestCount":3,"successCount":2,"errorCount":1,"backoffUntil":0,"totalResponseTimeMs":150,"bytesDownloaded":2048}}`)).
		AddRow(store.SlotRunState, []byte(`{"id":"run-1","status":"running"}`)).
		AddRow(store.SlotRecentErrors, []byte(`[{"url":"https://example.com/x","domain":"example.com","message":"HTTP 500","timestamp":950}]`))

	mock.ExpectQuery("SELECT slot, payload FROM run_snapshots").
		WithArgs("run-1").
		WillReturnRows(rows)

	snap, err := repo.LoadSnapshot(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if snap == nil {
		t.Fatal("LoadSnapshot() = nil, want snapshot")
	}

	if len(snap.PendingQueue) != 1 || snap.PendingQueue[0].URL != "https://example.com/a" {
		t.Errorf("PendingQueue = %+v", snap.PendingQueue)
	}
	if len(snap.VisitedURLs) != 2 || snap.VisitedURLs[0] != 42 {
		t.Errorf("VisitedURLs = %v", snap.VisitedURLs)
	}
	if snap.DomainStates["example.com"] == nil || snap.DomainStates["example.com"].RequestCount != 3 {
		t.Errorf("DomainStates = %+v", snap.DomainStates)
	}
	if snap.RunState == nil || snap.RunState.Status != coordinator.StatusRunning {
		t.Errorf("RunState = %+v", snap.RunState)
	}
	if len(snap.RecentErrors) != 1 || snap.RecentErrors[0].Message != "HTTP 500" {
		t.Errorf("RecentErrors = %+v", snap.RecentErrors)
	}

	expectationsMet(t, mock)
}

func TestSnapshotRepository_LoadSnapshot_ToleratesMissingSlots(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepo(t)
	defer cleanup()

	ctx := context.Background()

	rows := sqlmock.NewRows(snapshotColumns).
		AddRow(store.SlotRunState, []byte(`{"id":"run-1","status":"pending"}`))

	mock.ExpectQuery("SELECT slot, payload FROM run_snapshots").
		WithArgs("run-1").
		WillReturnRows(rows)

	snap, err := repo.LoadSnapshot(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if snap == nil {
		t.Fatal("LoadSnapshot() = nil, want partial snapshot")
	}

	if snap.RunState == nil || snap.RunState.Status != coordinator.StatusPending {
		t.Errorf("RunState = %+v", snap.RunState)
	}
	if snap.PendingQueue != nil {
		t.Errorf("PendingQueue = %+v, want nil for missing slot", snap.PendingQueue)
	}
	if snap.DomainStates != nil {
		t.Errorf("DomainStates = %+v, want nil for missing slot", snap.DomainStates)
	}

	expectationsMet(t, mock)
}

func TestSnapshotRepository_ListRunIDs(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepo(t)
	defer cleanup()

	ctx := context.Background()

	mock.ExpectQuery("SELECT DISTINCT run_id FROM run_snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}).AddRow("run-a").AddRow("run-b"))

	ids, err := repo.ListRunIDs(ctx)
	if err != nil {
		t.Fatalf("ListRunIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "run-a" || ids[1] != "run-b" {
		t.Errorf("ListRunIDs() = %v", ids)
	}

	expectationsMet(t, mock)
}

func TestSnapshotRepository_DeleteSnapshot(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepo(t)
	defer cleanup()

	ctx := context.Background()

	mock.ExpectExec("DELETE FROM run_snapshots").
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 5))

	if err := repo.DeleteSnapshot(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}

	expectationsMet(t, mock)
}
