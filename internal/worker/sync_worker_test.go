package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/ledger/memory"
	"bilancio/internal/storage"
)

func newTestWorker(t *testing.T) (*SyncWorker, *storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := memory.New()
	return NewSyncWorker(repo, store, 10), repo, store
}

func seedTransaction(t *testing.T, repo *storage.SQLiteRepository) int64 {
	t.Helper()
	id, err := repo.CreateTransaction(context.Background(), core.Transaction{
		Date:      core.NewDate(2026, 8, 1),
		Label:     "Affitto",
		Amount:    core.Money{Cents: 85000},
		MemberOne: core.Money{Cents: 42500},
		MemberTwo: core.Money{Cents: 42500},
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return id
}

func TestHandleSyncMessage(t *testing.T) {
	w, repo, store := newTestWorker(t)
	ctx := context.Background()
	id := seedTransaction(t, repo)

	if err := w.HandleSyncMessage(ctx, &amqp.TransactionSyncMessage{ID: id}); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 || rows[0].Label != "Affitto" {
		t.Fatalf("ledger rows = %+v, want one Affitto row", rows)
	}

	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncTransactions: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("transaction still pending after export: %+v", pending)
	}
}

func TestHandleSyncMessage_MissingTransaction(t *testing.T) {
	w, _, _ := newTestWorker(t)

	err := w.HandleSyncMessage(context.Background(), &amqp.TransactionSyncMessage{ID: 999})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStartupSyncCheck_DrainsPending(t *testing.T) {
	w, repo, store := newTestWorker(t)
	ctx := context.Background()

	seedTransaction(t, repo)
	seedTransaction(t, repo)

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("StartupSyncCheck: %v", err)
	}

	if got := len(store.Rows()); got != 2 {
		t.Errorf("ledger rows = %d, want 2", got)
	}
	pending, _ := repo.GetPendingSyncTransactions(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("still pending after startup check: %+v", pending)
	}
}
