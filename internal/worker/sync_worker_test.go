package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/export/memory"
	"financas/internal/log"
	"financas/internal/storage"
)

type failingLedger struct{}

func (failingLedger) Append(context.Context, core.Transaction) (string, error) {
	return "", errors.New("ledger unavailable")
}

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newTestWorker(t *testing.T) (*SyncWorker, *storage.SQLiteRepository, *memory.Ledger) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "financas.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	ledger := memory.NewLedger()
	return NewSyncWorker(repo, ledger, ledger, 10, testLogger()), repo, ledger
}

func seedTx(t *testing.T, repo *storage.SQLiteRepository, id int64) core.Transaction {
	t.Helper()
	tx := core.Transaction{
		ID:                 id,
		Type:               core.Expense,
		Description:        "Mercado",
		Amount:             core.Money{Cents: 5000},
		Category:           "Alimentação",
		Date:               core.NewDate(2025, 6, 15),
		Status:             core.Pending,
		Installments:       1,
		CurrentInstallment: 1,
	}
	if err := repo.CreateTransactions(context.Background(), []core.Transaction{tx}); err != nil {
		t.Fatalf("CreateTransactions() error = %v", err)
	}
	return tx
}

func TestHandleSyncMessage(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	seedTx(t, repo, 1)

	if err := w.HandleSyncMessage(ctx, amqp.NewSyncMessage(1)); err != nil {
		t.Fatalf("HandleSyncMessage() error = %v", err)
	}

	entries, _ := ledger.List(ctx)
	if len(entries) != 1 || entries[0].ID != 1 {
		t.Fatalf("ledger = %+v, want one entry with id 1", entries)
	}

	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncTransactions() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("still pending after sync: %+v", pending)
	}
}

func TestHandleSyncMessage_VanishedTransaction(t *testing.T) {
	w, _, ledger := newTestWorker(t)
	ctx := context.Background()

	if err := w.HandleSyncMessage(ctx, amqp.NewSyncMessage(404)); err != nil {
		t.Fatalf("HandleSyncMessage() error = %v, want nil for missing record", err)
	}
	if entries, _ := ledger.List(ctx); len(entries) != 0 {
		t.Errorf("ledger not empty: %+v", entries)
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	seedTx(t, repo, 1)

	if err := w.HandleSyncMessage(ctx, amqp.NewSyncMessage(1)); err != nil {
		t.Fatalf("HandleSyncMessage() error = %v", err)
	}
	if err := w.HandleDeleteMessage(ctx, amqp.NewDeleteMessage(1)); err != nil {
		t.Fatalf("HandleDeleteMessage() error = %v", err)
	}
	if entries, _ := ledger.List(ctx); len(entries) != 0 {
		t.Errorf("ledger = %+v, want empty", entries)
	}

	// Deleting something the ledger never saw is fine.
	if err := w.HandleDeleteMessage(ctx, amqp.NewDeleteMessage(99)); err != nil {
		t.Errorf("HandleDeleteMessage() error = %v", err)
	}
}

func TestProcessPendingTransactions(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	seedTx(t, repo, 1)
	seedTx(t, repo, 2)
	seedTx(t, repo, 3)

	if err := w.ProcessPendingTransactions(ctx); err != nil {
		t.Fatalf("ProcessPendingTransactions() error = %v", err)
	}

	entries, _ := ledger.List(ctx)
	if len(entries) != 3 {
		t.Fatalf("ledger size = %d, want 3", len(entries))
	}
	pending, _ := repo.GetPendingSyncTransactions(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("still pending: %+v", pending)
	}
}

func TestProcessPendingTransactions_LedgerFailure(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "financas.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	w := NewSyncWorker(repo, failingLedger{}, nil, 10, testLogger())
	ctx := context.Background()
	seedTx(t, repo, 1)

	if err := w.ProcessPendingTransactions(ctx); err != nil {
		t.Fatalf("ProcessPendingTransactions() error = %v, want nil (per-record failures logged)", err)
	}

	// The record is marked errored and leaves the pending queue.
	pending, _ := repo.GetPendingSyncTransactions(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("still pending after failure: %+v", pending)
	}
}

func TestStartupSyncCheck(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	seedTx(t, repo, 1)
	seedTx(t, repo, 2)

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("StartupSyncCheck() error = %v", err)
	}
	if entries, _ := ledger.List(ctx); len(entries) != 2 {
		t.Errorf("ledger size = %d, want 2", len(entries))
	}
}
