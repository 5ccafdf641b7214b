package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"financas/internal/core"
	"financas/internal/id"
	"financas/internal/log"
	"financas/internal/storage"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newTestService(t *testing.T) (*TransactionService, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "financas.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewTransactionService(repo, nil, id.NewGenerator(), testLogger()), repo
}

func draftTx() core.Transaction {
	return core.Transaction{
		Type:        core.Expense,
		Description: "Notebook",
		Amount:      core.Money{Cents: 300000},
		Category:    "Eletrônicos",
		Date:        core.NewDate(2025, 1, 31),
		Status:      core.Pending,
	}
}

func TestCreate_Single(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	txs, err := svc.Create(ctx, draftTx())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("len = %d, want 1", len(txs))
	}
	if txs[0].ID == 0 {
		t.Error("expected a generated ID")
	}

	stored, err := svc.Get(ctx, txs[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Description != "Notebook" || stored.Amount.Cents != 300000 {
		t.Errorf("stored = %+v", stored)
	}
}

func TestCreate_InstallmentsPersisted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft := draftTx()
	draft.IsInstallment = true
	draft.Installments = 3

	txs, err := svc.Create(ctx, draft)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("len = %d, want 3", len(txs))
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("stored %d records, want 3", len(all))
	}

	var sum int64
	for _, tx := range txs {
		sum += tx.Amount.Cents
		if got, err := svc.Get(ctx, tx.ID); err != nil || got.Installments != 3 {
			t.Errorf("Get(%d) = %+v, %v", tx.ID, got, err)
		}
	}
	if sum < 300000 || sum > 300000+3 {
		t.Errorf("installment sum = %d cents", sum)
	}
}

func TestCreate_InvalidDraft(t *testing.T) {
	svc, _ := newTestService(t)

	draft := draftTx()
	draft.Amount = core.Money{}

	if _, err := svc.Create(context.Background(), draft); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("error = %v, want ErrInvalidAmount", err)
	}
}

func TestUpdate_Patch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	txs, err := svc.Create(ctx, draftTx())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	desc := "Notebook usado"
	amount := core.Money{Cents: 250000}
	updated, err := svc.Update(ctx, txs[0].ID, core.TransactionPatch{
		Description: &desc,
		Amount:      &amount,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Description != desc || updated.Amount != amount {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Category != "Eletrônicos" {
		t.Errorf("unpatched field changed: %q", updated.Category)
	}

	stored, _ := svc.Get(ctx, txs[0].ID)
	if stored.Amount != amount {
		t.Errorf("stored amount = %v, want %v", stored.Amount, amount)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	desc := "x"
	_, err := svc.Update(context.Background(), 404, core.TransactionPatch{Description: &desc})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndBulkDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		txs, err := svc.Create(ctx, draftTx())
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, txs[0].ID)
	}

	if err := svc.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, ids[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deleted record still readable: %v", err)
	}

	deleted, err := svc.BulkDelete(ctx, []int64{ids[1], ids[2], 404})
	if err != nil {
		t.Fatalf("BulkDelete() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
}

func TestToggleStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	txs, err := svc.Create(ctx, draftTx())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	toggled, err := svc.ToggleStatus(ctx, txs[0].ID)
	if err != nil {
		t.Fatalf("ToggleStatus() error = %v", err)
	}
	if toggled.Status != core.Confirmed {
		t.Errorf("status = %s, want confirmed", toggled.Status)
	}

	toggled, err = svc.ToggleStatus(ctx, txs[0].ID)
	if err != nil {
		t.Fatalf("ToggleStatus() error = %v", err)
	}
	if toggled.Status != core.Pending {
		t.Errorf("status = %s, want pending", toggled.Status)
	}
}

func TestSummary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	income := draftTx()
	income.Type = core.Income
	income.Description = "Salário"
	income.Amount = core.Money{Cents: 500000}
	income.Status = core.Confirmed
	if _, err := svc.Create(ctx, income); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, draftTx()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sum, err := svc.Summary(ctx, 1, 2025, core.FilterAll)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(sum.Filtered) != 2 {
		t.Fatalf("filtered = %d, want 2", len(sum.Filtered))
	}
	if sum.Totals.ConfirmedIncome.Cents != 500000 || sum.Totals.PendingExpense.Cents != 300000 {
		t.Errorf("totals = %+v", sum.Totals)
	}
	if sum.Balance.Projected.Cents != 200000 {
		t.Errorf("projected = %d, want 200000", sum.Balance.Projected.Cents)
	}

	byCat, err := svc.ByCategory(ctx, 1, 2025)
	if err != nil {
		t.Fatalf("ByCategory() error = %v", err)
	}
	if len(byCat) != 1 || byCat[0].Name != "Eletrônicos" {
		t.Errorf("byCat = %+v", byCat)
	}
}

func TestSummary_InvalidMonth(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Summary(context.Background(), 13, 2025, core.FilterAll); err == nil {
		t.Fatal("expected error for month 13")
	}
}
