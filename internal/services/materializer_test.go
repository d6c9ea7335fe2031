package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

func newTestMaterializer(t *testing.T) (*Materializer, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	household := core.Household{Members: [2]core.Member{
		{Name: "Anna", IncomeCents: 200000},
		{Name: "Luca", IncomeCents: 100000},
	}}
	items := NewItemService(repo, nil)
	return NewMaterializer(repo, items, household), repo
}

func TestProcessDueItems_CreatesSplitTransactions(t *testing.T) {
	m, repo := newTestMaterializer(t)
	ctx := context.Background()

	id, err := repo.CreateItem(ctx, core.RecurringItem{
		Kind:      core.KindExpense,
		Label:     "Affitto",
		Amount:    core.Money{Cents: 90000},
		Frequency: core.Monthly,
		SplitMode: core.SplitProportional,
		Active:    true,
		StartDate: core.NewDate(2026, 1, 1),
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	processed, err := m.ProcessDueItems(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDueItems: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	txns, err := repo.ListTransactions(ctx, 2026, 8)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	txn := txns[0]
	if txn.Amount.Cents != 90000 {
		t.Errorf("amount = %d, want 90000", txn.Amount.Cents)
	}
	// Incomes 2000/1000 euros: two thirds and one third.
	if txn.MemberOne.Cents != 60000 || txn.MemberTwo.Cents != 30000 {
		t.Errorf("split = (%d, %d), want (60000, 30000)", txn.MemberOne.Cents, txn.MemberTwo.Cents)
	}
	if txn.ItemID == nil || *txn.ItemID != id {
		t.Errorf("transaction not linked to item: %+v", txn.ItemID)
	}
}

func TestProcessDueItems_Idempotent(t *testing.T) {
	m, repo := newTestMaterializer(t)
	ctx := context.Background()

	if _, err := repo.CreateItem(ctx, core.RecurringItem{
		Kind:      core.KindExpense,
		Label:     "Internet",
		Amount:    core.Money{Cents: 3000},
		Frequency: core.Monthly,
		SplitMode: core.SplitEqual,
		Active:    true,
		StartDate: core.NewDate(2026, 1, 1),
	}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	if _, err := m.ProcessDueItems(ctx, now); err != nil {
		t.Fatalf("first run: %v", err)
	}
	processed, err := m.ProcessDueItems(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if processed != 0 {
		t.Errorf("second run processed %d items, want 0", processed)
	}

	txns, _ := repo.ListTransactions(ctx, 2026, 8)
	if len(txns) != 1 {
		t.Errorf("got %d transactions after two runs, want 1", len(txns))
	}
}

func TestProcessDueItems_FixedChargeSelfDeactivates(t *testing.T) {
	m, repo := newTestMaterializer(t)
	ctx := context.Background()

	id, err := repo.CreateItem(ctx, core.RecurringItem{
		Kind:      core.KindExpense,
		Label:     "Caparra",
		Amount:    core.Money{Cents: 50000},
		Frequency: core.Fixed,
		SplitMode: core.SplitEqual,
		Active:    true,
		StartDate: core.NewDate(2026, 8, 1),
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	processed, err := m.ProcessDueItems(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDueItems: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	active, err := repo.ListActiveItems(ctx)
	if err != nil {
		t.Fatalf("ListActiveItems: %v", err)
	}
	for _, rec := range active {
		if rec.Item.ID == id {
			t.Error("one-shot charge still active after materialization")
		}
	}
}

func TestProcessDueItems_ProvisionAccrues(t *testing.T) {
	m, repo := newTestMaterializer(t)
	ctx := context.Background()

	fixed := core.Money{Cents: 10000}
	id, err := repo.CreateItem(ctx, core.RecurringItem{
		Kind:            core.KindProvision,
		Label:           "Vacanze",
		BaseCalculation: core.BaseFixed,
		FixedAmount:     &fixed,
		SplitMode:       core.SplitEqual,
		Active:          true,
		StartDate:       core.NewDate(2026, 1, 1),
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	if _, err := m.ProcessDueItems(ctx, now); err != nil {
		t.Fatalf("ProcessDueItems: %v", err)
	}

	rec, err := repo.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if rec.Item.CurrentAmount.Cents != 10000 {
		t.Errorf("accrued = %d, want 10000", rec.Item.CurrentAmount.Cents)
	}
}

func TestProcessDueItems_PercentIncomeProvision(t *testing.T) {
	m, repo := newTestMaterializer(t)
	ctx := context.Background()

	// 10% of the 3000 euro joint income.
	if _, err := repo.CreateItem(ctx, core.RecurringItem{
		Kind:            core.KindProvision,
		Label:           "Risparmi",
		BaseCalculation: core.BasePercentIncome,
		Percentage:      10,
		SplitMode:       core.SplitEqual,
		Active:          true,
		StartDate:       core.NewDate(2026, 1, 1),
	}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	if _, err := m.ProcessDueItems(ctx, now); err != nil {
		t.Fatalf("ProcessDueItems: %v", err)
	}

	txns, _ := repo.ListTransactions(ctx, 2026, 8)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if txns[0].Amount.Cents != 30000 {
		t.Errorf("amount = %d, want 30000", txns[0].Amount.Cents)
	}
}
