package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bilancio/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testExpense(label string) core.RecurringItem {
	return core.RecurringItem{
		Kind:      core.KindExpense,
		Label:     label,
		Amount:    core.Money{Cents: 120000},
		Frequency: core.Annual,
		SplitMode: core.SplitEqual,
		Active:    true,
		StartDate: core.NewDate(2026, 1, 1),
	}
}

func TestCreateAndGetItem(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	fixed := core.Money{Cents: 5000}
	target := core.Money{Cents: 300000}
	item := core.RecurringItem{
		Kind:            core.KindProvision,
		Label:           "Vacanze",
		BaseCalculation: core.BaseFixed,
		FixedAmount:     &fixed,
		TargetAmount:    &target,
		CurrentAmount:   core.Money{Cents: 45000},
		SplitMode:       core.SplitProportional,
		Active:          true,
		StartDate:       core.NewDate(2026, 3, 15),
	}

	id, err := repo.CreateItem(ctx, item)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	rec, err := repo.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}

	got := rec.Item
	if got.Kind != core.KindProvision || got.Label != "Vacanze" {
		t.Errorf("unexpected item: %+v", got)
	}
	if got.FixedAmount == nil || got.FixedAmount.Cents != 5000 {
		t.Errorf("fixed amount not round-tripped: %+v", got.FixedAmount)
	}
	if got.TargetAmount == nil || got.TargetAmount.Cents != 300000 {
		t.Errorf("target amount not round-tripped: %+v", got.TargetAmount)
	}
	if got.CurrentAmount.Cents != 45000 {
		t.Errorf("current amount = %d, want 45000", got.CurrentAmount.Cents)
	}
	if got.StartDate.Year() != 2026 || got.StartDate.Month() != 3 || got.StartDate.Day() != 15 {
		t.Errorf("start date not round-tripped: %v", got.StartDate)
	}
	if !rec.LastMaterialized.IsZero() {
		t.Errorf("new item should have zero LastMaterialized, got %v", rec.LastMaterialized)
	}
}

func TestGetItemNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetItem(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListItemsKindFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateItem(ctx, testExpense("Affitto")); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	provision := core.RecurringItem{
		Kind:            core.KindProvision,
		Label:           "Emergenze",
		BaseCalculation: core.BasePercentIncome,
		Percentage:      10,
		SplitMode:       core.SplitEqual,
		Active:          true,
		StartDate:       core.NewDate(2026, 1, 1),
	}
	if _, err := repo.CreateItem(ctx, provision); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	all, err := repo.ListItems(ctx, "")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListItems(all) = %d items, want 2", len(all))
	}

	provisions, err := repo.ListItems(ctx, string(core.KindProvision))
	if err != nil {
		t.Fatalf("ListItems(provision): %v", err)
	}
	if len(provisions) != 1 || provisions[0].Label != "Emergenze" {
		t.Errorf("kind filter returned %+v", provisions)
	}
}

func TestSoftDeleteItem(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreateItem(ctx, testExpense("Bolletta"))
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	if err := repo.SoftDeleteItem(ctx, id); err != nil {
		t.Fatalf("SoftDeleteItem: %v", err)
	}
	if _, err := repo.GetItem(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted item still readable, err = %v", err)
	}
	if err := repo.SoftDeleteItem(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should report ErrNotFound, got %v", err)
	}
}

func TestSetItemActiveAndListActive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreateItem(ctx, testExpense("Palestra"))
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	if err := repo.SetItemActive(ctx, id, false); err != nil {
		t.Fatalf("SetItemActive: %v", err)
	}
	active, err := repo.ListActiveItems(ctx)
	if err != nil {
		t.Fatalf("ListActiveItems: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("deactivated item listed as active: %+v", active)
	}

	if err := repo.SetItemActive(ctx, id, true); err != nil {
		t.Fatalf("SetItemActive: %v", err)
	}
	active, err = repo.ListActiveItems(ctx)
	if err != nil {
		t.Fatalf("ListActiveItems: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("reactivated item missing from active list")
	}
}

func TestUpdateItemLastMaterialized(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreateItem(ctx, testExpense("Assicurazione"))
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	when := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.UpdateItemLastMaterialized(ctx, id, when); err != nil {
		t.Fatalf("UpdateItemLastMaterialized: %v", err)
	}

	rec, err := repo.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if !rec.LastMaterialized.Equal(when) {
		t.Errorf("LastMaterialized = %v, want %v", rec.LastMaterialized, when)
	}
}

func TestTransactionsMonthQueries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	itemID, err := repo.CreateItem(ctx, testExpense("Affitto"))
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	august := core.Transaction{
		Date:      core.NewDate(2026, 8, 1),
		Label:     "Affitto",
		Amount:    core.Money{Cents: 85000},
		MemberOne: core.Money{Cents: 42500},
		MemberTwo: core.Money{Cents: 42500},
		ItemID:    &itemID,
	}
	if _, err := repo.CreateTransaction(ctx, august); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	september := core.Transaction{
		Date:      core.NewDate(2026, 9, 5),
		Label:     "Spesa",
		Amount:    core.Money{Cents: 12050},
		MemberOne: core.Money{Cents: 6025},
		MemberTwo: core.Money{Cents: 6025},
		ImportRef: "batch-1",
	}
	if _, err := repo.CreateTransaction(ctx, september); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	txns, err := repo.ListTransactions(ctx, 2026, 8)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("ListTransactions(2026, 8) = %d, want 1", len(txns))
	}
	if txns[0].ItemID == nil || *txns[0].ItemID != itemID {
		t.Errorf("item link not round-tripped: %+v", txns[0].ItemID)
	}

	total, err := repo.MonthTotal(ctx, 2026, 9)
	if err != nil {
		t.Fatalf("MonthTotal: %v", err)
	}
	if total.Cents != 12050 {
		t.Errorf("MonthTotal = %d, want 12050", total.Cents)
	}

	empty, err := repo.MonthTotal(ctx, 2027, 1)
	if err != nil {
		t.Fatalf("MonthTotal(empty): %v", err)
	}
	if empty.Cents != 0 {
		t.Errorf("MonthTotal of empty month = %d, want 0", empty.Cents)
	}
}

func TestHasMaterialized(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	itemID, err := repo.CreateItem(ctx, testExpense("Affitto"))
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	done, err := repo.HasMaterialized(ctx, itemID, 2026, 8)
	if err != nil {
		t.Fatalf("HasMaterialized: %v", err)
	}
	if done {
		t.Error("HasMaterialized true before any transaction")
	}

	txn := core.Transaction{
		Date:      core.NewDate(2026, 8, 1),
		Label:     "Affitto",
		Amount:    core.Money{Cents: 85000},
		MemberOne: core.Money{Cents: 42500},
		MemberTwo: core.Money{Cents: 42500},
		ItemID:    &itemID,
	}
	if _, err := repo.CreateTransaction(ctx, txn); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	done, err = repo.HasMaterialized(ctx, itemID, 2026, 8)
	if err != nil {
		t.Fatalf("HasMaterialized: %v", err)
	}
	if !done {
		t.Error("HasMaterialized false after materialization")
	}
}

func TestSyncStateTransitions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	txn := core.Transaction{
		Date:      core.NewDate(2026, 8, 10),
		Label:     "Benzina",
		Amount:    core.Money{Cents: 7000},
		MemberOne: core.Money{Cents: 3500},
		MemberTwo: core.Money{Cents: 3500},
	}
	id, err := repo.CreateTransaction(ctx, txn)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncTransactions: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("pending = %+v, want one entry with id %d", pending, id)
	}

	if err := repo.MarkSynced(ctx, id); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	pending, err = repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncTransactions: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("synced transaction still pending: %+v", pending)
	}
}

func TestMarkSyncErrorExcludesFromPending(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	txn := core.Transaction{
		Date:      core.NewDate(2026, 8, 11),
		Label:     "Farmacia",
		Amount:    core.Money{Cents: 2300},
		MemberOne: core.Money{Cents: 1150},
		MemberTwo: core.Money{Cents: 1150},
	}
	id, err := repo.CreateTransaction(ctx, txn)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if err := repo.MarkSyncError(ctx, id); err != nil {
		t.Fatalf("MarkSyncError: %v", err)
	}
	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncTransactions: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("errored transaction still pending: %+v", pending)
	}
}

func TestImportsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateImport(ctx, "ref-abc", "agosto.csv", "csv", 42); err != nil {
		t.Fatalf("CreateImport: %v", err)
	}

	imports, err := repo.ListImports(ctx)
	if err != nil {
		t.Fatalf("ListImports: %v", err)
	}
	if len(imports) != 1 {
		t.Fatalf("ListImports = %d, want 1", len(imports))
	}
	got := imports[0]
	if got.Ref != "ref-abc" || got.Filename != "agosto.csv" || got.Format != "csv" || got.RowCount != 42 {
		t.Errorf("import record not round-tripped: %+v", got)
	}

	// The ref column is unique; a duplicate batch must fail.
	if err := repo.CreateImport(ctx, "ref-abc", "agosto.csv", "csv", 42); err == nil {
		t.Error("duplicate import ref accepted")
	}
}
