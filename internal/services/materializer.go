package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// Materializer turns due recurring items into concrete transactions for the
// current month, carrying the member split computed by the core.
type Materializer struct {
	storage   *storage.SQLiteRepository
	items     *ItemService
	household core.Household
}

func NewMaterializer(storage *storage.SQLiteRepository, items *ItemService, household core.Household) *Materializer {
	return &Materializer{
		storage:   storage,
		items:     items,
		household: household,
	}
}

// ProcessDueItems materializes all active recurring items that are due at
// the given time. Returns the number of transactions created.
func (m *Materializer) ProcessDueItems(ctx context.Context, now time.Time) (int, error) {
	if m.storage == nil || m.items == nil {
		return 0, fmt.Errorf("materializer not properly initialized")
	}

	records, err := m.storage.ListActiveItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active items: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring items",
		"total_active", len(records),
		"processing_date", now.Format("2006-01-02"))

	bases := m.computeBases(records)

	processed := 0
	for _, rec := range records {
		due, err := m.isDue(rec, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check if item is due",
				"id", rec.Item.ID,
				"frequency", rec.Item.Frequency,
				"error", err)
			continue
		}
		if !due {
			continue
		}

		// Guard against double materialization when last_materialized was
		// not recorded (e.g. a crash between the two writes).
		already, err := m.storage.HasMaterialized(ctx, rec.Item.ID, now.Year(), int(now.Month()))
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check existing transactions",
				"id", rec.Item.ID, "error", err)
			continue
		}
		if already {
			continue
		}

		if err := m.materialize(ctx, rec.Item, bases, now); err != nil {
			slog.ErrorContext(ctx, "Failed to materialize item",
				"id", rec.Item.ID,
				"label", rec.Item.Label,
				"error", err)
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Recurring item processing complete",
		"processed", processed,
		"total_checked", len(records))

	return processed, nil
}

func (m *Materializer) isDue(rec storage.ItemRecord, now time.Time) (bool, error) {
	// Provisions accrue monthly regardless of their base calculation.
	var checker DuenessChecker = MonthlyChecker{}
	if rec.Item.Kind == core.KindExpense {
		var err error
		checker, err = GetDuenessChecker(rec.Item.Frequency)
		if err != nil {
			return false, err
		}
	}
	return checker.IsDue(rec.LastMaterialized, now, rec.Item.StartDate), nil
}

func (m *Materializer) materialize(ctx context.Context, it core.RecurringItem, bases core.Bases, now time.Time) error {
	monthly, err := it.Monthly(bases)
	if err != nil {
		return fmt.Errorf("monthly amount: %w", err)
	}

	split, err := core.Split(monthly, it.SplitMode, m.household)
	if err != nil {
		return fmt.Errorf("split: %w", err)
	}
	if split.Fallback {
		slog.WarnContext(ctx, "Proportional split fell back to equal, member incomes missing",
			"id", it.ID,
			"label", it.Label)
	}

	itemID := it.ID
	txn := core.Transaction{
		Date:      core.NewDate(now.Year(), int(now.Month()), clampDay(it.StartDate.Day(), now)),
		Label:     it.Label,
		Amount:    monthly,
		MemberOne: split.MemberOne,
		MemberTwo: split.MemberTwo,
		ItemID:    &itemID,
	}

	if _, err := m.items.CreateTransaction(ctx, txn); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	if err := m.storage.UpdateItemLastMaterialized(ctx, it.ID, now); err != nil {
		slog.ErrorContext(ctx, "Failed to update last materialized",
			"id", it.ID, "error", err)
		// Continue; the HasMaterialized guard prevents a duplicate next run.
	}

	if it.Kind == core.KindProvision {
		accrued := it.CurrentAmount.Cents + monthly.Cents
		if err := m.storage.UpdateItemCurrentAmount(ctx, it.ID, accrued); err != nil {
			slog.ErrorContext(ctx, "Failed to update accrued amount",
				"id", it.ID, "error", err)
		}
	}

	// A fixed charge happens once; retire it after materialization.
	if it.Kind == core.KindExpense && it.Frequency == core.Fixed {
		if err := m.storage.SetItemActive(ctx, it.ID, false); err != nil {
			slog.ErrorContext(ctx, "Failed to deactivate one-shot item",
				"id", it.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Materialized recurring item",
		"id", it.ID,
		"label", it.Label,
		"amount_cents", monthly.Cents,
		"member1_cents", split.MemberOne.Cents,
		"member2_cents", split.MemberTwo.Cents)

	return nil
}

func (m *Materializer) computeBases(records []storage.ItemRecord) core.Bases {
	items := make([]core.RecurringItem, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.Item)
	}
	return core.ComputeBases(items, m.household)
}
