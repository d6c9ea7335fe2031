package adapters

import (
	"context"
	"errors"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

// SQLiteAdapter adapts SQLiteRepository and ItemService to the ledger ports.
// This lets the HTTP handlers work unchanged while using SQLite + AMQP.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.ItemService
}

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.ItemService) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
	}
}

var (
	_ ledger.ItemWriter        = (*SQLiteAdapter)(nil)
	_ ledger.ItemReader        = (*SQLiteAdapter)(nil)
	_ ledger.TransactionWriter = (*SQLiteAdapter)(nil)
	_ ledger.TransactionReader = (*SQLiteAdapter)(nil)
)

// SaveItem implements ledger.ItemWriter.
func (a *SQLiteAdapter) SaveItem(ctx context.Context, it core.RecurringItem) (int64, error) {
	return a.service.CreateItem(ctx, it)
}

// SetItemActive implements ledger.ItemWriter.
func (a *SQLiteAdapter) SetItemActive(ctx context.Context, id int64, active bool) error {
	return mapNotFound(a.service.SetItemActive(ctx, id, active))
}

// DeleteItem implements ledger.ItemWriter.
func (a *SQLiteAdapter) DeleteItem(ctx context.Context, id int64) error {
	return mapNotFound(a.service.DeleteItem(ctx, id))
}

// GetItem implements ledger.ItemReader.
func (a *SQLiteAdapter) GetItem(ctx context.Context, id int64) (core.RecurringItem, error) {
	rec, err := a.storage.GetItem(ctx, id)
	if err != nil {
		return core.RecurringItem{}, mapNotFound(err)
	}
	return rec.Item, nil
}

// ListItems implements ledger.ItemReader.
func (a *SQLiteAdapter) ListItems(ctx context.Context, kind core.ItemKind) ([]core.RecurringItem, error) {
	return a.storage.ListItems(ctx, string(kind))
}

// SaveTransaction implements ledger.TransactionWriter.
func (a *SQLiteAdapter) SaveTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	return a.service.CreateTransaction(ctx, t)
}

// ListTransactions implements ledger.TransactionReader.
func (a *SQLiteAdapter) ListTransactions(ctx context.Context, year, month int) ([]core.Transaction, error) {
	return a.storage.ListTransactions(ctx, year, month)
}

// MonthTotal implements ledger.TransactionReader.
func (a *SQLiteAdapter) MonthTotal(ctx context.Context, year, month int) (core.Money, error) {
	return a.storage.MonthTotal(ctx, year, month)
}

func mapNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ledger.ErrNotFound
	}
	return err
}
