package ledger

import (
	"context"
	"errors"

	"bilancio/internal/core"
)

// ErrNotFound is returned by readers when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Ports for data backends and the external ledger export.
type (
	ItemWriter interface {
		SaveItem(ctx context.Context, it core.RecurringItem) (int64, error)
		SetItemActive(ctx context.Context, id int64, active bool) error
		DeleteItem(ctx context.Context, id int64) error
	}

	ItemReader interface {
		GetItem(ctx context.Context, id int64) (core.RecurringItem, error)
		// ListItems returns non-deleted items; kind "" means all kinds.
		ListItems(ctx context.Context, kind core.ItemKind) ([]core.RecurringItem, error)
	}

	TransactionWriter interface {
		SaveTransaction(ctx context.Context, t core.Transaction) (int64, error)
	}

	TransactionReader interface {
		ListTransactions(ctx context.Context, year int, month int) ([]core.Transaction, error)
		MonthTotal(ctx context.Context, year int, month int) (core.Money, error)
	}

	// Appender writes one transaction row to the external ledger and returns
	// a reference to the written row.
	Appender interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}
)
