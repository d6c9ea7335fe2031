package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// SyncWorker exports transactions from SQLite to the external ledger.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	ledger    ledger.Appender
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, appender ledger.Appender, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		ledger:    appender,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single transaction sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID)

	txn, err := w.storage.GetTransaction(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if err := w.exportTransaction(ctx, *txn); err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}
	return nil
}

// ProcessPendingTransactions exports transactions that have not been synced
// yet. This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingTransactions(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck recovers from missed AMQP messages or worker downtime by
// draining a larger pending batch at startup.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize*5)
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) error {
	pending, err := w.storage.GetPendingSyncTransactions(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, p := range pending {
		txn, err := w.storage.GetTransaction(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			continue
		}

		if err := w.exportTransaction(ctx, *txn); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction", "id", p.ID, "error", err)
			continue
		}
	}

	return nil
}

func (w *SyncWorker) exportTransaction(ctx context.Context, txn core.Transaction) error {
	ref, err := w.ledger.Append(ctx, txn)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, txn.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", txn.ID, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, txn.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", txn.ID, "error", err)
		// Don't return an error; the export actually worked.
	}

	fields := log.NewFields().
		WithComponent(log.ComponentWorker).
		WithOperation(log.OpSync)
	fields[log.FieldLedgerRef] = ref
	fields[log.FieldItemLabel] = txn.Label
	fields[log.FieldAmountCents] = txn.Amount.Cents
	slog.InfoContext(ctx, "Exported transaction to ledger",
		append([]any{"id", txn.ID}, fields.ToSlice()...)...)

	return nil
}
