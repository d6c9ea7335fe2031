package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// ItemService orchestrates recurring-item and transaction writes across
// SQLite and AMQP. Transactions are saved locally first; the ledger export
// happens asynchronously via sync messages.
type ItemService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewItemService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *ItemService {
	return &ItemService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateItem validates and saves a recurring item.
func (s *ItemService) CreateItem(ctx context.Context, it core.RecurringItem) (int64, error) {
	if err := it.Validate(); err != nil {
		return 0, fmt.Errorf("validate item: %w", err)
	}

	id, err := s.storage.CreateItem(ctx, it)
	if err != nil {
		return 0, fmt.Errorf("save item: %w", err)
	}
	return id, nil
}

// DeleteItem soft deletes a recurring item. Its transactions stay.
func (s *ItemService) DeleteItem(ctx context.Context, id int64) error {
	if err := s.storage.SoftDeleteItem(ctx, id); err != nil {
		return fmt.Errorf("soft delete item: %w", err)
	}
	return nil
}

// SetItemActive toggles whether an item takes part in materialization and
// summary totals.
func (s *ItemService) SetItemActive(ctx context.Context, id int64, active bool) error {
	if err := s.storage.SetItemActive(ctx, id, active); err != nil {
		return fmt.Errorf("set item active: %w", err)
	}
	return nil
}

// CreateTransaction saves a transaction locally and publishes a sync message
// for the ledger export.
func (s *ItemService) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	id, err := s.storage.CreateTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	if err := s.publishSyncMessage(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "error", err)
		// Don't fail the request; the transaction is saved locally and the
		// worker's pending sweep will pick it up.
	}

	return id, nil
}

func (s *ItemService) publishSyncMessage(ctx context.Context, id int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.amqpClient.PublishTransactionSync(ctx, id)
}

// Close closes both storage and AMQP connections.
func (s *ItemService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close item service: %v", errs)
	}
	return nil
}
