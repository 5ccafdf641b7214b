package services

import (
	"context"
	"fmt"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/id"
	"financas/internal/log"
	"financas/internal/storage"
)

// TransactionService coordinates transaction persistence with installment
// expansion and best-effort sync event publishing. A nil AMQP client is
// allowed: the service then runs in local-only mode and the sync queue in
// storage is drained later by the worker's pending sweep.
type TransactionService struct {
	storage *storage.SQLiteRepository
	amqp    *amqp.Client
	ids     *id.Generator
	logger  *log.Logger
}

func NewTransactionService(repo *storage.SQLiteRepository, client *amqp.Client, ids *id.Generator, logger *log.Logger) *TransactionService {
	return &TransactionService{
		storage: repo,
		amqp:    client,
		ids:     ids,
		logger:  logger.WithComponent(log.ComponentService),
	}
}

// Create expands the draft into one or more records and persists them
// atomically. It returns the stored records in installment order.
func (s *TransactionService) Create(ctx context.Context, draft core.Transaction) ([]core.Transaction, error) {
	txs, err := core.ExpandInstallments(draft, s.ids.Next)
	if err != nil {
		return nil, fmt.Errorf("expanding installments: %w", err)
	}

	if err := s.storage.CreateTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("persisting transactions: %w", err)
	}

	for _, tx := range txs {
		s.publishSync(ctx, tx.ID)
	}

	s.logger.InfoContext(ctx, "transactions created",
		log.FieldOperation, log.OpCreate,
		log.FieldCount, len(txs),
		log.FieldInstallments, draft.Installments)
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, txID int64) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, txID)
}

func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx)
}

// Update applies the patch to the stored record and persists the result.
func (s *TransactionService) Update(ctx context.Context, txID int64, patch core.TransactionPatch) (core.Transaction, error) {
	current, err := s.storage.GetTransaction(ctx, txID)
	if err != nil {
		return core.Transaction{}, err
	}

	updated, err := patch.Apply(current)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("applying patch: %w", err)
	}

	if err := s.storage.UpdateTransaction(ctx, updated); err != nil {
		return core.Transaction{}, fmt.Errorf("updating transaction: %w", err)
	}

	s.publishSync(ctx, txID)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, txID int64) error {
	if err := s.storage.DeleteTransaction(ctx, txID); err != nil {
		return err
	}
	s.publishDelete(ctx, txID)
	return nil
}

// BulkDelete removes the given transactions and reports how many existed.
// Missing IDs are skipped, not errors.
func (s *TransactionService) BulkDelete(ctx context.Context, txIDs []int64) (int64, error) {
	deleted, err := s.storage.BulkDeleteTransactions(ctx, txIDs)
	if err != nil {
		return 0, err
	}
	for _, txID := range txIDs {
		s.publishDelete(ctx, txID)
	}
	s.logger.InfoContext(ctx, "transactions bulk deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldCount, deleted)
	return deleted, nil
}

// ToggleStatus flips the record between pending and confirmed.
func (s *TransactionService) ToggleStatus(ctx context.Context, txID int64) (core.Transaction, error) {
	tx, err := s.storage.ToggleTransactionStatus(ctx, txID)
	if err != nil {
		return core.Transaction{}, err
	}
	s.publishSync(ctx, txID)
	return tx, nil
}

// Summary aggregates the stored transactions for one calendar month.
func (s *TransactionService) Summary(ctx context.Context, month, year int, filter core.TypeFilter) (core.Summary, error) {
	txs, err := s.storage.ListTransactions(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Aggregate(txs, month, year, filter)
}

// ByCategory totals the month's expenses per category, largest first.
func (s *TransactionService) ByCategory(ctx context.Context, month, year int) ([]core.CategoryAmount, error) {
	txs, err := s.storage.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return core.GroupByCategory(txs, month, year)
}

func (s *TransactionService) publishSync(ctx context.Context, txID int64) {
	if s.amqp == nil {
		return
	}
	if err := s.amqp.PublishTransactionSync(ctx, txID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish sync event",
			log.FieldTransactionID, txID,
			log.FieldError, err)
	}
}

func (s *TransactionService) publishDelete(ctx context.Context, txID int64) {
	if s.amqp == nil {
		return
	}
	if err := s.amqp.PublishTransactionDelete(ctx, txID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish delete event",
			log.FieldTransactionID, txID,
			log.FieldError, err)
	}
}
