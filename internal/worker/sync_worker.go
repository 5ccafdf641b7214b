// Package worker mirrors transaction changes from SQLite into the export
// ledger. It is driven by AMQP events, with a periodic sweep over the
// pending sync queue as a backstop for lost messages.
package worker

import (
	"context"
	"errors"
	"fmt"

	"financas/internal/amqp"
	"financas/internal/export"
	"financas/internal/log"
	"financas/internal/storage"
)

type SyncWorker struct {
	storage   *storage.SQLiteRepository
	ledger    export.LedgerWriter
	deleter   export.LedgerDeleter
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(repo *storage.SQLiteRepository, ledger export.LedgerWriter, deleter export.LedgerDeleter, batchSize int, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		storage:   repo,
		ledger:    ledger,
		deleter:   deleter,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage fetches the transaction from storage and appends the
// current version to the ledger. The message carries only the id, so a
// stale event resolves to fresh data.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionMessage) error {
	w.logger.InfoContext(ctx, "processing sync event",
		log.FieldTransactionID, msg.ID,
		log.FieldOperation, log.OpSync)

	if err := w.syncToLedger(ctx, msg.ID); err != nil {
		// A record deleted between publish and consume is not a failure:
		// the delete event for it is already in flight or handled.
		if errors.Is(err, storage.ErrNotFound) {
			w.logger.WarnContext(ctx, "transaction vanished before sync",
				log.FieldTransactionID, msg.ID)
			return nil
		}
		return err
	}
	return nil
}

// HandleDeleteMessage removes the transaction from the ledger.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.TransactionMessage) error {
	w.logger.InfoContext(ctx, "processing delete event",
		log.FieldTransactionID, msg.ID,
		log.FieldOperation, log.OpDelete)

	if w.deleter == nil {
		w.logger.WarnContext(ctx, "no ledger deleter configured, skipping",
			log.FieldTransactionID, msg.ID)
		return nil
	}

	if err := w.deleter.Delete(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete from ledger: %w", err)
	}
	return nil
}

// ProcessPendingTransactions sweeps the sync queue and pushes anything
// still pending to the ledger. Failures are marked and retried on the
// next sweep rather than aborting the batch.
func (w *SyncWorker) ProcessPendingTransactions(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "processing pending transactions",
		log.FieldCount, len(pending))

	for _, p := range pending {
		if err := w.syncToLedger(ctx, p.ID); err != nil {
			w.logger.ErrorContext(ctx, "failed to sync pending transaction",
				log.FieldTransactionID, p.ID,
				log.FieldError, err)
		}
	}
	return nil
}

// StartupSyncCheck drains a larger slice of the pending queue once at
// worker startup to recover from downtime or missed events.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncTransactions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}
	if len(pending) == 0 {
		w.logger.InfoContext(ctx, "no pending transactions on startup")
		return nil
	}

	synced, failed := 0, 0
	for _, p := range pending {
		if err := w.syncToLedger(ctx, p.ID); err != nil {
			w.logger.ErrorContext(ctx, "startup sync failed for transaction",
				log.FieldTransactionID, p.ID,
				log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "startup sync completed",
		"total", len(pending),
		"synced", synced,
		"failed", failed)
	return nil
}

func (w *SyncWorker) syncToLedger(ctx context.Context, id int64) error {
	tx, err := w.storage.GetTransaction(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
				w.logger.ErrorContext(ctx, "failed to mark sync error",
					log.FieldTransactionID, id,
					log.FieldError, markErr)
			}
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	ref, err := w.ledger.Append(ctx, tx)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "failed to mark sync error",
				log.FieldTransactionID, id,
				log.FieldError, markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		// The append worked, so leave the record pending and let the
		// next sweep retry the status update.
		w.logger.ErrorContext(ctx, "failed to mark as synced",
			log.FieldTransactionID, id,
			log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "transaction synced",
		log.FieldTransactionID, id,
		log.FieldLedgerRef, ref,
		log.FieldAmountCents, tx.Amount.Cents)
	return nil
}
