// Package export defines the ports for the external ledger transactions
// are mirrored to. The API server only writes SQLite; the sync worker
// replays changes into a ledger implementation asynchronously.
package export

import (
	"context"

	"financas/internal/core"
)

// LedgerWriter appends or refreshes one transaction in the ledger and
// returns an implementation-specific reference.
type LedgerWriter interface {
	Append(ctx context.Context, t core.Transaction) (string, error)
}

// LedgerDeleter removes a transaction from the ledger. Deleting an id the
// ledger never saw is not an error.
type LedgerDeleter interface {
	Delete(ctx context.Context, id int64) error
}

// LedgerReader lists what the ledger currently holds, mostly for
// reconciliation and tests.
type LedgerReader interface {
	List(ctx context.Context) ([]core.Transaction, error)
}
