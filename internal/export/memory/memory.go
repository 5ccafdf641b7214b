// Package memory is an in-process ledger, used in development and tests
// where no external export target is configured.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"financas/internal/core"
)

type Ledger struct {
	mu      sync.Mutex
	entries map[int64]core.Transaction
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[int64]core.Transaction)}
}

// Append stores or replaces the transaction and returns its id as the
// ledger reference.
func (l *Ledger) Append(_ context.Context, t core.Transaction) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[t.ID] = t
	return strconv.FormatInt(t.ID, 10), nil
}

// Delete removes the transaction if present.
func (l *Ledger) Delete(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, id)
	return nil
}

// List returns the ledger contents ordered by id.
func (l *Ledger) List(_ context.Context) ([]core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]core.Transaction, 0, len(l.entries))
	for _, t := range l.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
