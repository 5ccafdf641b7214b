// Package storage persists transactions and cards in SQLite. The schema is
// managed by embedded migrations; amounts are stored as integer cents and
// dates as YYYY-MM-DD text, both matching the core representation.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"financas/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states for the export queue. New transactions start pending and move
// to synced (or error) once the worker has written them to the ledger.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

// PendingSyncTransaction is the minimal record the worker needs to build a
// queue message.
type PendingSyncTransaction struct {
	ID        int64
	CreatedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const transactionColumns = `id, type, description, amount_cents, category, date, status,
	is_recurring, is_installment, installments, current_installment, card_id`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t         core.Transaction
		typ       string
		date      string
		status    string
		recurring int64
		instFlag  int64
		cardID    sql.NullInt64
	)
	err := row.Scan(&t.ID, &typ, &t.Description, &t.Amount.Cents, &t.Category, &date, &status,
		&recurring, &instFlag, &t.Installments, &t.CurrentInstallment, &cardID)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Status = core.TransactionStatus(status)
	t.IsRecurring = recurring != 0
	t.IsInstallment = instFlag != 0
	if cardID.Valid {
		v := cardID.Int64
		t.CardID = &v
	}
	t.Date, err = core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	return t, nil
}

// CreateTransactions inserts a batch atomically: either the whole
// installment expansion lands or none of it does.
func (r *SQLiteRepository) CreateTransactions(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `INSERT INTO transactions
		(id, type, description, amount_cents, category, date, status,
		 is_recurring, is_installment, installments, current_installment, card_id, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		var cardID any
		if t.CardID != nil {
			cardID = *t.CardID
		}
		_, err := stmt.ExecContext(ctx, t.ID, string(t.Type), t.Description, t.Amount.Cents,
			t.Category, t.Date.String(), string(t.Status),
			boolToInt(t.IsRecurring), boolToInt(t.IsInstallment),
			t.Installments, t.CurrentInstallment, cardID, SyncPending)
		if err != nil {
			return fmt.Errorf("insert transaction %d: %w", t.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Transactions saved", "count", len(txs), "first_id", txs[0].ID)
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns every stored transaction. Filtering and
// aggregation happen in core over this snapshot.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// UpdateTransaction replaces a stored record. The updated row goes back to
// the pending sync state so the ledger copy gets refreshed.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	var cardID any
	if t.CardID != nil {
		cardID = *t.CardID
	}
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET
		type = ?, description = ?, amount_cents = ?, category = ?, date = ?, status = ?,
		is_recurring = ?, is_installment = ?, installments = ?, current_installment = ?,
		card_id = ?, sync_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(t.Type), t.Description, t.Amount.Cents, t.Category, t.Date.String(), string(t.Status),
		boolToInt(t.IsRecurring), boolToInt(t.IsInstallment), t.Installments, t.CurrentInstallment,
		cardID, SyncPending, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", t.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// BulkDeleteTransactions removes the given ids and reports how many rows
// actually went away; ids that no longer exist are not an error.
func (r *SQLiteRepository) BulkDeleteTransactions(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk delete transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk delete rows affected: %w", err)
	}
	slog.InfoContext(ctx, "Transactions bulk deleted", "requested", len(ids), "deleted", n)
	return n, nil
}

// ToggleTransactionStatus flips pending/confirmed atomically and returns
// the updated record.
func (r *SQLiteRepository) ToggleTransactionStatus(ctx context.Context, id int64) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET
		status = CASE status WHEN 'confirmed' THEN 'pending' ELSE 'confirmed' END,
		sync_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, SyncPending, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("toggle status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return r.GetTransaction(ctx, id)
}

// MaxID returns the highest identifier across transactions and cards, used
// to seed the id generator past stored data on startup.
func (r *SQLiteRepository) MaxID(ctx context.Context) (int64, error) {
	var max int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM (
		SELECT id FROM transactions UNION ALL SELECT id FROM cards)`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max id: %w", err)
	}
	return max, nil
}

// --- Cards ---

func (r *SQLiteRepository) CreateCard(ctx context.Context, c core.Card) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cards (id, name, due_day, color) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.DueDay, c.Color)
	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	slog.InfoContext(ctx, "Card saved", "id", c.ID, "name", c.Name, "due_day", c.DueDay)
	return nil
}

func (r *SQLiteRepository) GetCard(ctx context.Context, id int64) (core.Card, error) {
	var c core.Card
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, due_day, color FROM cards WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.DueDay, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Card{}, fmt.Errorf("card %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Card{}, fmt.Errorf("get card: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.Card, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, due_day, color FROM cards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []core.Card
	for rows.Next() {
		var c core.Card
		if err := rows.Scan(&c.ID, &c.Name, &c.DueDay, &c.Color); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return out, nil
}

// DeleteCard removes a card and clears card_id on every referencing
// transaction in the same database transaction, so readers never observe a
// dangling reference of our own making.
func (r *SQLiteRepository) DeleteCard(ctx context.Context, id int64) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx,
		`UPDATE transactions SET card_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE card_id = ?`, id); err != nil {
		return fmt.Errorf("clear card references: %w", err)
	}

	res, err := dbTx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("card %d: %w", id, ErrNotFound)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit card delete: %w", err)
	}
	slog.InfoContext(ctx, "Card deleted, references cleared", "id", id)
	return nil
}

// --- Sync queue ---

func (r *SQLiteRepository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at FROM transactions WHERE sync_status = ? ORDER BY created_at LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncTransaction
	for rows.Next() {
		var (
			p         PendingSyncTransaction
			createdAt string
		)
		if err := rows.Scan(&p.ID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending sync transaction: %w", err)
		}
		// CURRENT_TIMESTAMP stores "2006-01-02 15:04:05"; a parse failure
		// leaves the zero time, which only affects log output.
		p.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending sync transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncSynced); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncError); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
