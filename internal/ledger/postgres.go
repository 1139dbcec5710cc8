package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists wallets and transactions in PostgreSQL. Wallet rows
// are locked with SELECT ... FOR UPDATE for the length of a unit of work.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	walletColumns      = `id, owner_id, name, color, balance, is_credit, created_at, updated_at`
	transactionColumns = `id, owner_id, wallet_id, transfer_id, amount, type, description, category, note, include_in_calculation, created_at`
)

// WithinTx runs fn inside a database transaction. Any error from fn, or a
// cancelled ctx, rolls everything back.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Wallet(ctx context.Context, id uuid.UUID) (Wallet, error) {
	return loadWallet(ctx, s.db, id, false)
}

func (s *PostgresStore) WalletsByOwner(ctx context.Context, ownerID uuid.UUID) ([]Wallet, error) {
	rows, err := s.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE owner_id = $1 ORDER BY created_at DESC, name`, ownerID)
	if err != nil {
		return nil, err
	}
	wallets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Wallet, error) {
		return scanWallet(row)
	})
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		return wallets, nil
	}

	idRows, err := s.db.Query(ctx, `SELECT wallet_id, id FROM transactions
        WHERE owner_id = $1 AND wallet_id IS NOT NULL ORDER BY seq`, ownerID)
	if err != nil {
		return nil, err
	}
	defer idRows.Close()
	byWallet := make(map[uuid.UUID][]uuid.UUID, len(wallets))
	for idRows.Next() {
		var walletID, id uuid.UUID
		if err := idRows.Scan(&walletID, &id); err != nil {
			return nil, err
		}
		byWallet[walletID] = append(byWallet[walletID], id)
	}
	if err := idRows.Err(); err != nil {
		return nil, err
	}
	for i := range wallets {
		wallets[i].TransactionIDs = byWallet[wallets[i].ID]
	}
	return wallets, nil
}

func (s *PostgresStore) WalletIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM wallets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *PostgresStore) Transaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return loadTransaction(ctx, s.db, id)
}

func (s *PostgresStore) WalletTransactions(ctx context.Context, walletID uuid.UUID) ([]Transaction, error) {
	return walletTransactions(ctx, s.db, walletID)
}

func (s *PostgresStore) ListTransactions(ctx context.Context, q ListQuery) ([]Transaction, int, error) {
	pattern := likePattern(q.Search)

	const filter = `FROM transactions
        WHERE owner_id = $1 AND include_in_calculation AND description ILIKE $2`

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) `+filter, q.OwnerID, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := 0
	if q.Limit > 0 {
		offset = (q.Page - 1) * q.Limit
	}
	// LIMIT NULL means no limit
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+` `+filter+`
        ORDER BY created_at DESC, seq DESC LIMIT NULLIF($3, 0) OFFSET $4`,
		q.OwnerID, pattern, q.Limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *PostgresStore) CalculatedTransactions(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE owner_id = $1 AND include_in_calculation
          AND ($2::timestamptz IS NULL OR created_at >= $2)
          AND ($3::timestamptz IS NULL OR created_at < $3)
        ORDER BY created_at DESC, seq DESC`, ownerID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (s *PostgresStore) DailyTotals(ctx context.Context, ownerID uuid.UUID, loc *time.Location, from, to time.Time) ([]DailyTotal, error) {
	const query = `
        SELECT date_trunc('day', created_at AT TIME ZONE $2) AS day,
               COALESCE(SUM(amount) FILTER (WHERE type = 'IN'), 0)::bigint,
               COALESCE(SUM(amount) FILTER (WHERE type = 'OUT'), 0)::bigint,
               COALESCE(SUM(amount), 0)::bigint
        FROM transactions
        WHERE owner_id = $1 AND include_in_calculation
          AND created_at >= $3 AND created_at < $4
        GROUP BY 1
        ORDER BY 1`
	rows, err := s.db.Query(ctx, query, ownerID, loc.String(), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []DailyTotal
	for rows.Next() {
		var (
			day                time.Time
			inSum, outSum, sum int64
		)
		if err := rows.Scan(&day, &inSum, &outSum, &sum); err != nil {
			return nil, err
		}
		totals = append(totals, DailyTotal{
			Day: time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc),
			In:  Amount(inSum),
			Out: Amount(outSum),
			Sum: Amount(sum),
		})
	}
	return totals, rows.Err()
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) LockWallet(ctx context.Context, id uuid.UUID) (Wallet, error) {
	return loadWallet(ctx, t.tx, id, true)
}

func (t *postgresTx) InsertWallet(ctx context.Context, w Wallet) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO wallets (`+walletColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.OwnerID, w.Name, string(w.Color), int64(w.Balance), w.IsCredit, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	return err
}

func (t *postgresTx) UpdateWallet(ctx context.Context, w Wallet) error {
	tag, err := t.tx.Exec(ctx, `UPDATE wallets
        SET name = $2, color = $3, is_credit = $4, balance = $5, updated_at = $6
        WHERE id = $1`,
		w.ID, w.Name, string(w.Color), w.IsCredit, int64(w.Balance), w.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("wallet", w.ID)
	}
	return nil
}

func (t *postgresTx) DeleteWallet(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM wallets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("wallet", id)
	}
	return nil
}

func (t *postgresTx) Transaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return loadTransaction(ctx, t.tx, id)
}

func (t *postgresTx) InsertTransaction(ctx context.Context, txn Transaction) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		txn.ID, txn.OwnerID, txn.WalletID, txn.TransferID, int64(txn.Amount), string(txn.Type),
		txn.Description, txn.Category, txn.Note, txn.IncludeInCalculation, txn.CreatedAt.UTC())
	return err
}

func (t *postgresTx) UpdateTransaction(ctx context.Context, txn Transaction) error {
	tag, err := t.tx.Exec(ctx, `UPDATE transactions
        SET description = $2, category = $3, note = $4, amount = $5, type = $6
        WHERE id = $1`,
		txn.ID, txn.Description, txn.Category, txn.Note, int64(txn.Amount), string(txn.Type))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("transaction", txn.ID)
	}
	return nil
}

func (t *postgresTx) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("transaction", id)
	}
	return nil
}

func (t *postgresTx) WalletTransactions(ctx context.Context, walletID uuid.UUID) ([]Transaction, error) {
	return walletTransactions(ctx, t.tx, walletID)
}

func (t *postgresTx) DetachTransactions(ctx context.Context, walletID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `UPDATE transactions SET wallet_id = NULL WHERE wallet_id = $1`, walletID)
	return err
}

func loadWallet(ctx context.Context, q querier, id uuid.UUID, lock bool) (Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	w, err := scanWallet(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, notFound("wallet", id)
		}
		return Wallet{}, err
	}

	rows, err := q.Query(ctx, `SELECT id FROM transactions WHERE wallet_id = $1 ORDER BY seq`, id)
	if err != nil {
		return Wallet{}, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet %s transaction ids: %w", id, err)
	}
	w.TransactionIDs = ids
	return w, nil
}

func loadTransaction(ctx context.Context, q querier, id uuid.UUID) (Transaction, error) {
	t, err := scanTransaction(q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, notFound("transaction", id)
		}
		return Transaction{}, err
	}
	return t, nil
}

func walletTransactions(ctx context.Context, q querier, walletID uuid.UUID) ([]Transaction, error) {
	rows, err := q.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE wallet_id = $1 ORDER BY seq`, walletID)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w       Wallet
		color   string
		balance int64
	)
	if err := row.Scan(&w.ID, &w.OwnerID, &w.Name, &color, &balance, &w.IsCredit, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	w.Color = Color(color)
	w.Balance = Amount(balance)
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t      Transaction
		amount int64
		kind   string
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.WalletID, &t.TransferID, &amount, &kind,
		&t.Description, &t.Category, &t.Note, &t.IncludeInCalculation, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	t.Amount = Amount(amount)
	t.Type = Direction(kind)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Transaction{}
	}
	return items, nil
}

// likePattern turns a search text into an ILIKE substring pattern.
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
