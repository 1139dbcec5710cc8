package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListQuery selects a page of an owner's calculated transactions.
type ListQuery struct {
	OwnerID uuid.UUID
	Page    int
	// Limit of 0 returns every match.
	Limit  int
	Search string
}

// DailyTotal is the sum of one owner's calculated transactions on a
// calendar day in some timezone. Day is midnight of that day in the timezone
// and Sum is In plus Out.
type DailyTotal struct {
	Day time.Time
	In  Amount
	Out Amount
	Sum Amount
}

// Reader is the read side of a Store. Reads only observe committed state.
type Reader interface {
	Wallet(ctx context.Context, id uuid.UUID) (Wallet, error)
	WalletsByOwner(ctx context.Context, ownerID uuid.UUID) ([]Wallet, error)
	WalletIDs(ctx context.Context) ([]uuid.UUID, error)
	Transaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	// WalletTransactions returns the wallet's transactions in creation order.
	WalletTransactions(ctx context.Context, walletID uuid.UUID) ([]Transaction, error)
	// ListTransactions returns the requested page, newest first, plus the
	// total number of matches. Transactions excluded from calculation are skipped.
	ListTransactions(ctx context.Context, q ListQuery) ([]Transaction, int, error)
	// CalculatedTransactions returns the owner's calculated transactions with
	// from <= createdAt < to, newest first. A zero bound is open.
	CalculatedTransactions(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]Transaction, error)
	// DailyTotals groups calculated transactions in [from, to) by day in loc.
	// Days without transactions are omitted.
	DailyTotals(ctx context.Context, ownerID uuid.UUID, loc *time.Location, from, to time.Time) ([]DailyTotal, error)
}

// Tx is a unit of work. Wallets read through LockWallet stay locked until the
// unit commits or rolls back.
type Tx interface {
	LockWallet(ctx context.Context, id uuid.UUID) (Wallet, error)
	InsertWallet(ctx context.Context, w Wallet) error
	// UpdateWallet persists name, color, isCredit, balance and updatedAt.
	UpdateWallet(ctx context.Context, w Wallet) error
	DeleteWallet(ctx context.Context, id uuid.UUID) error

	Transaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	InsertTransaction(ctx context.Context, t Transaction) error
	// UpdateTransaction persists description, category, note, amount and type.
	UpdateTransaction(ctx context.Context, t Transaction) error
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	WalletTransactions(ctx context.Context, walletID uuid.UUID) ([]Transaction, error)
	// DetachTransactions clears walletId on every transaction of the wallet.
	DetachTransactions(ctx context.Context, walletID uuid.UUID) error
}

// Store persists wallets and transactions.
type Store interface {
	Reader
	// WithinTx runs fn in a unit of work that commits only if fn returns nil
	// and ctx is still live.
	WithinTx(ctx context.Context, fn func(Tx) error) error
}
