package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a wallet or transaction id does not resolve
	// for the requesting owner.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientBalance is returned when a mutation would violate the
	// balance rules of the affected wallet.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidType is returned for a transaction direction other than IN or OUT.
	ErrInvalidType = errors.New("invalid transaction type")

	// ErrInvalidTransfer is returned when a transfer names the same wallet as
	// source and destination.
	ErrInvalidTransfer = errors.New("invalid transfer")

	// ErrInvalidArgument covers malformed amounts, names and query bounds.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Amount is a money value in the smallest currency unit.
type Amount int64

// Direction tells whether a transaction adds to or takes from its wallet.
type Direction string

const (
	In  Direction = "IN"
	Out Direction = "OUT"
)

// Valid reports whether d is IN or OUT.
func (d Direction) Valid() bool {
	return d == In || d == Out
}

// ParseDirection accepts "in"/"out" in any case.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return d, nil
}

// Color is either a palette key ("green") or a literal value ("#00ff00").
type Color string

// IsLiteral reports whether the color carries a literal value instead of a palette key.
func (c Color) IsLiteral() bool {
	return strings.Contains(string(c), "#")
}

// Wallet is a named balance-bearing account.
type Wallet struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Name           string
	Color          Color
	Balance        Amount
	IsCredit       bool
	TransactionIDs []uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transaction is a single entry, optionally tied to a wallet.
type Transaction struct {
	ID                   uuid.UUID
	OwnerID              uuid.UUID
	WalletID             uuid.NullUUID
	TransferID           uuid.NullUUID
	Amount               Amount
	Type                 Direction
	Description          string
	Category             string
	Note                 string
	IncludeInCalculation bool
	CreatedAt            time.Time
}

// Effect returns the balance-relevant part of the transaction.
func (t Transaction) Effect() Effect {
	return Effect{Type: t.Type, Amount: t.Amount}
}

// WalletSummary is the slice of a wallet attached to monthly listings.
type WalletSummary struct {
	ID       uuid.UUID
	Name     string
	Color    Color
	IsCredit bool
}

// Summary returns the wallet's display fields.
func (w Wallet) Summary() WalletSummary {
	return WalletSummary{ID: w.ID, Name: w.Name, Color: w.Color, IsCredit: w.IsCredit}
}

// BalanceError carries the context of a rejected balance mutation. It matches
// ErrInsufficientBalance under errors.Is.
type BalanceError struct {
	Op       string
	WalletID uuid.UUID
	Balance  Amount
	Amount   Amount
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s: wallet %s has balance %d, cannot %s %d", ErrInsufficientBalance, e.WalletID, e.Balance, e.Op, e.Amount)
}

// Is makes errors.Is(err, ErrInsufficientBalance) hold.
func (e *BalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

func notFound(kind string, id uuid.UUID) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}
