package ledger

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
)

// Effect is the direction and magnitude a transaction applies to its wallet.
type Effect struct {
	Type   Direction
	Amount Amount
}

// SignedEffect is +amount for IN and -amount for OUT.
func SignedEffect(e Effect) Amount {
	if e.Type == Out {
		return -e.Amount
	}
	return e.Amount
}

func checkEffect(e Effect) error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, e.Type)
	}
	if e.Amount < 0 {
		return fmt.Errorf("%w: negative amount %d", ErrInvalidArgument, e.Amount)
	}
	return nil
}

// addBalance returns balance+delta, failing instead of wrapping around.
func addBalance(balance, delta Amount) (Amount, error) {
	if (delta > 0 && balance > math.MaxInt64-delta) || (delta < 0 && balance < math.MinInt64-delta) {
		return 0, fmt.Errorf("%w: balance overflow", ErrInvalidArgument)
	}
	return balance + delta, nil
}

// ValidateCreate decides whether e may be recorded against w. A nil wallet
// means the transaction is unassigned and always passes.
func ValidateCreate(w *Wallet, e Effect) error {
	if err := checkEffect(e); err != nil {
		return err
	}
	if w == nil {
		return nil
	}
	if e.Type == Out && w.Balance < e.Amount {
		return &BalanceError{Op: "withdraw", WalletID: w.ID, Balance: w.Balance, Amount: e.Amount}
	}
	if _, err := addBalance(w.Balance, SignedEffect(e)); err != nil {
		return err
	}
	return nil
}

// ApplyCreate records an accepted creation on w.
func ApplyCreate(w *Wallet, id uuid.UUID, e Effect) {
	w.Balance += SignedEffect(e)
	w.TransactionIDs = append(w.TransactionIDs, id)
}

// ValidateUpdate returns the balance w would hold after replacing old with
// next. Callers only invoke it for assigned transactions whose type or amount
// changed.
func ValidateUpdate(w *Wallet, old, next Effect) (Amount, error) {
	if err := checkEffect(next); err != nil {
		return 0, err
	}
	if w == nil {
		return 0, nil
	}
	reversed, err := addBalance(w.Balance, -SignedEffect(old))
	if err != nil {
		return 0, err
	}
	balance, err := addBalance(reversed, SignedEffect(next))
	if err != nil {
		return 0, err
	}
	if balance < 0 {
		return 0, &BalanceError{Op: "update to", WalletID: w.ID, Balance: w.Balance, Amount: next.Amount}
	}
	return balance, nil
}

// ValidateDelete decides whether the transaction with effect e may be removed
// from w. Removing an inflow is rejected when the balance is below its amount;
// removing an outflow is always allowed.
func ValidateDelete(w *Wallet, e Effect) error {
	if w == nil {
		return nil
	}
	if e.Type == In && w.Balance < e.Amount {
		return &BalanceError{Op: "remove inflow of", WalletID: w.ID, Balance: w.Balance, Amount: e.Amount}
	}
	if _, err := addBalance(w.Balance, -SignedEffect(e)); err != nil {
		return err
	}
	return nil
}

// ApplyDelete reverses the contribution of transaction id on w.
func ApplyDelete(w *Wallet, id uuid.UUID, e Effect) {
	w.Balance -= SignedEffect(e)
	if i := slices.Index(w.TransactionIDs, id); i >= 0 {
		w.TransactionIDs = slices.Delete(w.TransactionIDs, i, i+1)
	}
}

// Recompute sums the signed effects of txns. Transfer legs are included, so
// the result matches a balance maintained by the functions above.
func Recompute(txns []Transaction) Amount {
	var total Amount
	for _, t := range txns {
		total += SignedEffect(t.Effect())
	}
	return total
}
