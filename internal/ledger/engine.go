package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Engine runs every wallet and transaction mutation through the reconciler
// inside a single store unit of work.
type Engine struct {
	store Store
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now as the source of creation timestamps and of
// "today" in period totals.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine builds an engine over the given store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Posting is the outcome of a transaction mutation: the transaction and, when
// it is assigned, the wallet as left by the mutation.
type Posting struct {
	Transaction Transaction
	Wallet      *Wallet
}

// NewWallet captures the fields needed to open a wallet.
type NewWallet struct {
	OwnerID  uuid.UUID
	Name     string
	Color    Color
	Balance  Amount
	IsCredit bool
}

// WalletPatch lists the metadata fields to change; nil fields are kept.
type WalletPatch struct {
	Name     *string
	Color    *Color
	IsCredit *bool
}

// DeleteWalletResult reports what happened to the transactions of a deleted wallet.
type DeleteWalletResult struct {
	Wallet   Wallet
	Deleted  int
	Detached int
}

// TransferInput describes a move of funds between two wallets of one owner.
type TransferInput struct {
	OwnerID      uuid.UUID
	FromWalletID uuid.UUID
	ToWalletID   uuid.UUID
	Amount       Amount
	Note         string
}

// TransferResult holds both legs and both wallets after a transfer.
type TransferResult struct {
	TransferID uuid.UUID
	Out        Transaction
	In         Transaction
	From       Wallet
	To         Wallet
}

// BalancePoint is the wallet balance right after one of its transactions.
type BalancePoint struct {
	TransactionID uuid.UUID
	Timestamp     time.Time
	Value         Amount
}

// RepairResult compares a stored balance with the one recomputed from the log.
type RepairResult struct {
	WalletID uuid.UUID
	Stored   Amount
	Computed Amount
	Changed  bool
}

// NewTransaction captures the fields of a user-recorded transaction.
type NewTransaction struct {
	OwnerID     uuid.UUID
	WalletID    uuid.NullUUID
	Amount      Amount
	Type        Direction
	Description string
	Category    string
	Note        string
}

// TransactionPatch lists the fields to change; nil fields are kept.
type TransactionPatch struct {
	Description *string
	Amount      *Amount
	Type        *Direction
	Category    *string
	Note        *string
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

func lockOwnedWallet(ctx context.Context, tx Tx, ownerID, id uuid.UUID) (Wallet, error) {
	w, err := tx.LockWallet(ctx, id)
	if err != nil {
		return Wallet{}, err
	}
	if w.OwnerID != ownerID {
		return Wallet{}, notFound("wallet", id)
	}
	return w, nil
}

// lockOwnedTransaction loads a transaction together with its wallet, locking
// the wallet first and re-reading the transaction once the lock is held.
func lockOwnedTransaction(ctx context.Context, tx Tx, ownerID, id uuid.UUID) (Transaction, *Wallet, error) {
	var gone uuid.NullUUID
	for {
		t, err := tx.Transaction(ctx, id)
		if err != nil {
			return Transaction{}, nil, err
		}
		if t.OwnerID != ownerID {
			return Transaction{}, nil, notFound("transaction", id)
		}
		if !t.WalletID.Valid {
			return t, nil, nil
		}
		w, err := tx.LockWallet(ctx, t.WalletID.UUID)
		if errors.Is(err, ErrNotFound) && gone != t.WalletID {
			// wallet deleted meanwhile, the transaction may now be unassigned
			gone = t.WalletID
			continue
		}
		if err != nil {
			return Transaction{}, nil, err
		}
		locked, err := tx.Transaction(ctx, id)
		if err != nil {
			return Transaction{}, nil, err
		}
		if locked.WalletID == t.WalletID {
			return locked, &w, nil
		}
		// detached while we waited for the wallet lock
	}
}

// CreateWallet opens a wallet. A positive opening balance is recorded as an
// IN transaction so the log alone reproduces the balance.
func (e *Engine) CreateWallet(ctx context.Context, in NewWallet) (Wallet, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Wallet{}, fmt.Errorf("%w: wallet name is required", ErrInvalidArgument)
	}
	if in.Balance < 0 {
		return Wallet{}, fmt.Errorf("%w: opening balance must not be negative", ErrInvalidArgument)
	}

	now := e.timestamp()
	w := Wallet{
		ID:        uuid.New(),
		OwnerID:   in.OwnerID,
		Name:      name,
		Color:     in.Color,
		IsCredit:  in.IsCredit,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.InsertWallet(ctx, w); err != nil {
			return err
		}
		if in.Balance == 0 {
			return nil
		}
		opening := Transaction{
			ID:                   uuid.New(),
			OwnerID:              in.OwnerID,
			WalletID:             uuid.NullUUID{UUID: w.ID, Valid: true},
			Amount:               in.Balance,
			Type:                 In,
			Description:          "Opening balance " + name,
			IncludeInCalculation: true,
			CreatedAt:            now,
		}
		if err := ValidateCreate(&w, opening.Effect()); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, opening); err != nil {
			return err
		}
		ApplyCreate(&w, opening.ID, opening.Effect())
		return tx.UpdateWallet(ctx, w)
	})
	if err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Wallet returns one of the owner's wallets.
func (e *Engine) Wallet(ctx context.Context, ownerID, id uuid.UUID) (Wallet, error) {
	w, err := e.store.Wallet(ctx, id)
	if err != nil {
		return Wallet{}, err
	}
	if w.OwnerID != ownerID {
		return Wallet{}, notFound("wallet", id)
	}
	return w, nil
}

// Wallets lists the owner's wallets, newest first.
func (e *Engine) Wallets(ctx context.Context, ownerID uuid.UUID) ([]Wallet, error) {
	return e.store.WalletsByOwner(ctx, ownerID)
}

// UpdateWallet changes display metadata. The balance is never touched here.
func (e *Engine) UpdateWallet(ctx context.Context, ownerID, id uuid.UUID, patch WalletPatch) (Wallet, error) {
	var out Wallet
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		w, err := lockOwnedWallet(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return fmt.Errorf("%w: wallet name is required", ErrInvalidArgument)
			}
			w.Name = name
		}
		if patch.Color != nil {
			w.Color = *patch.Color
		}
		if patch.IsCredit != nil {
			w.IsCredit = *patch.IsCredit
		}
		w.UpdatedAt = e.timestamp()
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return Wallet{}, err
	}
	return out, nil
}

// DeleteWallet removes a wallet. With cascade every transaction is deleted
// newest first through the reconciler and the whole delete fails if any one
// is rejected; without cascade the transactions are kept and unassigned.
func (e *Engine) DeleteWallet(ctx context.Context, ownerID, id uuid.UUID, cascade bool) (DeleteWalletResult, error) {
	var res DeleteWalletResult
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		w, err := lockOwnedWallet(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		txns, err := tx.WalletTransactions(ctx, id)
		if err != nil {
			return err
		}
		res = DeleteWalletResult{Wallet: w}
		if !cascade {
			if err := tx.DetachTransactions(ctx, id); err != nil {
				return err
			}
			res.Detached = len(txns)
			return tx.DeleteWallet(ctx, id)
		}
		for i := len(txns) - 1; i >= 0; i-- {
			t := txns[i]
			if err := ValidateDelete(&w, t.Effect()); err != nil {
				return err
			}
			ApplyDelete(&w, t.ID, t.Effect())
			if err := tx.DeleteTransaction(ctx, t.ID); err != nil {
				return err
			}
		}
		res.Wallet = w
		res.Deleted = len(txns)
		return tx.DeleteWallet(ctx, id)
	})
	if err != nil {
		return DeleteWalletResult{}, err
	}
	return res, nil
}

// Transfer moves funds between two of the owner's wallets as a linked OUT/IN
// pair. Both legs are kept out of listings and aggregates but both change
// balances, and either both are recorded or neither is.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if in.FromWalletID == in.ToWalletID {
		return TransferResult{}, fmt.Errorf("%w: source and destination are the same wallet", ErrInvalidTransfer)
	}
	if in.Amount <= 0 {
		return TransferResult{}, fmt.Errorf("%w: transfer amount must be positive", ErrInvalidArgument)
	}

	var res TransferResult
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		// lock in id order so opposite transfers cannot deadlock
		first, second := in.FromWalletID, in.ToWalletID
		if bytes.Compare(first[:], second[:]) > 0 {
			first, second = second, first
		}
		locked := make(map[uuid.UUID]Wallet, 2)
		for _, id := range []uuid.UUID{first, second} {
			w, err := lockOwnedWallet(ctx, tx, in.OwnerID, id)
			if err != nil {
				return err
			}
			locked[id] = w
		}
		from, to := locked[in.FromWalletID], locked[in.ToWalletID]

		now := e.timestamp()
		transferID := uuid.NullUUID{UUID: uuid.New(), Valid: true}
		out := Transaction{
			ID:          uuid.New(),
			OwnerID:     in.OwnerID,
			WalletID:    uuid.NullUUID{UUID: from.ID, Valid: true},
			TransferID:  transferID,
			Amount:      in.Amount,
			Type:        Out,
			Description: "Transfer to " + to.Name,
			Note:        in.Note,
			CreatedAt:   now,
		}
		inLeg := Transaction{
			ID:          uuid.New(),
			OwnerID:     in.OwnerID,
			WalletID:    uuid.NullUUID{UUID: to.ID, Valid: true},
			TransferID:  transferID,
			Amount:      in.Amount,
			Type:        In,
			Description: "Transfer from " + from.Name,
			Note:        in.Note,
			CreatedAt:   now,
		}

		if err := ValidateCreate(&from, out.Effect()); err != nil {
			return err
		}
		ApplyCreate(&from, out.ID, out.Effect())
		if err := ValidateCreate(&to, inLeg.Effect()); err != nil {
			return err
		}
		ApplyCreate(&to, inLeg.ID, inLeg.Effect())

		for _, t := range []Transaction{out, inLeg} {
			if err := tx.InsertTransaction(ctx, t); err != nil {
				return err
			}
		}
		from.UpdatedAt, to.UpdatedAt = now, now
		if err := tx.UpdateWallet(ctx, from); err != nil {
			return err
		}
		if err := tx.UpdateWallet(ctx, to); err != nil {
			return err
		}
		res = TransferResult{TransferID: transferID.UUID, Out: out, In: inLeg, From: from, To: to}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	return res, nil
}

// BalanceHistory replays the wallet's log and returns the running balance
// after each transaction, oldest first.
func (e *Engine) BalanceHistory(ctx context.Context, ownerID, walletID uuid.UUID) ([]BalancePoint, error) {
	if _, err := e.Wallet(ctx, ownerID, walletID); err != nil {
		return nil, err
	}
	txns, err := e.store.WalletTransactions(ctx, walletID)
	if err != nil {
		return nil, err
	}
	points := make([]BalancePoint, 0, len(txns))
	var running Amount
	for _, t := range txns {
		running += SignedEffect(t.Effect())
		points = append(points, BalancePoint{TransactionID: t.ID, Timestamp: t.CreatedAt, Value: running})
	}
	return points, nil
}

// Recompute returns the wallet together with the balance implied by its log
// without changing anything. Both are read under the wallet lock so a
// concurrent posting cannot show up as drift.
func (e *Engine) Recompute(ctx context.Context, ownerID, walletID uuid.UUID) (Wallet, Amount, error) {
	var (
		w        Wallet
		computed Amount
	)
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		if w, err = lockOwnedWallet(ctx, tx, ownerID, walletID); err != nil {
			return err
		}
		txns, err := tx.WalletTransactions(ctx, walletID)
		if err != nil {
			return err
		}
		computed = Recompute(txns)
		return nil
	})
	if err != nil {
		return Wallet{}, 0, err
	}
	return w, computed, nil
}

// Repair overwrites the stored balance with the recomputed one when they
// differ. Running it again is a no-op.
func (e *Engine) Repair(ctx context.Context, walletID uuid.UUID) (RepairResult, error) {
	var res RepairResult
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		w, err := tx.LockWallet(ctx, walletID)
		if err != nil {
			return err
		}
		txns, err := tx.WalletTransactions(ctx, walletID)
		if err != nil {
			return err
		}
		res = RepairResult{WalletID: walletID, Stored: w.Balance, Computed: Recompute(txns)}
		if res.Stored == res.Computed {
			return nil
		}
		res.Changed = true
		w.Balance = res.Computed
		w.UpdatedAt = e.timestamp()
		return tx.UpdateWallet(ctx, w)
	})
	if err != nil {
		return RepairResult{}, err
	}
	return res, nil
}

// Verify reports what Repair would do without writing anything.
func (e *Engine) Verify(ctx context.Context, walletID uuid.UUID) (RepairResult, error) {
	var res RepairResult
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		w, err := tx.LockWallet(ctx, walletID)
		if err != nil {
			return err
		}
		txns, err := tx.WalletTransactions(ctx, walletID)
		if err != nil {
			return err
		}
		res = RepairResult{WalletID: walletID, Stored: w.Balance, Computed: Recompute(txns)}
		res.Changed = res.Stored != res.Computed
		return nil
	})
	if err != nil {
		return RepairResult{}, err
	}
	return res, nil
}

// WalletIDs lists every wallet in the store, for maintenance jobs.
func (e *Engine) WalletIDs(ctx context.Context) ([]uuid.UUID, error) {
	return e.store.WalletIDs(ctx)
}

// CreateTransaction records a transaction, updating its wallet when one is given.
func (e *Engine) CreateTransaction(ctx context.Context, in NewTransaction) (Posting, error) {
	t := Transaction{
		ID:                   uuid.New(),
		OwnerID:              in.OwnerID,
		WalletID:             in.WalletID,
		Amount:               in.Amount,
		Type:                 in.Type,
		Description:          strings.TrimSpace(in.Description),
		Category:             in.Category,
		Note:                 in.Note,
		IncludeInCalculation: true,
		CreatedAt:            e.timestamp(),
	}

	var res Posting
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		if !t.WalletID.Valid {
			if err := ValidateCreate(nil, t.Effect()); err != nil {
				return err
			}
			res = Posting{Transaction: t}
			return tx.InsertTransaction(ctx, t)
		}
		w, err := lockOwnedWallet(ctx, tx, in.OwnerID, t.WalletID.UUID)
		if err != nil {
			return err
		}
		if err := ValidateCreate(&w, t.Effect()); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		ApplyCreate(&w, t.ID, t.Effect())
		w.UpdatedAt = t.CreatedAt
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		res = Posting{Transaction: t, Wallet: &w}
		return nil
	})
	if err != nil {
		return Posting{}, err
	}
	return res, nil
}

// Transaction returns one of the owner's transactions.
func (e *Engine) Transaction(ctx context.Context, ownerID, id uuid.UUID) (Transaction, error) {
	t, err := e.store.Transaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if t.OwnerID != ownerID {
		return Transaction{}, notFound("transaction", id)
	}
	return t, nil
}

// UpdateTransaction edits a transaction. Only a change of type or amount on an
// assigned transaction goes through balance validation.
func (e *Engine) UpdateTransaction(ctx context.Context, ownerID, id uuid.UUID, patch TransactionPatch) (Posting, error) {
	var res Posting
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		t, w, err := lockOwnedTransaction(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		next := t
		if patch.Description != nil {
			next.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Category != nil {
			next.Category = *patch.Category
		}
		if patch.Note != nil {
			next.Note = *patch.Note
		}
		if patch.Amount != nil {
			next.Amount = *patch.Amount
		}
		if patch.Type != nil {
			next.Type = *patch.Type
		}

		if next.Type != t.Type || next.Amount != t.Amount {
			balance, err := ValidateUpdate(w, t.Effect(), next.Effect())
			if err != nil {
				return err
			}
			if w != nil {
				w.Balance = balance
				w.UpdatedAt = e.timestamp()
				if err := tx.UpdateWallet(ctx, *w); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateTransaction(ctx, next); err != nil {
			return err
		}
		res = Posting{Transaction: next, Wallet: w}
		return nil
	})
	if err != nil {
		return Posting{}, err
	}
	return res, nil
}

// DeleteTransaction removes a transaction and reverses its effect on its wallet.
func (e *Engine) DeleteTransaction(ctx context.Context, ownerID, id uuid.UUID) (Posting, error) {
	var res Posting
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		t, w, err := lockOwnedTransaction(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if err := ValidateDelete(w, t.Effect()); err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		if w != nil {
			ApplyDelete(w, t.ID, t.Effect())
			w.UpdatedAt = e.timestamp()
			if err := tx.UpdateWallet(ctx, *w); err != nil {
				return err
			}
		}
		res = Posting{Transaction: t, Wallet: w}
		return nil
	})
	if err != nil {
		return Posting{}, err
	}
	return res, nil
}
