package ledger

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryTxn struct {
	Transaction
	seq int64
}

type memoryState struct {
	wallets map[uuid.UUID]Wallet
	txns    map[uuid.UUID]memoryTxn
	seq     int64
}

func (s *memoryState) clone() *memoryState {
	wallets := make(map[uuid.UUID]Wallet, len(s.wallets))
	for id, w := range s.wallets {
		w.TransactionIDs = slices.Clone(w.TransactionIDs)
		wallets[id] = w
	}
	return &memoryState{wallets: wallets, txns: maps.Clone(s.txns), seq: s.seq}
}

// MemoryStore keeps wallets and transactions in process memory. Units of work
// are serialized and applied to a copy of the state that replaces the live
// one only on commit.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

// NewMemoryStore creates an empty in-memory store, used in development and tests.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		wallets: make(map[uuid.UUID]Wallet),
		txns:    make(map[uuid.UUID]memoryTxn),
	}}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&memoryTx{state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) Wallet(_ context.Context, id uuid.UUID) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.wallet(id)
}

func (s *MemoryStore) WalletsByOwner(_ context.Context, ownerID uuid.UUID) ([]Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Wallet
	for _, w := range s.state.wallets {
		if w.OwnerID == ownerID {
			w.TransactionIDs = slices.Clone(w.TransactionIDs)
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) WalletIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.state.wallets))
	for id := range s.state.wallets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (s *MemoryStore) Transaction(_ context.Context, id uuid.UUID) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.transaction(id)
}

func (s *MemoryStore) WalletTransactions(_ context.Context, walletID uuid.UUID) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.walletTransactions(walletID)
}

func (s *MemoryStore) ListTransactions(_ context.Context, q ListQuery) ([]Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(q.Search)
	matches := s.state.calculated(q.OwnerID, func(t Transaction) bool {
		return search == "" || strings.Contains(strings.ToLower(t.Description), search)
	})
	total := len(matches)
	if q.Limit == 0 {
		return matches, total, nil
	}
	start := (q.Page - 1) * q.Limit
	if start >= total {
		return []Transaction{}, total, nil
	}
	end := min(start+q.Limit, total)
	return matches[start:end], total, nil
}

func (s *MemoryStore) CalculatedTransactions(_ context.Context, ownerID uuid.UUID, from, to time.Time) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.calculated(ownerID, inRange(from, to)), nil
}

func (s *MemoryStore) DailyTotals(_ context.Context, ownerID uuid.UUID, loc *time.Location, from, to time.Time) ([]DailyTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byDay := make(map[time.Time]*DailyTotal)
	for _, t := range s.state.calculated(ownerID, inRange(from, to)) {
		local := t.CreatedAt.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		total, ok := byDay[day]
		if !ok {
			total = &DailyTotal{Day: day}
			byDay[day] = total
		}
		if t.Type == In {
			total.In += t.Amount
		} else {
			total.Out += t.Amount
		}
		total.Sum += t.Amount
	}
	out := make([]DailyTotal, 0, len(byDay))
	for _, total := range byDay {
		out = append(out, *total)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func inRange(from, to time.Time) func(Transaction) bool {
	return func(t Transaction) bool {
		if !from.IsZero() && t.CreatedAt.Before(from) {
			return false
		}
		if !to.IsZero() && !t.CreatedAt.Before(to) {
			return false
		}
		return true
	}
}

func (s *memoryState) wallet(id uuid.UUID) (Wallet, error) {
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, notFound("wallet", id)
	}
	w.TransactionIDs = slices.Clone(w.TransactionIDs)
	return w, nil
}

func (s *memoryState) transaction(id uuid.UUID) (Transaction, error) {
	t, ok := s.txns[id]
	if !ok {
		return Transaction{}, notFound("transaction", id)
	}
	return t.Transaction, nil
}

func (s *memoryState) walletTransactions(walletID uuid.UUID) ([]Transaction, error) {
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, notFound("wallet", walletID)
	}
	out := make([]Transaction, 0, len(w.TransactionIDs))
	for _, id := range w.TransactionIDs {
		if t, ok := s.txns[id]; ok {
			out = append(out, t.Transaction)
		}
	}
	return out, nil
}

// calculated returns the owner's transactions included in calculation that
// satisfy keep, newest first.
func (s *memoryState) calculated(ownerID uuid.UUID, keep func(Transaction) bool) []Transaction {
	var rows []memoryTxn
	for _, t := range s.txns {
		if t.OwnerID == ownerID && t.IncludeInCalculation && keep(t.Transaction) {
			rows = append(rows, t)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].seq > rows[j].seq
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	out := make([]Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.Transaction
	}
	return out
}

type memoryTx struct {
	state *memoryState
}

func (tx *memoryTx) LockWallet(_ context.Context, id uuid.UUID) (Wallet, error) {
	return tx.state.wallet(id)
}

func (tx *memoryTx) InsertWallet(_ context.Context, w Wallet) error {
	w.TransactionIDs = slices.Clone(w.TransactionIDs)
	tx.state.wallets[w.ID] = w
	return nil
}

func (tx *memoryTx) UpdateWallet(_ context.Context, w Wallet) error {
	if _, ok := tx.state.wallets[w.ID]; !ok {
		return notFound("wallet", w.ID)
	}
	w.TransactionIDs = slices.Clone(w.TransactionIDs)
	tx.state.wallets[w.ID] = w
	return nil
}

func (tx *memoryTx) DeleteWallet(_ context.Context, id uuid.UUID) error {
	if _, ok := tx.state.wallets[id]; !ok {
		return notFound("wallet", id)
	}
	delete(tx.state.wallets, id)
	return nil
}

func (tx *memoryTx) Transaction(_ context.Context, id uuid.UUID) (Transaction, error) {
	return tx.state.transaction(id)
}

func (tx *memoryTx) InsertTransaction(_ context.Context, t Transaction) error {
	tx.state.seq++
	tx.state.txns[t.ID] = memoryTxn{Transaction: t, seq: tx.state.seq}
	return nil
}

func (tx *memoryTx) UpdateTransaction(_ context.Context, t Transaction) error {
	cur, ok := tx.state.txns[t.ID]
	if !ok {
		return notFound("transaction", t.ID)
	}
	cur.Description = t.Description
	cur.Category = t.Category
	cur.Note = t.Note
	cur.Amount = t.Amount
	cur.Type = t.Type
	tx.state.txns[t.ID] = cur
	return nil
}

func (tx *memoryTx) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	if _, ok := tx.state.txns[id]; !ok {
		return notFound("transaction", id)
	}
	delete(tx.state.txns, id)
	return nil
}

func (tx *memoryTx) WalletTransactions(_ context.Context, walletID uuid.UUID) ([]Transaction, error) {
	return tx.state.walletTransactions(walletID)
}

func (tx *memoryTx) DetachTransactions(_ context.Context, walletID uuid.UUID) error {
	w, ok := tx.state.wallets[walletID]
	if !ok {
		return notFound("wallet", walletID)
	}
	for _, id := range w.TransactionIDs {
		if t, ok := tx.state.txns[id]; ok {
			t.WalletID = uuid.NullUUID{}
			tx.state.txns[id] = t
		}
	}
	w.TransactionIDs = nil
	tx.state.wallets[walletID] = w
	return nil
}
