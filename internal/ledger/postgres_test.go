package ledger_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/finaki/finaki/internal/infra"
	"github.com/finaki/finaki/internal/ledger"
)

// newPostgresEngine connects to TEST_DATABASE_URL and applies migrations.
// Every test uses a fresh owner id, so no cleanup is needed between runs.
func newPostgresEngine(t *testing.T) *ledger.Engine {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := infra.MigrateUp(url); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := infra.NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return ledger.NewEngine(ledger.NewPostgresStore(pool))
}

func TestPostgresLifecycle(t *testing.T) {
	e := newPostgresEngine(t)
	ctx := context.Background()
	owner := uuid.New()

	cash, err := e.CreateWallet(ctx, ledger.NewWallet{OwnerID: owner, Name: "Cash", Color: "#00aa00", Balance: 1_000})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	bank, err := e.CreateWallet(ctx, ledger.NewWallet{OwnerID: owner, Name: "Bank"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	out, err := e.CreateTransaction(ctx, ledger.NewTransaction{
		OwnerID:     owner,
		WalletID:    uuid.NullUUID{UUID: cash.ID, Valid: true},
		Amount:      300,
		Type:        ledger.Out,
		Description: "Groceries 50%_off",
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if out.Wallet.Balance != 700 {
		t.Fatalf("expected balance 700, got %d", out.Wallet.Balance)
	}

	if _, err := e.Transfer(ctx, ledger.TransferInput{OwnerID: owner, FromWalletID: cash.ID, ToWalletID: bank.ID, Amount: 200}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := e.Transfer(ctx, ledger.TransferInput{OwnerID: owner, FromWalletID: bank.ID, ToWalletID: cash.ID, Amount: 201}); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	got, err := e.Wallet(ctx, owner, cash.ID)
	if err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	if got.Balance != 500 || len(got.TransactionIDs) != 3 {
		t.Fatalf("unexpected wallet: balance=%d ids=%d", got.Balance, len(got.TransactionIDs))
	}
	_, computed, err := e.Recompute(ctx, owner, cash.ID)
	if err != nil || computed != got.Balance {
		t.Fatalf("recompute mismatch: %d vs %d (%v)", computed, got.Balance, err)
	}

	page, err := e.ListTransactions(ctx, ledger.ListQuery{OwnerID: owner, Page: 1, Search: "50%_"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != out.Transaction.ID {
		t.Fatalf("unexpected search result: %+v", page)
	}

	rows, err := e.TotalByPeriod(ctx, owner, 7, time.UTC)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	last := rows[len(rows)-1]
	if len(rows) != 7 || last.Out != 300 || last.In != 1_000 {
		t.Fatalf("unexpected totals for today: %+v", last)
	}

	res, err := e.DeleteWallet(ctx, owner, cash.ID, false)
	if err != nil {
		t.Fatalf("delete wallet: %v", err)
	}
	if res.Detached != 3 {
		t.Fatalf("expected 3 detached, got %d", res.Detached)
	}
	detached, err := e.Transaction(ctx, owner, out.Transaction.ID)
	if err != nil {
		t.Fatalf("load detached: %v", err)
	}
	if detached.WalletID.Valid {
		t.Fatalf("expected wallet id cleared")
	}
}

func TestPostgresConcurrentOutflows(t *testing.T) {
	e := newPostgresEngine(t)
	ctx := context.Background()
	owner := uuid.New()
	w, err := e.CreateWallet(ctx, ledger.NewWallet{OwnerID: owner, Name: "Cash", Balance: 500})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.CreateTransaction(ctx, ledger.NewTransaction{
				OwnerID:  owner,
				WalletID: uuid.NullUUID{UUID: w.ID, Valid: true},
				Amount:   100,
				Type:     ledger.Out,
			})
			if err != nil && !errors.Is(err, ledger.ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := e.Wallet(ctx, owner, w.ID)
	if err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	if got.Balance != 0 {
		t.Fatalf("expected balance 0, got %d", got.Balance)
	}
}
