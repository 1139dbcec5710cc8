package ledger

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestValidateCreateOutNeedsBalance(t *testing.T) {
	cases := []struct {
		balance Amount
		amount  Amount
		wantErr bool
	}{
		{balance: 1000, amount: 1500, wantErr: true},
		{balance: 1000, amount: 1000, wantErr: false},
		{balance: 1000, amount: 999, wantErr: false},
		{balance: 0, amount: 1, wantErr: true},
		{balance: 0, amount: 0, wantErr: false},
	}
	for _, tc := range cases {
		w := &Wallet{ID: uuid.New(), Balance: tc.balance}
		err := ValidateCreate(w, Effect{Type: Out, Amount: tc.amount})
		if got := err != nil; got != tc.wantErr {
			t.Fatalf("balance %d amount %d: expected error=%v, got %v", tc.balance, tc.amount, tc.wantErr, err)
		}
		if err != nil && !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("expected insufficient balance, got %v", err)
		}
	}
}

func TestValidateCreateInAndUnassigned(t *testing.T) {
	w := &Wallet{ID: uuid.New()}
	if err := ValidateCreate(w, Effect{Type: In, Amount: 5_000}); err != nil {
		t.Fatalf("IN on empty wallet: %v", err)
	}
	if err := ValidateCreate(nil, Effect{Type: Out, Amount: 5_000}); err != nil {
		t.Fatalf("unassigned OUT: %v", err)
	}
	if err := ValidateCreate(nil, Effect{Type: "SIDEWAYS", Amount: 1}); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected invalid type, got %v", err)
	}
	if err := ValidateCreate(w, Effect{Type: In, Amount: -1}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for negative amount, got %v", err)
	}
	full := &Wallet{ID: uuid.New(), Balance: math.MaxInt64}
	if err := ValidateCreate(full, Effect{Type: In, Amount: 1}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected overflow rejection, got %v", err)
	}
}

func TestApplyCreateAndDelete(t *testing.T) {
	w := &Wallet{ID: uuid.New(), Balance: 100}
	id := uuid.New()
	ApplyCreate(w, id, Effect{Type: Out, Amount: 40})
	if w.Balance != 60 || len(w.TransactionIDs) != 1 || w.TransactionIDs[0] != id {
		t.Fatalf("unexpected wallet after create: %+v", w)
	}
	ApplyDelete(w, id, Effect{Type: Out, Amount: 40})
	if w.Balance != 100 || len(w.TransactionIDs) != 0 {
		t.Fatalf("unexpected wallet after delete: %+v", w)
	}
}

func TestValidateUpdate(t *testing.T) {
	cases := []struct {
		name    string
		balance Amount
		old     Effect
		next    Effect
		want    Amount
		wantErr error
	}{
		{name: "raise outflow", balance: 300, old: Effect{Out, 700}, next: Effect{Out, 1000}, want: 0},
		{name: "outflow beyond balance", balance: 300, old: Effect{Out, 700}, next: Effect{Out, 1001}, wantErr: ErrInsufficientBalance},
		{name: "shrink inflow below spent", balance: 50, old: Effect{In, 500}, next: Effect{In, 10}, wantErr: ErrInsufficientBalance},
		{name: "flip outflow to inflow", balance: 100, old: Effect{Out, 50}, next: Effect{In, 50}, want: 200},
		{name: "flip inflow to outflow", balance: 100, old: Effect{In, 50}, next: Effect{Out, 50}, want: 0},
		{name: "flip inflow to outflow too far", balance: 100, old: Effect{In, 50}, next: Effect{Out, 51}, wantErr: ErrInsufficientBalance},
		{name: "unknown type", balance: 100, old: Effect{In, 50}, next: Effect{"NONE", 50}, wantErr: ErrInvalidType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := &Wallet{ID: uuid.New(), Balance: tc.balance}
			got, err := ValidateUpdate(w, tc.old, tc.next)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected balance %d, got %d", tc.want, got)
			}
			if w.Balance != tc.balance {
				t.Fatalf("validation must not mutate the wallet")
			}
		})
	}
}

func TestValidateDelete(t *testing.T) {
	w := &Wallet{ID: uuid.New(), Balance: 150}
	err := ValidateDelete(w, Effect{Type: In, Amount: 200})
	var balErr *BalanceError
	if !errors.As(err, &balErr) {
		t.Fatalf("expected balance error, got %v", err)
	}
	if balErr.Balance != 150 || balErr.Amount != 200 || balErr.WalletID != w.ID {
		t.Fatalf("unexpected error context: %+v", balErr)
	}
	if err := ValidateDelete(w, Effect{Type: In, Amount: 150}); err != nil {
		t.Fatalf("deleting inflow equal to balance: %v", err)
	}
	if err := ValidateDelete(w, Effect{Type: Out, Amount: 10_000}); err != nil {
		t.Fatalf("deleting outflow: %v", err)
	}
	if err := ValidateDelete(nil, Effect{Type: In, Amount: 10_000}); err != nil {
		t.Fatalf("deleting unassigned: %v", err)
	}
}

func TestRecompute(t *testing.T) {
	txns := []Transaction{
		{Type: In, Amount: 500, IncludeInCalculation: true},
		{Type: Out, Amount: 450, IncludeInCalculation: true},
		{Type: Out, Amount: 20},
		{Type: In, Amount: 5},
	}
	first := Recompute(txns)
	if first != 35 {
		t.Fatalf("expected 35, got %d", first)
	}
	if again := Recompute(txns); again != first {
		t.Fatalf("recompute not idempotent: %d vs %d", first, again)
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection(" out "); err != nil || d != Out {
		t.Fatalf("expected OUT, got %q %v", d, err)
	}
	if _, err := ParseDirection("both"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected invalid type, got %v", err)
	}
}

func TestColorIsLiteral(t *testing.T) {
	if !Color("#1abc9c").IsLiteral() {
		t.Fatal("hex color should be literal")
	}
	if Color("green").IsLiteral() {
		t.Fatal("palette key should not be literal")
	}
}
