package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/logging"
	"github.com/finaki/finaki/internal/notification"
)

type driftStore struct {
	*ledger.MemoryStore
}

// drift overwrites a stored balance behind the engine's back.
func (s driftStore) drift(t *testing.T, id uuid.UUID, balance ledger.Amount) {
	t.Helper()
	err := s.WithinTx(context.Background(), func(tx ledger.Tx) error {
		w, err := tx.LockWallet(context.Background(), id)
		if err != nil {
			return err
		}
		w.Balance = balance
		return tx.UpdateWallet(context.Background(), w)
	})
	if err != nil {
		t.Fatalf("seed drift: %v", err)
	}
}

type recordingNotifier struct {
	sent []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notification.Message) error {
	n.sent = append(n.sent, msg)
	return nil
}

func setup(t *testing.T) (driftStore, *ledger.Engine, ledger.Wallet, ledger.Wallet) {
	t.Helper()
	store := driftStore{ledger.NewMemoryStore()}
	engine := ledger.NewEngine(store)
	owner := uuid.New()
	ok, err := engine.CreateWallet(context.Background(), ledger.NewWallet{OwnerID: owner, Name: "Fine", Balance: 100})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	bad, err := engine.CreateWallet(context.Background(), ledger.NewWallet{OwnerID: owner, Name: "Drifted", Balance: 300})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	store.drift(t, bad.ID, 7)
	return store, engine, ok, bad
}

func TestRunRepairsDrift(t *testing.T) {
	_, engine, _, bad := setup(t)
	notifier := &recordingNotifier{}
	job := NewJob(engine, notifier, logging.Discard())

	report, err := job.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Checked != 2 || len(report.Drifted) != 1 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if got := report.Drifted[0]; got.WalletID != bad.ID || got.Stored != 7 || got.Computed != 300 {
		t.Fatalf("unexpected drift entry: %+v", got)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Kind != notification.KindBalanceRepaired {
		t.Fatalf("expected one repair notification, got %+v", notifier.sent)
	}

	again, err := job.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(again.Drifted) != 0 {
		t.Fatalf("second run must find nothing, got %+v", again.Drifted)
	}
}

func TestRunDryRunDoesNotWrite(t *testing.T) {
	_, engine, _, bad := setup(t)
	job := NewJob(engine, nil, logging.Discard())

	report, err := job.Run(context.Background(), Options{DryRun: true, WalletIDs: []uuid.UUID{bad.ID}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Checked != 1 || len(report.Drifted) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	again, err := job.Run(context.Background(), Options{DryRun: true, WalletIDs: []uuid.UUID{bad.ID}})
	if err != nil || len(again.Drifted) != 1 {
		t.Fatalf("dry run must leave drift in place: %+v %v", again, err)
	}
}

func TestRunRecordsUnknownWallet(t *testing.T) {
	_, engine, ok, _ := setup(t)
	job := NewJob(engine, nil, logging.Discard())
	missing := uuid.New()

	report, err := job.Run(context.Background(), Options{WalletIDs: []uuid.UUID{missing, ok.ID}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Checked != 2 || !errors.Is(report.Failures[missing], ledger.ErrNotFound) {
		t.Fatalf("expected not found failure for unknown wallet: %+v", report)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	_, engine, ok, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewJob(engine, nil, logging.Discard()).Run(ctx, Options{WalletIDs: []uuid.UUID{ok.ID}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancelled, got %v", err)
	}
}
