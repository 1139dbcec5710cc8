package wallet

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/metrics"
)

// Service exposes wallet operations of the ledger engine to the HTTP layer,
// recording every call in metrics and logging failures.
type Service struct {
	engine *ledger.Engine
	logger *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(engine *ledger.Engine, logger *slog.Logger) *Service {
	return &Service{engine: engine, logger: logger}
}

// Create opens a wallet, recording any opening balance as an IN transaction.
func (s *Service) Create(ctx context.Context, in ledger.NewWallet) (ledger.Wallet, error) {
	w, err := s.engine.CreateWallet(ctx, in)
	metrics.Track(s.logger, "wallet_create", err, slog.String("owner_id", in.OwnerID.String()))
	if err == nil {
		s.logger.Info("wallet created", slog.String("wallet_id", w.ID.String()), slog.Int64("balance", int64(w.Balance)))
	}
	return w, err
}

// Get returns one of the owner's wallets.
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (ledger.Wallet, error) {
	return s.engine.Wallet(ctx, ownerID, id)
}

// List returns the owner's wallets, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]ledger.Wallet, error) {
	return s.engine.Wallets(ctx, ownerID)
}

// Update changes name, color or credit flag.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, patch ledger.WalletPatch) (ledger.Wallet, error) {
	w, err := s.engine.UpdateWallet(ctx, ownerID, id, patch)
	metrics.Track(s.logger, "wallet_update", err, slog.String("wallet_id", id.String()))
	return w, err
}

// Delete removes a wallet and either deletes or unassigns its transactions.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID, deleteTransactions bool) (ledger.DeleteWalletResult, error) {
	res, err := s.engine.DeleteWallet(ctx, ownerID, id, deleteTransactions)
	metrics.Track(s.logger, "wallet_delete", err, slog.String("wallet_id", id.String()), slog.Bool("cascade", deleteTransactions))
	if err == nil {
		s.logger.Info("wallet deleted",
			slog.String("wallet_id", id.String()),
			slog.Int("deleted", res.Deleted),
			slog.Int("detached", res.Detached),
		)
	}
	return res, err
}

// History returns the running balance after each transaction of the wallet.
func (s *Service) History(ctx context.Context, ownerID, id uuid.UUID) ([]ledger.BalancePoint, error) {
	return s.engine.BalanceHistory(ctx, ownerID, id)
}

// Recompute reports the stored balance next to the one implied by the log.
func (s *Service) Recompute(ctx context.Context, ownerID, id uuid.UUID) (ledger.Wallet, ledger.Amount, error) {
	w, computed, err := s.engine.Recompute(ctx, ownerID, id)
	if err != nil {
		return ledger.Wallet{}, 0, err
	}
	if computed != w.Balance {
		s.logger.Warn("wallet balance drift",
			slog.String("wallet_id", id.String()),
			slog.Int64("stored", int64(w.Balance)),
			slog.Int64("computed", int64(computed)),
		)
	}
	return w, computed, nil
}
