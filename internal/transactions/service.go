package transactions

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/metrics"
)

// Service exposes transaction operations and aggregates of the ledger engine.
type Service struct {
	engine *ledger.Engine
	logger *slog.Logger
}

// NewService constructs a transaction service.
func NewService(engine *ledger.Engine, logger *slog.Logger) *Service {
	return &Service{engine: engine, logger: logger}
}

func (s *Service) Create(ctx context.Context, in ledger.NewTransaction) (ledger.Posting, error) {
	p, err := s.engine.CreateTransaction(ctx, in)
	metrics.Track(s.logger, "transaction_create", err,
		slog.String("owner_id", in.OwnerID.String()),
		slog.String("type", string(in.Type)),
		slog.Int64("amount", int64(in.Amount)),
	)
	return p, err
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (ledger.Transaction, error) {
	return s.engine.Transaction(ctx, ownerID, id)
}

func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, patch ledger.TransactionPatch) (ledger.Posting, error) {
	p, err := s.engine.UpdateTransaction(ctx, ownerID, id, patch)
	metrics.Track(s.logger, "transaction_update", err, slog.String("transaction_id", id.String()))
	return p, err
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) (ledger.Posting, error) {
	p, err := s.engine.DeleteTransaction(ctx, ownerID, id)
	metrics.Track(s.logger, "transaction_delete", err, slog.String("transaction_id", id.String()))
	return p, err
}

func (s *Service) List(ctx context.Context, q ledger.ListQuery) (ledger.Page, error) {
	return s.engine.ListTransactions(ctx, q)
}

func (s *Service) Daily(ctx context.Context, ownerID uuid.UUID, loc *time.Location) ([]ledger.DayBucket, error) {
	return s.engine.DateBuckets(ctx, ownerID, loc)
}

func (s *Service) Monthly(ctx context.Context, ownerID uuid.UUID, month time.Month, year int, loc *time.Location) ([]ledger.MonthlyEntry, error) {
	return s.engine.MonthlyTransactions(ctx, ownerID, month, year, loc)
}

func (s *Service) Totals(ctx context.Context, ownerID uuid.UUID, days int, loc *time.Location) ([]ledger.PeriodTotal, error) {
	return s.engine.TotalByPeriod(ctx, ownerID, days, loc)
}
