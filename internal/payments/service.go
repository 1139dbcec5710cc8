package payments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/metrics"
	"github.com/finaki/finaki/internal/notification"
)

// Service moves funds between wallets of the same owner.
type Service struct {
	engine   *ledger.Engine
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a payment service. notifier may be nil.
func NewService(engine *ledger.Engine, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{engine: engine, notifier: notifier, logger: logger}
}

// Transfer posts the OUT/IN pair and notifies the owner once it committed.
func (s *Service) Transfer(ctx context.Context, in ledger.TransferInput) (ledger.TransferResult, error) {
	res, err := s.engine.Transfer(ctx, in)
	metrics.Track(s.logger, "transfer", err,
		slog.String("from_wallet_id", in.FromWalletID.String()),
		slog.String("to_wallet_id", in.ToWalletID.String()),
		slog.Int64("amount", int64(in.Amount)),
	)
	if err != nil {
		return ledger.TransferResult{}, err
	}
	metrics.RecordTransfer(in.Amount)

	if s.notifier != nil {
		msg := notification.Message{
			Kind:        notification.KindTransfer,
			Destination: in.OwnerID.String(),
			Body:        fmt.Sprintf("Moved %d from %s to %s", in.Amount, res.From.Name, res.To.Name),
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("transfer notification failed", slog.String("transfer_id", res.TransferID.String()), slog.Any("error", err))
		}
	}
	return res, nil
}
