// Package reconcile recomputes stored wallet balances from their transaction
// logs and repairs the ones that drifted.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/metrics"
	"github.com/finaki/finaki/internal/notification"
)

// Options controls a reconcile run.
type Options struct {
	// DryRun only reports drift.
	DryRun bool
	// WalletIDs restricts the run; empty means every wallet.
	WalletIDs []uuid.UUID
}

// Report summarises a run.
type Report struct {
	Checked  int
	Drifted  []ledger.RepairResult
	Failures map[uuid.UUID]error
}

// Job walks wallets and repairs drifted balances.
type Job struct {
	engine   *ledger.Engine
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewJob constructs a reconcile job. notifier may be nil.
func NewJob(engine *ledger.Engine, notifier notification.Notifier, logger *slog.Logger) *Job {
	return &Job{engine: engine, notifier: notifier, logger: logger}
}

// Run checks every selected wallet. A failure on one wallet is recorded in
// the report and does not stop the run; only listing wallets or a cancelled
// context aborts it.
func (j *Job) Run(ctx context.Context, opts Options) (Report, error) {
	ids := opts.WalletIDs
	if len(ids) == 0 {
		var err error
		if ids, err = j.engine.WalletIDs(ctx); err != nil {
			return Report{}, fmt.Errorf("list wallets: %w", err)
		}
	}

	report := Report{Failures: map[uuid.UUID]error{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := j.check(ctx, id, opts.DryRun)
		report.Checked++
		if err != nil {
			report.Failures[id] = err
			j.logger.Error("reconcile wallet", slog.String("wallet_id", id.String()), slog.Any("error", err))
			continue
		}
		if !res.Changed {
			continue
		}
		report.Drifted = append(report.Drifted, res)
		j.logger.Warn("wallet balance drift",
			slog.String("wallet_id", id.String()),
			slog.Int64("stored", int64(res.Stored)),
			slog.Int64("computed", int64(res.Computed)),
			slog.Bool("repaired", !opts.DryRun),
		)
		if !opts.DryRun {
			metrics.RecordRepair()
			j.notify(ctx, res)
		}
	}
	return report, nil
}

func (j *Job) check(ctx context.Context, id uuid.UUID, dryRun bool) (ledger.RepairResult, error) {
	if dryRun {
		return j.engine.Verify(ctx, id)
	}
	return j.engine.Repair(ctx, id)
}

func (j *Job) notify(ctx context.Context, res ledger.RepairResult) {
	if j.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindBalanceRepaired,
		Destination: res.WalletID.String(),
		Body:        fmt.Sprintf("Balance corrected from %d to %d", res.Stored, res.Computed),
	}
	if err := j.notifier.Send(ctx, msg); err != nil {
		j.logger.Warn("repair notification failed", slog.String("wallet_id", res.WalletID.String()), slog.Any("error", err))
	}
}
