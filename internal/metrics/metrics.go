package metrics

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/finaki/finaki/internal/ledger"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finaki_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finaki_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finaki_ledger_operations_total",
			Help: "Ledger mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	TransferredAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finaki_transferred_amount_total",
			Help: "Sum of amounts moved between wallets, in minor units",
		},
	)

	BalanceRepairsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finaki_balance_repairs_total",
			Help: "Wallet balances corrected by the reconcile job",
		},
	)

	IdempotentReplaysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finaki_idempotent_replays_total",
			Help: "Responses served from the idempotency cache",
		},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finaki_rate_limited_total",
			Help: "Write requests rejected by the rate limiter",
		},
	)
)

func RecordHTTPRequest(method, route string, status int, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// RecordLedgerOperation counts one engine call, labelling the outcome by
// error kind so rejections are visible next to infrastructure failures.
func RecordLedgerOperation(operation string, err error) {
	LedgerOperationsTotal.WithLabelValues(operation, Outcome(err)).Inc()
}

// Outcome maps an engine error to a metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrInvalidType), errors.Is(err, ledger.ErrInvalidTransfer), errors.Is(err, ledger.ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}

// Track records op like RecordLedgerOperation and logs its failure:
// rejections at warn, infrastructure errors at error.
func Track(logger *slog.Logger, op string, err error, attrs ...any) {
	RecordLedgerOperation(op, err)
	if err == nil {
		return
	}
	attrs = append(attrs, slog.String("operation", op), slog.Any("error", err))
	if Outcome(err) == "error" {
		logger.Error("ledger operation failed", attrs...)
		return
	}
	logger.Warn("ledger operation rejected", attrs...)
}

func RecordTransfer(amount ledger.Amount) {
	TransferredAmountTotal.Add(float64(amount))
}

func RecordRepair() {
	BalanceRepairsTotal.Inc()
}

func RecordIdempotentReplay() {
	IdempotentReplaysTotal.Inc()
}

func RecordRateLimited() {
	RateLimitedTotal.Inc()
}
