package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/finaki/finaki/internal/config"
	"github.com/finaki/finaki/internal/infra"
	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/logging"
	"github.com/finaki/finaki/internal/notification"
	"github.com/finaki/finaki/internal/reconcile"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report drift without repairing it")
	wallets := flag.String("wallets", "", "comma separated wallet ids to check (default: all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	var ids []uuid.UUID
	for _, raw := range strings.Split(*wallets, ",") {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			logger.Error("invalid wallet id", "value", raw, "error", err)
			os.Exit(2)
		}
		ids = append(ids, id)
	}

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine := ledger.NewEngine(ledger.NewPostgresStore(db))
	job := reconcile.NewJob(engine, notification.NewLoggerNotifier(logger), logger)

	report, err := job.Run(ctx, reconcile.Options{DryRun: *dryRun, WalletIDs: ids})
	if err != nil {
		logger.Error("reconcile aborted", "error", err, "checked", report.Checked)
		os.Exit(1)
	}
	logger.Info("reconcile finished",
		"checked", report.Checked,
		"drifted", len(report.Drifted),
		"failed", len(report.Failures),
		"dry_run", *dryRun,
	)
	if len(report.Failures) > 0 {
		os.Exit(1)
	}
}
