package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/finaki/finaki/internal/config"
	"github.com/finaki/finaki/internal/infra"
	"github.com/finaki/finaki/internal/logging"
)

func main() {
	steps := flag.Int("steps", 0, "apply n migrations (negative rolls back), used with the steps command")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [-steps n] up|down|steps|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	m, err := infra.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		logger.Error("open migrator", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if *steps == 0 {
			logger.Error("steps requires -steps n")
			os.Exit(2)
		}
		err = m.Steps(*steps)
	case "version":
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migration failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.Error("read version", "error", err)
		os.Exit(1)
	}
	logger.Info("schema version", "version", version, "dirty", dirty)
}
