package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/finaki/finaki/internal/config"
)

// Resources holds the external connections the service was started with.
// DB and Cache stay nil when their URL is empty, which config only allows in
// development.
type Resources struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// Open connects to Postgres and Redis as configured and applies migrations
// first when MigrateOnStart is set.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Resources, error) {
	res := &Resources{}

	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := MigrateUp(cfg.DatabaseURL); err != nil {
				return nil, err
			}
			logger.Info("migrations applied")
		}
		db, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		res.DB = db
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory ledger store")
	}

	if cfg.RedisURL != "" {
		cache, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			res.Close()
			return nil, err
		}
		res.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, idempotency disabled and rate limiting in-process")
	}

	return res, nil
}

// Close releases every open connection.
func (r *Resources) Close() error {
	var errs []error
	if r.DB != nil {
		r.DB.Close()
	}
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
