package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/finaki/finaki/internal/auth"
	"github.com/finaki/finaki/internal/config"
	"github.com/finaki/finaki/internal/ledger"
	"github.com/finaki/finaki/internal/middleware"
	"github.com/finaki/finaki/internal/notification"
	"github.com/finaki/finaki/internal/payments"
	"github.com/finaki/finaki/internal/transactions"
	"github.com/finaki/finaki/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Store overrides the store picked from DB, for tests.
	Store ledger.Store
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// plain text access log while developing: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	store := d.Store
	if store == nil {
		if d.DB != nil {
			store = ledger.NewPostgresStore(d.DB)
		} else {
			store = ledger.NewMemoryStore()
		}
	}
	engine := ledger.NewEngine(store)

	walletHandler := wallet.NewHandler(wallet.NewService(engine, d.Logger))
	transactionHandler := transactions.NewHandler(transactions.NewService(engine, d.Logger), d.Cfg.Location())
	paymentHandler := payments.NewHandler(payments.NewService(engine, notification.NewLoggerNotifier(d.Logger), d.Logger))

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("",
		middleware.JWTAuth(auth.NewSigner(d.Cfg.JWTSecret)),
		middleware.WriteRateLimit(d.Cache, d.Cfg.WriteRateLimit, d.Logger),
	)
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterWalletRoutes(protected, walletHandler)
	RegisterTransactionRoutes(protected, transactionHandler)
	RegisterPaymentRoutes(protected, paymentHandler)

	return nil
}
