package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/finaki/finaki/internal/metrics"
)

// Audit emits one structured log line and one metrics sample per request.
// Errors are rendered here through the app error handler so the logged status
// matches what the client receives.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().Config().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		duration := time.Since(start)
		requestID, _ := c.Locals(requestIDHeader).(string)
		metrics.RecordHTTPRequest(c.Method(), c.Route().Path, status, duration.Seconds())

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		}
		if requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if id, err := UserID(c); err == nil {
			attrs = append(attrs, slog.String("user_id", id.String()))
		}
		if chainErr != nil && status >= fiber.StatusInternalServerError {
			attrs = append(attrs, slog.Any("error", chainErr))
			logger.Error("request completed", attrs...)
			return nil
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}
