package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/finaki/finaki/internal/metrics"
)

const writeLimitPrefix = "rl:write:"

// WriteRateLimit caps mutating requests per user per minute. With Redis the
// counter is shared between instances; without it each process keeps its own
// token buckets. A limit of zero disables the middleware.
func WriteRateLimit(cache *redis.Client, perMinute int, logger *slog.Logger) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	local := newLocalLimiter(perMinute)

	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		subject := c.IP()
		if id, err := UserID(c); err == nil {
			subject = id.String()
		}

		allowed := true
		if cache != nil {
			window := time.Now().Unix() / 60
			key := fmt.Sprintf("%s%s:%d", writeLimitPrefix, subject, window)
			cnt, err := cache.Incr(c.UserContext(), key).Result()
			switch {
			case err != nil:
				// fail open on cache errors
				logger.Warn("rate limit lookup failed", slog.String("subject", subject), slog.Any("error", err))
			default:
				if cnt == 1 {
					cache.Expire(c.UserContext(), key, time.Minute)
				}
				allowed = cnt <= int64(perMinute)
			}
		} else {
			allowed = local.allow(subject)
		}

		if !allowed {
			metrics.RecordRateLimited()
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}

type localLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLocalLimiter(perMinute int) *localLimiter {
	return &localLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *localLimiter) allow(subject string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.visitors[subject]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[subject] = v
	}
	v.lastSeen = now

	// drop idle visitors while we hold the lock
	if len(l.visitors) > 1024 {
		for k, other := range l.visitors {
			if now.Sub(other.lastSeen) > 3*time.Minute {
				delete(l.visitors, k)
			}
		}
	}
	return v.limiter.Allow()
}
