package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/synergypro/verifyd/services/logging"
	"github.com/synergypro/verifyd/session"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.KeyGenerator(c)

			count, resetTime, err := cfg.Store.Increment(c.Request().Context(), key, cfg.Period)
			if err != nil {
				// fail open: a broken counter must not take verification down
				cfg.Logger.Error("rate limit store unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			remaining := max(cfg.Rate-count, 0)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Rate))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if count > cfg.Rate {
				h.Set(echo.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(resetTime)))
				return cfg.OnLimitReached(c)
			}

			return next(c)
		}
	}
}

func retryAfterSeconds(resetTime time.Time) int {
	seconds := int(time.Until(resetTime).Round(time.Second).Seconds())
	return max(seconds, 1)
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return "rate_limit:" + realIP
}

// UserKeyGenerator keys authenticated requests by user so a shared address
// does not throttle everyone behind it.
func UserKeyGenerator(c echo.Context) string {
	if userID := session.GetUserIDAsUint(c); userID != 0 {
		return "rate_limit:user:" + strconv.FormatUint(uint64(userID), 10)
	}
	return DefaultKeyGenerator(c)
}

func DefaultOnLimitReached(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, map[string]string{
		"status":  "error",
		"message": "Too many requests. Please try again later.",
	})
}
