package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/services/logging"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore, ProvideLimiter),
)

type StoreParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Redis     *goredis.Client `optional:"true"`
}

func ProvideRateLimitStore(p StoreParams) (Store, error) {
	switch p.Config.RateLimit.Store {
	case config.StoreMemory, "":
		store := NewMemoryStore()
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return store.Close() },
		})
		return store, nil
	case config.StoreRedis:
		if p.Redis == nil {
			return nil, errors.New("redis rate limit store requires a redis client")
		}
		return NewRedisStore(p.Redis, p.Config.Redis.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", p.Config.RateLimit.Store)
	}
}

// Limiter holds the middleware placed in front of the verification routes.
type Limiter struct {
	middleware echo.MiddlewareFunc
}

func ProvideLimiter(cfg *config.Config, store Store, logger *logging.Service) *Limiter {
	if !cfg.RateLimit.Enabled {
		return &Limiter{}
	}
	return &Limiter{middleware: Middleware(&Config{
		Store:        store,
		Rate:         cfg.RateLimit.Rate,
		Period:       cfg.RateLimit.Period,
		KeyGenerator: UserKeyGenerator,
		Logger:       logger,
	})}
}

// Middlewares returns the limiter as a route middleware list, empty when
// rate limiting is disabled.
func (l *Limiter) Middlewares() []echo.MiddlewareFunc {
	if l == nil || l.middleware == nil {
		return nil
	}
	return []echo.MiddlewareFunc{l.middleware}
}
