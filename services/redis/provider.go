package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/services/logging"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideClient),
)

func ProvideClient(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) (*goredis.Client, error) {
	client, err := NewClient(context.Background(), cfg.Redis, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}
