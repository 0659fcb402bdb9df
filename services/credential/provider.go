package credential

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/synergypro/verifyd/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideStore),
)

type Params struct {
	fx.In

	Config *config.Config
	DB     *gorm.DB        `optional:"true"`
	Redis  *goredis.Client `optional:"true"`
}

// ProvideStore builds the store named by VERIFICATION_STORE.
func ProvideStore(p Params) (Store, error) {
	cfg := p.Config.Verification

	switch cfg.Store {
	case config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreFile:
		return NewFileStore(cfg.FileDir)
	case config.StoreDatabase:
		if p.DB == nil {
			return nil, fmt.Errorf("database pending code store requires a database connection")
		}
		return NewGormStore(p.DB), nil
	case config.StoreRedis:
		if p.Redis == nil {
			return nil, fmt.Errorf("redis pending code store requires a redis client")
		}
		return NewRedisStore(p.Redis, p.Config.Redis.Prefix, 2*cfg.CodeExpiry), nil
	default:
		return nil, fmt.Errorf("unsupported pending code store: %s", cfg.Store)
	}
}
