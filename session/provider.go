package session

import (
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideSessionManager),
)

type Manager struct {
	*scs.SessionManager
	config config.SessionConfig
}

// Options overrides the configured store, mainly for tests.
type Options struct {
	Store scs.Store
}

type Params struct {
	fx.In

	Config  *config.Config
	Options *Options `optional:"true"`
	DB      *gorm.DB `optional:"true"`
	Logger  *logging.Service
}

func ProvideSessionManager(p Params) (*Manager, error) {
	return NewManager(p.Config.Session, p.Options, p.DB, p.Logger)
}

func NewManager(cfg config.SessionConfig, opts *Options, db *gorm.DB, logger *logging.Service) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var store scs.Store
	if opts != nil && opts.Store != nil {
		store = opts.Store
	} else {
		switch cfg.Store {
		case "memory":
			store = NewMemoryStore()
		case "database":
			if db == nil {
				return nil, fmt.Errorf("database session store requires a database connection")
			}
			var err error
			store, err = NewDatabaseStore(db)
			if err != nil {
				return nil, fmt.Errorf("failed to create database session store: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported session store: %s", cfg.Store)
		}
	}

	sm := scs.New()
	sm.Store = store
	sm.Lifetime = cfg.MaxAge
	sm.IdleTimeout = cfg.MaxAge
	sm.Cookie.Name = cfg.Name
	sm.Cookie.Path = cfg.Path
	sm.Cookie.Domain = cfg.Domain
	sm.Cookie.Secure = cfg.Secure
	sm.Cookie.HttpOnly = cfg.HttpOnly
	sm.Cookie.SameSite = parseSameSite(cfg.SameSite)

	logger.Info("session manager configured", zap.String("store", cfg.Store), zap.Duration("lifetime", cfg.MaxAge))

	return &Manager{SessionManager: sm, config: cfg}, nil
}

func parseSameSite(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
