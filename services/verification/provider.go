package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/services/credential"
	"github.com/synergypro/verifyd/services/delivery"
	"github.com/synergypro/verifyd/services/logging"
	"github.com/synergypro/verifyd/services/metrics"
	"github.com/synergypro/verifyd/services/otp"
	"github.com/synergypro/verifyd/services/throttle"
	"github.com/synergypro/verifyd/services/users"
	"github.com/synergypro/verifyd/session"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(
		ProvideThrottleStore,
		ProvideGenerator,
		ProvideService,
		ProvideSweeper,
	),
	fx.Invoke(registerSweeper),
)

type ThrottleParams struct {
	fx.In

	Config  *config.Config
	Session *session.Manager `optional:"true"`
	DB      *gorm.DB         `optional:"true"`
}

// ProvideThrottleStore keeps ledgers in the session by default and in the
// database when VERIFICATION_THROTTLE_SCOPE=durable.
func ProvideThrottleStore(p ThrottleParams) (throttle.Store, error) {
	switch p.Config.Verification.ThrottleScope {
	case config.ThrottleScopeSession:
		if p.Session == nil {
			return nil, errors.New("session throttle scope requires a session manager")
		}
		return throttle.NewSessionStore(p.Session, p.Config.Session.MaxAge), nil
	case config.ThrottleScopeDurable:
		if p.DB == nil {
			return nil, errors.New("durable throttle scope requires a database connection")
		}
		return throttle.NewGormStore(p.DB), nil
	default:
		return nil, fmt.Errorf("unsupported throttle scope: %s", p.Config.Verification.ThrottleScope)
	}
}

func ProvideGenerator(cfg *config.Config) (otp.Generator, error) {
	return otp.NewGenerator(cfg.Verification.CodeGenerator)
}

type ServiceParams struct {
	fx.In

	Config    *config.Config
	Users     *users.Service
	Codes     credential.Store
	Throttles throttle.Store
	Sender    *delivery.Adapter
	Generator otp.Generator
	Metrics   metrics.Recorder `optional:"true"`
	Logger    *logging.Service
}

func ProvideService(p ServiceParams) *Service {
	return NewService(
		p.Config.Verification,
		p.Users,
		p.Codes,
		p.Throttles,
		p.Sender,
		p.Generator,
		p.Logger,
		WithRecorder(p.Metrics),
	)
}

func ProvideSweeper(cfg *config.Config, codes credential.Store, logger *logging.Service) *Sweeper {
	if !cfg.Verification.SweepEnabled {
		return nil
	}
	return NewSweeper(codes, cfg.Verification.SweepSchedule, cfg.Verification.CodeExpiry, logger)
}

func registerSweeper(lc fx.Lifecycle, sweeper *Sweeper) {
	if sweeper == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sweeper.Start()
		},
		OnStop: sweeper.Stop,
	})
}
