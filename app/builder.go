package app

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/database"
	authhandler "github.com/synergypro/verifyd/handlers/auth"
	verificationhandler "github.com/synergypro/verifyd/handlers/verification"
	"github.com/synergypro/verifyd/middleware/csrf"
	"github.com/synergypro/verifyd/middleware/ratelimit"
	"github.com/synergypro/verifyd/server"
	"github.com/synergypro/verifyd/services/credential"
	"github.com/synergypro/verifyd/services/delivery"
	"github.com/synergypro/verifyd/services/logging"
	"github.com/synergypro/verifyd/services/mail"
	"github.com/synergypro/verifyd/services/metrics"
	"github.com/synergypro/verifyd/services/redis"
	"github.com/synergypro/verifyd/services/sms"
	"github.com/synergypro/verifyd/services/throttle"
	"github.com/synergypro/verifyd/services/users"
	"github.com/synergypro/verifyd/services/verification"
	"github.com/synergypro/verifyd/session"
	"go.uber.org/fx"
)

type AppBuilder struct {
	config      *config.Config
	services    map[string]bool
	models      []any
	sessionOpts *session.Options
	fxOptions   []fx.Option
	errors      []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		services:  make(map[string]bool),
		models:    make([]any, 0),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithDatabase(models ...any) *AppBuilder {
	b.services["database"] = true
	b.models = append(b.models, models...)
	return b
}

func (b *AppBuilder) WithSessions(opts ...*session.Options) *AppBuilder {
	b.services["sessions"] = true
	if len(opts) > 0 {
		b.sessionOpts = opts[0]
	}
	return b
}

// WithMail enables both outbound transports: SMTP mail and SMS.
func (b *AppBuilder) WithMail() *AppBuilder {
	b.services["mail"] = true
	return b
}

// WithVerification mounts /auth and /verification and everything they need.
func (b *AppBuilder) WithVerification() *AppBuilder {
	b.services["verification"] = true
	return b
}

func (b *AppBuilder) WithMetrics() *AppBuilder {
	b.services["metrics"] = true
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if b.config == nil && len(b.errors) == 0 {
		b.WithAutoConfig()
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	app := &App{config: b.config}

	options := b.buildFxOptions()
	options = append(options, fx.Populate(&app.logger, &app.server))
	if b.services["database"] {
		options = append(options, fx.Populate(&app.db))
	}

	app.fx = fx.New(options...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}

	if b.config == nil {
		return errors.New("config is required")
	}

	if b.services["verification"] {
		b.services["database"] = true
		b.services["mail"] = true
		b.services["sessions"] = true
	}

	if b.services["sessions"] && b.config.Session.Store == config.StoreDatabase {
		b.services["database"] = true
	}

	if b.services["sessions"] && !b.config.Session.Enabled {
		return errors.New("sessions requested but SESSION_ENABLED is false")
	}

	return b.config.Validate()
}

func (b *AppBuilder) needsRedis() bool {
	if !b.services["verification"] {
		return false
	}
	return b.config.Verification.Store == config.StoreRedis ||
		(b.config.RateLimit.Enabled && b.config.RateLimit.Store == config.StoreRedis)
}

func (b *AppBuilder) buildFxOptions() []fx.Option {
	options := []fx.Option{
		fx.Supply(b.config),
		fx.NopLogger,
		logging.Module,
		server.NewProvider(),
	}

	if b.services["database"] {
		models := append([]any{}, b.models...)
		if b.services["verification"] {
			models = append(models, &users.User{}, &credential.PendingCode{}, &throttle.Record{})
		}
		options = append(options,
			fx.Supply(database.WithModels(models...)),
			database.Module,
		)
	}

	if b.needsRedis() {
		options = append(options, redis.Module)
	}

	if b.services["sessions"] {
		options = append(options,
			fx.Supply(b.sessionOpts),
			session.Module,
			fx.Invoke(func(srv *server.Server, manager *session.Manager) {
				if manager != nil {
					srv.Echo().Use(session.Middleware(manager))
				}
			}),
		)
	}

	if b.services["mail"] {
		options = append(options, mail.Module, sms.Module)
	}

	if b.services["metrics"] && b.config.Metrics.Enabled {
		options = append(options,
			metrics.Module,
			fx.Invoke(func(srv *server.Server, registry *metrics.Registry) {
				srv.Get(b.config.Metrics.Path, echo.WrapHandler(registry.Handler()))
			}),
		)
	}

	if b.services["verification"] {
		options = append(options,
			users.Module,
			credential.Module,
			delivery.Module,
			verification.Module,
			ratelimit.Module,
			authhandler.Module,
			verificationhandler.Module,
			fx.Invoke(func(srv *server.Server) {
				srv.Echo().Use(csrf.Middleware(&b.config.CSRF))
				srv.Get("/auth/csrf", csrf.TokenHandler)
			}),
			fx.Invoke(registerRoutes),
		)
	}

	return append(options, b.fxOptions...)
}

func registerRoutes(srv *server.Server, auth *authhandler.Handler, verify *verificationhandler.Handler, limiter *ratelimit.Limiter) {
	auth.RegisterRoutes(srv.Group("/auth"), limiter.Middlewares()...)
	verify.RegisterRoutes(srv.Group("/verification"), limiter.Middlewares()...)
}
