// Package verifyd assembles the verification service: session login,
// one-time code issue and confirmation over email and SMS.
package verifyd

import (
	"github.com/synergypro/verifyd/app"
	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/internal/options"
	"go.uber.org/fx"
)

type App = app.App

// New builds the full service. Without WithConfig the configuration is
// read from the environment and .env.
func New(opts ...options.Option) (*App, error) {
	o := options.Apply(opts...)

	builder := app.NewApp()
	if o.Config != nil {
		builder.WithConfig(o.Config)
	}

	builder.WithVerification()
	if !o.DisableMetrics {
		builder.WithMetrics()
	}

	return builder.WithFxOptions(o.ExtraFxOptions...).Build()
}

func WithConfig(cfg *config.Config) options.Option {
	return options.WithConfig(cfg)
}

func WithoutMetrics() options.Option {
	return options.WithoutMetrics()
}

func WithFxOptions(fxOpts ...fx.Option) options.Option {
	return options.WithFxOptions(fxOpts...)
}
