package options

import (
	"github.com/synergypro/verifyd/config"
	"go.uber.org/fx"
)

type Options struct {
	Config         *config.Config
	DisableMetrics bool
	ExtraFxOptions []fx.Option
}

type Option func(*Options)

func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.Config = cfg
	}
}

func WithoutMetrics() Option {
	return func(opts *Options) {
		opts.DisableMetrics = true
	}
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return func(opts *Options) {
		opts.ExtraFxOptions = append(opts.ExtraFxOptions, fxOpts...)
	}
}

func Apply(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
