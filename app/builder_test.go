package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/testutils"
	"go.uber.org/fx"
)

func TestNewApp(t *testing.T) {
	builder := NewApp()

	assert.NotNil(t, builder.services)
	assert.Empty(t, builder.models)
	assert.Empty(t, builder.fxOptions)
	assert.Empty(t, builder.errors)
}

func TestAppBuilder_WithConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		builder := NewApp().WithConfig(cfg)
		assert.Same(t, cfg, builder.config)
		assert.Empty(t, builder.errors)
	})

	t.Run("nil config", func(t *testing.T) {
		builder := NewApp().WithConfig(nil)
		assert.Nil(t, builder.config)
		require.Len(t, builder.errors, 1)
		assert.Contains(t, builder.errors[0].Error(), "config cannot be nil")
	})
}

func TestAppBuilder_WithDatabase(t *testing.T) {
	type Widget struct{ ID uint }

	builder := NewApp().WithDatabase(&Widget{})

	assert.True(t, builder.services["database"])
	assert.Len(t, builder.models, 1)
}

func TestAppBuilder_validate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func() *AppBuilder
		wantErr string
		check   func(t *testing.T, b *AppBuilder)
	}{
		{
			name:    "recorded errors",
			setup:   func() *AppBuilder { return NewApp().WithConfig(nil) },
			wantErr: "configuration errors",
		},
		{
			name:    "missing config",
			setup:   NewApp,
			wantErr: "config is required",
		},
		{
			name: "verification pulls in its dependencies",
			setup: func() *AppBuilder {
				return NewApp().WithConfig(testutils.GetTestConfig()).WithVerification()
			},
			check: func(t *testing.T, b *AppBuilder) {
				assert.True(t, b.services["database"])
				assert.True(t, b.services["mail"])
				assert.True(t, b.services["sessions"])
			},
		},
		{
			name: "database session store needs the database",
			setup: func() *AppBuilder {
				cfg := testutils.GetTestConfig()
				cfg.Session.Store = config.StoreDatabase
				return NewApp().WithConfig(cfg).WithSessions()
			},
			check: func(t *testing.T, b *AppBuilder) {
				assert.True(t, b.services["database"])
			},
		},
		{
			name: "sessions disabled in config",
			setup: func() *AppBuilder {
				cfg := testutils.GetTestConfig()
				cfg.Session.Enabled = false
				return NewApp().WithConfig(cfg).WithSessions()
			},
			wantErr: "SESSION_ENABLED is false",
		},
		{
			name: "invalid config is rejected",
			setup: func() *AppBuilder {
				cfg := testutils.GetTestConfig()
				cfg.Verification.Store = "tape"
				return NewApp().WithConfig(cfg)
			},
			wantErr: "unknown verification store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.setup()
			err := b.validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, b)
			}
		})
	}
}

func TestAppBuilder_needsRedis(t *testing.T) {
	cfg := testutils.GetTestConfig()
	b := NewApp().WithConfig(cfg).WithVerification()
	assert.False(t, b.needsRedis())

	cfg.Verification.Store = config.StoreRedis
	assert.True(t, b.needsRedis())

	cfg.Verification.Store = config.StoreMemory
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Store: config.StoreRedis}
	assert.True(t, b.needsRedis())

	cfg.RateLimit.Enabled = false
	assert.False(t, b.needsRedis())
}

func TestAppBuilder_Build(t *testing.T) {
	t.Run("minimal", func(t *testing.T) {
		app, err := NewApp().WithConfig(testutils.GetTestConfig()).Build()
		require.NoError(t, err)

		assert.NotNil(t, app.Logger())
		assert.NotNil(t, app.Server())
		assert.Nil(t, app.DB())
	})

	t.Run("with database", func(t *testing.T) {
		app, err := NewApp().WithConfig(testutils.GetTestConfig()).WithDatabase().Build()
		require.NoError(t, err)
		assert.NotNil(t, app.DB())
	})

	t.Run("missing dependency surfaces", func(t *testing.T) {
		_, err := NewApp().
			WithConfig(testutils.GetTestConfig()).
			WithFxOptions(fx.Invoke(func(*struct{ Missing int }) {})).
			Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to build application")
	})
}
