package sms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/services/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestService_Send(t *testing.T) {
	t.Run("logs masked recipient without body", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		service := NewService(config.SMSConfig{Enabled: true, Sender: "SynergyPro"}, logging.NewServiceFromLogger(zap.New(core)))

		err := service.Send(context.Background(), "5551234567", "Your verification code is: 482913")

		require.NoError(t, err)
		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "******4567", fields["to"])
		for _, v := range fields {
			if str, ok := v.(string); ok {
				assert.NotContains(t, str, "482913")
			}
		}
	})

	t.Run("disabled", func(t *testing.T) {
		service := NewService(config.SMSConfig{Enabled: false}, nil)

		assert.ErrorIs(t, service.Send(context.Background(), "5551234567", "body"), ErrDisabled)
	})

	t.Run("cancelled context", func(t *testing.T) {
		service := NewService(config.SMSConfig{Enabled: true}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, service.Send(ctx, "5551234567", "body"), context.Canceled)
	})
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "1234", maskPhone("1234"))
	assert.Equal(t, "*2345", maskPhone("12345"))
}
