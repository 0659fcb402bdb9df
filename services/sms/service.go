// Package sms sends text messages. No gateway is wired yet; messages are
// logged and reported as sent.
package sms

import (
	"context"
	"errors"

	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrDisabled = errors.New("sms delivery is disabled")

var Module = fx.Options(
	fx.Provide(ProvideService),
)

type Service struct {
	config config.SMSConfig
	logger *logging.Service
}

func NewService(cfg config.SMSConfig, logger *logging.Service) *Service {
	return &Service{config: cfg, logger: logger}
}

func ProvideService(cfg *config.Config, logger *logging.Service) *Service {
	return NewService(cfg.SMS, logger)
}

// Send logs the outgoing message. The body is never logged since it carries
// the code.
func (s *Service) Send(ctx context.Context, phone, body string) error {
	if !s.config.Enabled {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info("sms sent (simulated)",
		zap.String("sender", s.config.Sender),
		zap.String("to", maskPhone(phone)),
		zap.Int("body_length", len(body)))

	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range masked {
		if i < len(phone)-4 {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
