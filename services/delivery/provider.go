package delivery

import (
	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/services/logging"
	"github.com/synergypro/verifyd/services/mail"
	"github.com/synergypro/verifyd/services/sms"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideAdapter),
)

func ProvideAdapter(cfg *config.Config, mailService *mail.Service, smsService *sms.Service, logger *logging.Service) *Adapter {
	return NewAdapter(mailService, smsService, cfg.App.Name, cfg.Verification.CodeExpiry, logger)
}
