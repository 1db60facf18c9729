package email

import (
	"github.com/lgltools/platform/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.Email.SMTPUsername == "" && cfg.Email.SMTPPassword == "" {
		log.Named("providers.email").Warn("smtp credentials missing, email disabled")
		return &NoOpProvider{}
	}
	provider, err := NewSMTP(Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
	})
	if err != nil {
		log.Named("providers.email").Error("smtp provider init failed", zap.Error(err))
		return &NoOpProvider{}
	}
	return provider
}
