package stripe

import (
	"github.com/lgltools/platform/internal/config"
	"go.uber.org/fx"
)

func provideGateway(cfg config.Config) Gateway {
	return New(cfg.Stripe.APIKey)
}

var Module = fx.Module("providers.stripe",
	fx.Provide(provideGateway),
)
