package settlement

import "go.uber.org/fx"

var Module = fx.Module("settlement.service",
	fx.Provide(New),
)
