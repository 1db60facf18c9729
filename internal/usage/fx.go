package usage

import (
	"github.com/lgltools/platform/internal/usage/repository"
	"github.com/lgltools/platform/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
