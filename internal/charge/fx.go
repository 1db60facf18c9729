package charge

import (
	"github.com/lgltools/platform/internal/charge/repository"
	"github.com/lgltools/platform/internal/charge/service"
	"go.uber.org/fx"
)

var Module = fx.Module("charge.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
