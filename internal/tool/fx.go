package tool

import (
	"github.com/lgltools/platform/internal/tool/repository"
	"github.com/lgltools/platform/internal/tool/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tool.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
