package workspace

import (
	"github.com/lgltools/platform/internal/workspace/repository"
	"github.com/lgltools/platform/internal/workspace/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workspace.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
