package profile

import (
	"github.com/lgltools/platform/internal/profile/repository"
	"github.com/lgltools/platform/internal/profile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("profile.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
