package creation

import (
	"github.com/mirage-studio/mirage/internal/creation/repository"
	"github.com/mirage-studio/mirage/internal/creation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("creation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
