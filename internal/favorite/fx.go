package favorite

import (
	"github.com/mirage-studio/mirage/internal/favorite/repository"
	"github.com/mirage-studio/mirage/internal/favorite/service"
	"go.uber.org/fx"
)

var Module = fx.Module("favorite.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
