package gallery

import (
	"github.com/mirage-studio/mirage/internal/gallery/repository"
	"github.com/mirage-studio/mirage/internal/gallery/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gallery.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
