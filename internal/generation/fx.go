package generation

import (
	"github.com/mirage-studio/mirage/internal/generation/provider"
	"github.com/mirage-studio/mirage/internal/generation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("generation.service",
	fx.Provide(provider.New),
	fx.Provide(service.New),
)
