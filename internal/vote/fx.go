package vote

import (
	"github.com/mirage-studio/mirage/internal/vote/repository"
	"github.com/mirage-studio/mirage/internal/vote/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vote.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
