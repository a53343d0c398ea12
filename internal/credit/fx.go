package credit

import (
	"github.com/mirage-studio/mirage/internal/credit/repository"
	"github.com/mirage-studio/mirage/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
