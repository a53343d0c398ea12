package referral

import (
	"github.com/mirage-studio/mirage/internal/referral/repository"
	"github.com/mirage-studio/mirage/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
