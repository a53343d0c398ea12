package payment

import (
	"github.com/mirage-studio/mirage/internal/payment/commerce"
	"github.com/mirage-studio/mirage/internal/payment/repository"
	"github.com/mirage-studio/mirage/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(commerce.New),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
