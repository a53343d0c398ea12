package storage

import (
	"github.com/mirage-studio/mirage/internal/storage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("storage.service",
	fx.Provide(service.New),
)
