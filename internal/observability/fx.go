package observability

import (
	"context"

	"github.com/mirage-studio/mirage/internal/observability/logger"
	"github.com/mirage-studio/mirage/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		metrics.NewHTTPMetrics,
		metrics.NewGenerationMetrics,
	),
	fx.Invoke(registerHooks),
)

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
		Level:       cfg.LogLevel,
		Debug:       cfg.Debug(),
	}
}

func registerHooks(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			_ = log.Sync()
			return nil
		},
	})
}
