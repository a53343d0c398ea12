package migration

import (
	"github.com/mirage-studio/mirage/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			return AutoMigrate(conn)
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunPostgres(sqlDB)
	}),
)
