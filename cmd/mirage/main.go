package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/mirage-studio/mirage/internal/config"
	"github.com/mirage-studio/mirage/internal/migration"
	"github.com/mirage-studio/mirage/internal/observability"
	"github.com/mirage-studio/mirage/internal/server"
	"github.com/mirage-studio/mirage/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
