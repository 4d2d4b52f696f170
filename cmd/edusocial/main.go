package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/clock"
	"github.com/edusocial/edusocial/internal/config"
	"github.com/edusocial/edusocial/internal/logger"
	"github.com/edusocial/edusocial/internal/migration"
	"github.com/edusocial/edusocial/internal/redisconn"
	"github.com/edusocial/edusocial/internal/server"
	"github.com/edusocial/edusocial/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redisconn.Module,
		clock.Module,
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
