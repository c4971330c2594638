package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ancloraflow/internal/clock"
	"github.com/smallbiznis/ancloraflow/internal/config"
	"github.com/smallbiznis/ancloraflow/internal/migration"
	"github.com/smallbiznis/ancloraflow/internal/observability"
	"github.com/smallbiznis/ancloraflow/internal/providers"
	"github.com/smallbiznis/ancloraflow/internal/server"
	"github.com/smallbiznis/ancloraflow/internal/verifactu"
	"github.com/smallbiznis/ancloraflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		providers.Module,
		verifactu.Module,

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
