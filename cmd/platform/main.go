package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/lgltools/platform/internal/billingrun"
	"github.com/lgltools/platform/internal/charge"
	"github.com/lgltools/platform/internal/clock"
	"github.com/lgltools/platform/internal/config"
	"github.com/lgltools/platform/internal/logger"
	"github.com/lgltools/platform/internal/migration"
	"github.com/lgltools/platform/internal/observability/metrics"
	"github.com/lgltools/platform/internal/profile"
	"github.com/lgltools/platform/internal/providers/email"
	"github.com/lgltools/platform/internal/providers/stripe"
	"github.com/lgltools/platform/internal/server"
	"github.com/lgltools/platform/internal/settlement"
	"github.com/lgltools/platform/internal/sweep"
	"github.com/lgltools/platform/internal/tool"
	"github.com/lgltools/platform/internal/usage"
	"github.com/lgltools/platform/internal/workspace"
	"github.com/lgltools/platform/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		// External providers
		stripe.Module,
		email.Module,

		// Functional domains
		tool.Module,
		workspace.Module,
		usage.Module,
		profile.Module,
		charge.Module,
		settlement.Module,
		billingrun.Module,
		sweep.Module,

		// HTTP surface
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
