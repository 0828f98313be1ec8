package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gatherly/gatherly/internal/account"
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/config"
	"github.com/gatherly/gatherly/internal/invitation"
	"github.com/gatherly/gatherly/internal/membership"
	"github.com/gatherly/gatherly/internal/migration"
	"github.com/gatherly/gatherly/internal/observability"
	"github.com/gatherly/gatherly/internal/organization"
	"github.com/gatherly/gatherly/internal/providers/email"
	"github.com/gatherly/gatherly/internal/server"
	"github.com/gatherly/gatherly/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
		migration.Module,

		organization.Module,
		account.Module,
		invitation.Module,
		membership.Module,
		email.Module,

		server.Module,
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
