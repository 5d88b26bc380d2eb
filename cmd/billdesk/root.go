package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/clock"
	"github.com/smallbiznis/billdesk/internal/config"
	"github.com/smallbiznis/billdesk/internal/observability"
	"github.com/smallbiznis/billdesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "billdesk",
	Short: "Multi-tenant invoicing service",
	Long: `billdesk manages customers, items, invoices, quotes and payments
for many organizations from a single deployment.

Configuration is read from the environment and an optional .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// infrastructure is the shared graph every command needs to reach the database.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
