package main

import (
	"github.com/smallbiznis/billdesk/internal/migration"
	"github.com/smallbiznis/billdesk/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. Pending migrations are applied on start unless
AUTO_MIGRATE=false.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app := fx.New(
		infrastructure(),
		migration.Module,
		server.Module,
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}
