package main

import (
	"context"

	"github.com/smallbiznis/billdesk/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	app := fx.New(
		fx.NopLogger,
		infrastructure(),
		fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
			if err := migration.Run(conn); err != nil {
				return err
			}
			log.Info("database migrations applied", zap.String("dialect", conn.Dialector.Name()))
			return nil
		}),
	)
	return runOnce(cmd.Context(), app)
}

// runOnce starts and stops app so lifecycle hooks flush logs and close connections.
func runOnce(ctx context.Context, app *fx.App) error {
	if err := app.Err(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(ctx)
}
