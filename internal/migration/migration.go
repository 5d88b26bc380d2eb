package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	customerdomain "github.com/smallbiznis/billdesk/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/billdesk/internal/invoice/domain"
	itemdomain "github.com/smallbiznis/billdesk/internal/item/domain"
	organizationdomain "github.com/smallbiznis/billdesk/internal/organization/domain"
	paymentdomain "github.com/smallbiznis/billdesk/internal/payment/domain"
	quotedomain "github.com/smallbiznis/billdesk/internal/quote/domain"
	"github.com/smallbiznis/billdesk/pkg/db"
	"gorm.io/gorm"
)

// Run brings the schema up to date. Postgres uses the embedded SQL
// migrations; mysql and sqlite fall back to gorm AutoMigrate.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	if conn.Dialector.Name() == db.TypePostgres {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}

// schemaModels is the AutoMigrate set for dialects without SQL migrations.
// String columns that are indexed or carry a default need an explicit size:
// mysql rejects both on TEXT columns.
var schemaModels = []interface{}{
	&organizationdomain.Organization{},
	&customerdomain.Customer{},
	&itemdomain.Item{},
	&invoicedomain.Invoice{},
	&invoicedomain.InvoiceItem{},
	&paymentdomain.Payment{},
	&quotedomain.Quote{},
	&quotedomain.QuoteItem{},
	&quotedomain.QuoteSequence{},
}

func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(schemaModels...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
