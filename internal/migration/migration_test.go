package migration

import (
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestInitMigrationCreatesCoreTables(t *testing.T) {
	content, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)

	for _, table := range []string{
		"organizations", "customers", "items", "invoices", "invoice_items",
		"payments", "quotes", "quote_items", "quote_sequences",
	} {
		assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, string(content), "ux_quotes_org_number ON quotes (org_id, quote_number)")
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Run(conn))
	require.NoError(t, Run(conn))

	for _, table := range []string{"organizations", "customers", "items", "invoices", "invoice_items", "payments", "quotes", "quote_items", "quote_sequences"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}

	now := time.Now().UTC()
	insert := `INSERT INTO quotes (id, org_id, customer_id, created_by_id, quote_number, issue_date, status, subtotal, tax, total, created_at, updated_at)
		VALUES (?, 1, 1, 1, 'QT-0001', ?, 'DRAFT', 0, 0, 0, ?, ?)`
	require.NoError(t, conn.Exec(insert, 1, now, now, now).Error)
	assert.Error(t, conn.Exec(insert, 2, now, now, now).Error)
}

func TestRunRequiresConnection(t *testing.T) {
	assert.Error(t, Run(nil))
	assert.Error(t, RunMigrations(nil))
}
