package migration

import (
	"io/fs"
	"testing"

	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"github.com/smallbiznis/ancloraflow/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	for _, base := range []string{"000001_invoices", "000002_verifactu"} {
		assert.True(t, names[base+".up.sql"], base)
		assert.True(t, names[base+".down.sql"], base)
	}
}

func TestRunUsesModelsOnSQLite(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	require.NoError(t, Run(conn))
	assert.True(t, conn.Migrator().HasTable(&domain.Invoice{}))
	assert.True(t, conn.Migrator().HasTable(&domain.Config{}))
	assert.True(t, conn.Migrator().HasTable(&domain.Log{}))
	assert.True(t, conn.Migrator().HasIndex(&domain.Invoice{}, "ux_invoices_user_chain_index"))
	assert.False(t, conn.Migrator().HasColumn(&domain.Log{}, "invoice_number"))
}
