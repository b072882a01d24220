package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyticshub/internal/config"
	"analyticshub/internal/testsupport"
)

func TestDBManagerLifecycle(t *testing.T) {
	cfg := &config.Config{
		AppName:      "analyticshub",
		Environment:  config.Test,
		DatabaseName: filepath.Join(t.TempDir(), "warehouse.db"),
	}
	dm := NewDBManager(cfg, testsupport.GetLogger())

	require.NoError(t, dm.Init())
	require.NoError(t, dm.MigrateDatabase())

	db := dm.GetConnection()
	require.NotNil(t, db)
	for _, table := range []string{"ua_daily", "ua_pages", "ua_sources", "ua_devices", "ua_geo"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	// Migrations are idempotent.
	require.NoError(t, dm.MigrateDatabase())

	require.NoError(t, dm.Close())
}
