package config

import (
	"testing"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ cartridge.Config            = (*Config)(nil)
	_ cartridge.LogConfigProvider = (*Config)(nil)
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANALYTICSHUB_ENV", Test)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "analyticshub", cfg.AppName)
	assert.Equal(t, "3000", cfg.AppPort)
	assert.True(t, cfg.IsTest())
	assert.Equal(t, "sum", cfg.MergePolicy)
	assert.Equal(t, SQLiteBackend, cfg.HistoricalBackend)
	assert.Equal(t, 30*time.Second, cfg.LiveTimeout())
	assert.Equal(t, time.Second, cfg.LiveBackoff())
	assert.Equal(t, 3, cfg.LiveRetries)
	assert.True(t, cfg.LiveCircuitBreaker)
	assert.Equal(t, 24*time.Hour, cfg.MaintenanceInterval())
	assert.Equal(t, "storage/analyticshub-test.db", cfg.GetDatabasePath())

	cutover, err := cfg.Cutover()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), cutover)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ANALYTICSHUB_ENV", Production)
	t.Setenv("ANALYTICSHUB_CUTOVER_DATE", "2024-06-01")
	t.Setenv("ANALYTICSHUB_MERGE_POLICY", "none")
	t.Setenv("ANALYTICSHUB_REPORT_TIMEZONE", "America/New_York")
	t.Setenv("ANALYTICSHUB_LIVE_RETRIES", "5")
	t.Setenv("ANALYTICSHUB_LIVE_BACKOFF_MILLIS", "250")
	t.Setenv("ANALYTICSHUB_LIVE_CIRCUIT_BREAKER", "false")
	t.Setenv("ANALYTICSHUB_HISTORICAL_BACKEND", ClickHouseBackend)
	t.Setenv("ANALYTICSHUB_CLICKHOUSE_ADDR", "ch1:9000, ch2:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "none", cfg.MergePolicy)
	assert.Equal(t, 5, cfg.LiveRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.LiveBackoff())
	assert.False(t, cfg.LiveCircuitBreaker)
	assert.Equal(t, []string{"ch1:9000", "ch2:9000"}, cfg.ClickHouseAddrs())
	assert.Equal(t, "America/New_York", cfg.Location().String())

	cutover, err := cfg.Cutover()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", cutover.Format("2006-01-02"))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"cutover not a date", "ANALYTICSHUB_CUTOVER_DATE", "01/06/2024"},
		{"unknown merge policy", "ANALYTICSHUB_MERGE_POLICY", "average"},
		{"unknown timezone", "ANALYTICSHUB_REPORT_TIMEZONE", "Mars/Olympus"},
		{"zero retries", "ANALYTICSHUB_LIVE_RETRIES", "0"},
		{"bad environment", "ANALYTICSHUB_ENV", "staging"},
		{"clickhouse without address", "ANALYTICSHUB_HISTORICAL_BACKEND", ClickHouseBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANALYTICSHUB_ENV", Test)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestConnectionPoolDefaults(t *testing.T) {
	cfg := &Config{Environment: Test}
	assert.Equal(t, 1, cfg.GetMaxOpenConns())
	assert.Equal(t, 1, cfg.GetMaxIdleConns())

	cfg = &Config{Environment: Production}
	assert.Equal(t, 10, cfg.GetMaxOpenConns())
	assert.Equal(t, 5, cfg.GetMaxIdleConns())

	cfg = &Config{Environment: Production, DatabaseMaxOpenConns: 3}
	assert.Equal(t, 3, cfg.GetMaxOpenConns())
}

func TestGetConfigIsCached(t *testing.T) {
	t.Setenv("ANALYTICSHUB_ENV", Test)
	Reset()
	t.Cleanup(Reset)

	first := GetConfig()
	assert.Same(t, first, GetConfig())
}

func TestCartridgeAccessors(t *testing.T) {
	cfg := &Config{
		AppName:          "analyticshub",
		AppPort:          "3100",
		LogLevel:         LogLevelWarn,
		LogsDirectory:    "/var/log/analyticshub",
		LogsMaxSizeInMb:  20,
		LogsMaxBackups:   10,
		LogsMaxAgeInDays: 30,
	}

	assert.Equal(t, "3100", cfg.GetPort())
	assert.Empty(t, cfg.GetPublicDirectory())
	assert.Empty(t, cfg.GetAssetsPrefix())
	assert.Equal(t, "analyticshub", cfg.GetAppName())
	assert.Equal(t, "warn", cfg.GetLogLevel())
	assert.Equal(t, "/var/log/analyticshub", cfg.GetLogDirectory())
	assert.Equal(t, 20, cfg.GetLogMaxSizeMB())
	assert.Equal(t, 10, cfg.GetLogMaxBackups())
	assert.Equal(t, 30, cfg.GetLogMaxAgeDays())
}
