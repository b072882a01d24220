// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Historical warehouse backends
const (
	SQLiteBackend     = "sqlite"
	ClickHouseBackend = "clickhouse"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname" validate:"required"`
	AppPort     string   `mapstructure:"appport" validate:"required,numeric"`
	Environment string   `mapstructure:"environment" validate:"oneof=development production test"`
	LogLevel    LogLevel `mapstructure:"loglevel" validate:"oneof=debug info warn error"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb" validate:"gte=0"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups" validate:"gte=0"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays" validate:"gte=0"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns" validate:"gte=0"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns" validate:"gte=0"`

	// Warehouse maintenance interval; zero disables the job
	MaintenanceIntervalMinutes int `mapstructure:"maintenanceintervalminutes" validate:"gte=0"`

	// Routing settings
	CutoverDate       string `mapstructure:"cutoverdate" validate:"required,datetime=2006-01-02"`
	MergePolicy       string `mapstructure:"mergepolicy" validate:"oneof=sum none"`
	ReportTimezone    string `mapstructure:"reporttimezone" validate:"required"`
	WorkerCount       int    `mapstructure:"workercount" validate:"gte=1,lte=16"`
	HistoricalBackend string `mapstructure:"historicalbackend" validate:"oneof=sqlite clickhouse"`

	// ClickHouse warehouse settings
	ClickHouseAddr     string `mapstructure:"clickhouseaddr" validate:"required_if=HistoricalBackend clickhouse"`
	ClickHouseDatabase string `mapstructure:"clickhousedatabase"`
	ClickHouseUsername string `mapstructure:"clickhouseusername"`
	ClickHousePassword string `mapstructure:"clickhousepassword"`

	// Live provider settings
	LiveBaseURL        string  `mapstructure:"livebaseurl" validate:"required,url"`
	LivePropertyID     string  `mapstructure:"livepropertyid"`
	LiveAccessToken    string  `mapstructure:"liveaccesstoken"`
	LiveTimeoutSeconds int     `mapstructure:"livetimeoutseconds" validate:"gte=1"`
	LiveRetries        int     `mapstructure:"liveretries" validate:"gte=1,lte=10"`
	LiveBackoffMillis  int     `mapstructure:"livebackoffmillis" validate:"gte=0"`
	LiveRatePerSecond  float64 `mapstructure:"liveratepersecond" validate:"gt=0"`
	LiveCircuitBreaker bool    `mapstructure:"livecircuitbreaker"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration. Invalid configuration is
// fatal.
func GetConfig() *Config {
	once.Do(func() {
		loaded, err := Load()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	})
	return cfg
}

// Load reads defaults, the optional config file and the environment, and
// validates the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("appname", "analyticshub")
	v.SetDefault("appport", "3000")
	v.SetDefault("environment", Development)
	v.SetDefault("loglevel", string(LogLevelDebug))
	v.SetDefault("storagepath", "storage")
	v.SetDefault("logsdir", "logs")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)
	v.SetDefault("dbmaxopenconns", 0)
	v.SetDefault("dbmaxidleconns", 0)
	v.SetDefault("maintenanceintervalminutes", 24*60)
	v.SetDefault("cutoverdate", "2023-07-01")
	v.SetDefault("mergepolicy", "sum")
	v.SetDefault("reporttimezone", "UTC")
	v.SetDefault("workercount", 2)
	v.SetDefault("historicalbackend", SQLiteBackend)
	v.SetDefault("clickhousedatabase", "default")
	v.SetDefault("clickhouseusername", "default")
	v.SetDefault("livebaseurl", "https://analyticsdata.googleapis.com/v1beta")
	v.SetDefault("livetimeoutseconds", 30)
	v.SetDefault("liveretries", 3)
	v.SetDefault("livebackoffmillis", 1000)
	v.SetDefault("liveratepersecond", 5)
	v.SetDefault("livecircuitbreaker", true)

	v.BindEnv("appname", "ANALYTICSHUB_APP_NAME")
	v.BindEnv("appport", "ANALYTICSHUB_APP_PORT")
	v.BindEnv("environment", "ANALYTICSHUB_ENV")
	v.BindEnv("loglevel", "ANALYTICSHUB_LOG_LEVEL")
	v.BindEnv("storagepath", "ANALYTICSHUB_STORAGE_PATH")
	v.BindEnv("logsdir", "ANALYTICSHUB_LOGS_DIR")
	v.BindEnv("logsmaxsizeinmb", "ANALYTICSHUB_LOGS_MAX_SIZE_IN_MB")
	v.BindEnv("logsmaxbackups", "ANALYTICSHUB_LOGS_MAX_BACKUPS")
	v.BindEnv("logsmaxageindays", "ANALYTICSHUB_LOGS_MAX_AGE_IN_DAYS")
	v.BindEnv("dbmaxopenconns", "ANALYTICSHUB_DB_MAX_OPEN_CONNS")
	v.BindEnv("dbmaxidleconns", "ANALYTICSHUB_DB_MAX_IDLE_CONNS")
	v.BindEnv("maintenanceintervalminutes", "ANALYTICSHUB_MAINTENANCE_INTERVAL_MINUTES")
	v.BindEnv("cutoverdate", "ANALYTICSHUB_CUTOVER_DATE")
	v.BindEnv("mergepolicy", "ANALYTICSHUB_MERGE_POLICY")
	v.BindEnv("reporttimezone", "ANALYTICSHUB_REPORT_TIMEZONE")
	v.BindEnv("workercount", "ANALYTICSHUB_WORKER_COUNT")
	v.BindEnv("historicalbackend", "ANALYTICSHUB_HISTORICAL_BACKEND")
	v.BindEnv("clickhouseaddr", "ANALYTICSHUB_CLICKHOUSE_ADDR")
	v.BindEnv("clickhousedatabase", "ANALYTICSHUB_CLICKHOUSE_DATABASE")
	v.BindEnv("clickhouseusername", "ANALYTICSHUB_CLICKHOUSE_USERNAME")
	v.BindEnv("clickhousepassword", "ANALYTICSHUB_CLICKHOUSE_PASSWORD")
	v.BindEnv("livebaseurl", "ANALYTICSHUB_LIVE_BASE_URL")
	v.BindEnv("livepropertyid", "ANALYTICSHUB_LIVE_PROPERTY_ID")
	v.BindEnv("liveaccesstoken", "ANALYTICSHUB_LIVE_ACCESS_TOKEN")
	v.BindEnv("livetimeoutseconds", "ANALYTICSHUB_LIVE_TIMEOUT_SECONDS")
	v.BindEnv("liveretries", "ANALYTICSHUB_LIVE_RETRIES")
	v.BindEnv("livebackoffmillis", "ANALYTICSHUB_LIVE_BACKOFF_MILLIS")
	v.BindEnv("liveratepersecond", "ANALYTICSHUB_LIVE_RATE_PER_SECOND")
	v.BindEnv("livecircuitbreaker", "ANALYTICSHUB_LIVE_CIRCUIT_BREAKER")

	// Optional config file; environment variables still win.
	v.SetConfigName("analyticshub")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/analyticshub")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Set derived values
	c.DatabaseName = c.GetDatabasePath()
	return c, nil
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return fmt.Errorf("invalid report timezone: %s", c.ReportTimezone)
	}
	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns an empty path; the API serves no static assets
// (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return ""
}

// GetAssetsPrefix returns an empty prefix (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return ""
}

// GetAppName returns the application name (implements cartridge.LogConfigProvider).
func (c *Config) GetAppName() string {
	return c.AppName
}

// Cutover returns the cutover day at midnight UTC. validate guarantees the
// format, so a parse failure here means the config was built by hand.
func (c *Config) Cutover() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.CutoverDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cutover date %q: %w", c.CutoverDate, err)
	}
	return t, nil
}

// Location returns the reporting timezone used to resolve relative dates.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LiveTimeout returns the per-attempt live provider timeout.
func (c *Config) LiveTimeout() time.Duration {
	return time.Duration(c.LiveTimeoutSeconds) * time.Second
}

// MaintenanceInterval is the period of the warehouse maintenance job.
func (c *Config) MaintenanceInterval() time.Duration {
	return time.Duration(c.MaintenanceIntervalMinutes) * time.Minute
}

// LiveBackoff returns the base backoff between live provider retries.
func (c *Config) LiveBackoff() time.Duration {
	return time.Duration(c.LiveBackoffMillis) * time.Millisecond
}

// ClickHouseAddrs splits the comma separated ClickHouse address list.
func (c *Config) ClickHouseAddrs() []string {
	var addrs []string
	for _, a := range strings.Split(c.ClickHouseAddr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10 (allows concurrent reads for parallel family queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB.
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of rotated log files.
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files.
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
