package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"analyticshub/internal"
	"analyticshub/internal/analytics"
	"analyticshub/internal/config"
	"analyticshub/internal/logging"
	"analyticshub/internal/timeframe"
)

// errSQLiteOnly is returned by commands that write to the warehouse when it
// is served from ClickHouse.
var errSQLiteOnly = errors.New("command requires the sqlite historical backend")

// globalFlags holds the parsed values of the persistent flags.
var globalFlags struct {
	Format  string
	Timeout time.Duration
}

var rootCmd = &cobra.Command{
	Use:   "hubctl",
	Short: "hubctl queries and maintains the hybrid analytics hub",
	Long: `hubctl runs the analytics queries the HTTP API serves, straight from the
terminal, and maintains the historical warehouse.

Dates are YYYY-MM-DD or one of today, yesterday, NdaysAgo.

Examples:
  hubctl pages --start 30daysAgo --end yesterday --limit 20
  hubctl summary --start 2023-01-01 --end 2023-12-31 --format json
  hubctl import --family daily exports/daily.json
  hubctl seed --start 2022-01-01 --end 2023-06-30`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.Format, "format", formatTable,
		"output format: table|json|yaml")
	pf.DurationVar(&globalFlags.Timeout, "timeout", 5*time.Minute,
		"overall command timeout")
}

// deps is everything a command runs against.
type deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Warehouse *internal.Warehouse
	Router    *analytics.Router
	Parser    *timeframe.Parser
}

func (d *deps) Close() {
	if err := d.Warehouse.Close(); err != nil {
		d.Logger.Warn("Failed to close warehouse", slog.Any("error", err))
	}
}

// requireSQLite fails for commands that need a writable warehouse.
func (d *deps) requireSQLite() error {
	if d.Warehouse.Store == nil {
		return fmt.Errorf("%w (configured: %s)", errSQLiteOnly, d.Config.HistoricalBackend)
	}
	return nil
}

// buildDeps loads configuration and opens the sources. Called at the start
// of each command's RunE.
func buildDeps(ctx context.Context) (*deps, error) {
	if err := validateFormat(globalFlags.Format); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.NewStderrLogger(cfg)

	warehouse, err := internal.OpenWarehouse(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	router, err := internal.NewRouter(cfg, logger, warehouse.Source, internal.NewLiveClient(cfg, logger))
	if err != nil {
		warehouse.Close()
		return nil, err
	}

	return &deps{
		Config:    cfg,
		Logger:    logger,
		Warehouse: warehouse,
		Router:    router,
		Parser:    timeframe.NewParser(cfg.Location()),
	}, nil
}

// commandContext bounds a command by --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), globalFlags.Timeout)
}
