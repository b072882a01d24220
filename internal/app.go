// Package internal wires configuration, the warehouse, the live client and
// the HTTP server into a runnable application.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"analyticshub/internal/analytics"
	"analyticshub/internal/config"
	"analyticshub/internal/database"
	"analyticshub/internal/historical"
	"analyticshub/internal/jobs"
	"analyticshub/internal/live"
)

// Warehouse is the opened historical backend. DBManager and Store are set
// only for the SQLite backend, which is also the only one that accepts
// imports and migrations.
type Warehouse struct {
	Source    analytics.HistoricalSource
	DBManager *database.DBManager
	Store     *historical.Store
	close     func() error
}

// Close releases the backend connection.
func (w *Warehouse) Close() error {
	if w.close == nil {
		return nil
	}
	return w.close()
}

// OpenWarehouse connects to the configured historical backend.
func OpenWarehouse(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Warehouse, error) {
	switch cfg.HistoricalBackend {
	case config.ClickHouseBackend:
		store, err := historical.OpenClickHouse(ctx, historical.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddrs(),
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
		}
		return &Warehouse{Source: store, close: store.Close}, nil

	default:
		dbManager := database.NewDBManager(cfg, logger)
		if err := dbManager.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		store := historical.NewStore(dbManager, logger)
		return &Warehouse{
			Source:    store,
			DBManager: dbManager,
			Store:     store,
			close:     dbManager.Close,
		}, nil
	}
}

// NewLiveClient builds the live provider client from configuration.
func NewLiveClient(cfg *config.Config, logger *slog.Logger) *live.Client {
	return live.NewClient(live.Config{
		BaseURL:        cfg.LiveBaseURL,
		PropertyID:     cfg.LivePropertyID,
		AccessToken:    cfg.LiveAccessToken,
		RatePerSecond:  cfg.LiveRatePerSecond,
		CircuitBreaker: cfg.LiveCircuitBreaker,
	}, logger)
}

// NewRouter builds the aggregation router from configuration.
func NewRouter(cfg *config.Config, logger *slog.Logger, hist analytics.HistoricalSource, liveSource analytics.LiveSource) (*analytics.Router, error) {
	cutover, err := cfg.Cutover()
	if err != nil {
		return nil, err
	}
	policy, err := analytics.ParseMergePolicy(cfg.MergePolicy)
	if err != nil {
		return nil, err
	}
	return analytics.NewRouter(logger, hist, liveSource, analytics.Options{
		Cutover:     cutover,
		MergePolicy: policy,
		LiveTimeout: cfg.LiveTimeout(),
		LiveRetries: cfg.LiveRetries,
		LiveBackoff: cfg.LiveBackoff(),
		Workers:     cfg.WorkerCount,
		Location:    cfg.Location(),
	}), nil
}

// Application is the HTTP server with everything it serves from. The SQLite
// warehouse runs under a cartridge.Application; ClickHouse has no
// cartridge.DBManager, which cartridge.NewServer requires, so it is served
// by a bare fiber app with the same routes.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Warehouse *Warehouse
	Router    *analytics.Router
	Fiber     *fiber.App
	Jobs      *jobs.Scheduler

	cartridgeApp *cartridge.Application // nil for the ClickHouse backend
	serveErr     chan error
}

// NewApp creates a new application instance with default settings
func NewApp(ctx context.Context) (*Application, error) {
	return NewAppWithConfig(ctx, config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(ctx context.Context, cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	warehouse, err := OpenWarehouse(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	router, err := NewRouter(cfg, logger, warehouse.Source, NewLiveClient(cfg, logger))
	if err != nil {
		warehouse.Close()
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	a := &Application{
		Config:    cfg,
		Logger:    logger,
		Warehouse: warehouse,
		Router:    router,
		serveErr:  make(chan error, 1),
	}
	deps := RouteDeps{Config: cfg, Logger: logger, Router: router}

	if warehouse.DBManager == nil {
		a.Jobs = jobs.NewScheduler(logger, 0)
		a.Fiber = NewFiberApp(deps)
		return a, nil
	}

	deps.DBManager = warehouse.DBManager
	a.Jobs = jobs.NewScheduler(logger, cfg.MaintenanceInterval(),
		jobs.NewMaintenanceJob(warehouse.DBManager, logger))

	a.cartridgeApp, err = cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         warehouse.DBManager,
		ServerConfig:      NewServerConfig(logger),
		RouteMountFunc:    MountRoutes(deps),
		BackgroundWorkers: []cartridge.BackgroundWorker{a.Jobs},
	})
	if err != nil {
		warehouse.Close()
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	a.Fiber = a.cartridgeApp.Server.App()
	return a, nil
}

// MigrateDatabase creates the warehouse tables when the backend is SQLite.
// ClickHouse schemas are managed outside the application.
func (a *Application) MigrateDatabase() error {
	if a.Warehouse.DBManager == nil {
		a.Logger.Info("Skipping migrations for external warehouse",
			slog.String("backend", a.Config.HistoricalBackend))
		return nil
	}
	return a.Warehouse.DBManager.MigrateDatabase()
}

// StartAsync starts the background jobs and serves in the background.
func (a *Application) StartAsync() error {
	a.Logger.Info("Starting server",
		slog.String("port", a.Config.GetPort()),
		slog.String("environment", a.Config.Environment),
		slog.String("backend", a.Config.HistoricalBackend),
		slog.String("cutover", a.Config.CutoverDate))

	if a.cartridgeApp != nil {
		return a.cartridgeApp.StartAsync()
	}

	addr := ":" + a.Config.GetPort()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	go func() {
		a.serveErr <- a.Fiber.Listener(ln)
	}()
	return a.Jobs.Start()
}

// Errors reports a bare fiber server that stopped on its own. cartridge
// logs its listen errors instead, so the channel stays quiet for SQLite.
func (a *Application) Errors() <-chan error {
	return a.serveErr
}

// Shutdown stops the background jobs, waits for in-flight requests until
// ctx expires, and closes the warehouse.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if a.cartridgeApp != nil {
		if err := a.cartridgeApp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	} else {
		a.Jobs.Stop()
		if err := a.Fiber.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if err := a.Warehouse.Close(); err != nil {
		errs = append(errs, fmt.Errorf("warehouse close: %w", err))
	}
	return errors.Join(errs...)
}
