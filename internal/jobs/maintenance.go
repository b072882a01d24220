package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"
)

type walCheckpointer interface {
	CheckpointWAL(mode string) error
}

// MaintenanceJob keeps the SQLite warehouse compact and its query planner
// statistics fresh after imports.
type MaintenanceJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
}

func NewMaintenanceJob(dbManager cartridge.DBManager, logger *slog.Logger) *MaintenanceJob {
	return &MaintenanceJob{dbManager: dbManager, logger: logger}
}

func (j *MaintenanceJob) Name() string {
	return "warehouse_maintenance"
}

// Run checkpoints the WAL when the manager supports it and runs
// PRAGMA optimize.
func (j *MaintenanceJob) Run(ctx context.Context) error {
	db := j.dbManager.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}
	start := time.Now()

	if c, ok := j.dbManager.(walCheckpointer); ok {
		if err := c.CheckpointWAL("FULL"); err != nil {
			j.logger.Warn("Failed to checkpoint WAL", slog.Any("error", err))
		}
	}

	if err := db.WithContext(ctx).Exec("PRAGMA optimize").Error; err != nil {
		return fmt.Errorf("optimize warehouse: %w", err)
	}

	j.logger.Info("Warehouse maintenance completed", slog.Duration("duration", time.Since(start)))
	return nil
}
