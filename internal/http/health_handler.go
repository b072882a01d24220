package http

import (
	"time"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"analyticshub/internal/timeframe"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	DBStatus    string    `json:"db_status"`
	CutoverDate string    `json:"cutover_date"`
}

// HealthHandler reports whether the warehouse is reachable.
type HealthHandler struct {
	dbManager cartridge.DBManager
	cutover   time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates the health handler. dbManager is nil when the
// warehouse is not SQLite, in which case the database is not checked.
func NewHealthHandler(dbManager cartridge.DBManager, cutover time.Time, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{dbManager: dbManager, cutover: cutover, logger: logger}
}

// IndexAction handles the health check endpoint
func (h *HealthHandler) IndexAction(c *fiber.Ctx) error {
	dbStatus := "ok"

	if h.dbManager == nil {
		dbStatus = "external"
	} else if db := h.dbManager.GetConnection(); db == nil {
		dbStatus = "error"
		h.logger.Error("Database connection unavailable")
	} else {
		sqlDB, err := db.DB()
		if err != nil {
			dbStatus = "error"
			h.logger.Error("Database connection error", slog.Any("error", err))
		} else if err := sqlDB.PingContext(c.UserContext()); err != nil {
			dbStatus = "error"
			h.logger.Error("Database ping failed", slog.Any("error", err))
		}
	}

	health := HealthStatus{
		Status:      "ok",
		Timestamp:   time.Now(),
		DBStatus:    dbStatus,
		CutoverDate: timeframe.FormatDate(h.cutover),
	}

	if dbStatus == "error" {
		health.Status = "degraded"
	}

	return c.JSON(health)
}
