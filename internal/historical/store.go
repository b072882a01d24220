// Package historical serves the warehoused rows of the discontinued
// analytics provider. Rows are aggregated over the requested range and
// returned under the warehouse's own column names.
package historical

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"analyticshub/internal/models"
)

// ErrUnknownFamily is returned for a family the warehouse has no table for.
var ErrUnknownFamily = errors.New("unknown metric family")

// Bounce rates are averaged weighted by the sessions of rows that carry one.
const weightedBounce = `SUM(t.bounce_rate * t.sessions) / NULLIF(SUM(CASE WHEN t.bounce_rate IS NOT NULL THEN t.sessions END), 0)`

var sqliteQueries = map[models.Family]string{
	models.FamilyDaily: `
		SELECT t.date AS date,
			SUM(t.pageviews) AS pageviews,
			SUM(t.sessions) AS sessions,
			SUM(t.users) AS users,
			` + weightedBounce + ` AS bounce_rate
		FROM ua_daily AS t
		WHERE t.date BETWEEN ? AND ?
		GROUP BY t.date
		ORDER BY t.date ASC`,

	models.FamilyPages: `
		SELECT t.page_path AS page_path,
			MAX(t.page_title) AS page_title,
			SUM(t.pageviews) AS pageviews,
			SUM(t.sessions) AS sessions,
			` + weightedBounce + ` AS bounce_rate
		FROM ua_pages AS t
		WHERE t.date BETWEEN ? AND ?
		GROUP BY t.page_path
		ORDER BY SUM(t.pageviews) DESC, t.page_path ASC`,

	models.FamilyTraffic: `
		SELECT t.source AS source,
			t.medium AS medium,
			SUM(t.sessions) AS sessions,
			SUM(t.users) AS users,
			SUM(t.new_users) AS new_users
		FROM ua_sources AS t
		WHERE t.date BETWEEN ? AND ?
		GROUP BY t.source, t.medium
		ORDER BY SUM(t.sessions) DESC, t.source ASC, t.medium ASC`,

	models.FamilyDevices: `
		SELECT t.device_category AS device_category,
			SUM(t.sessions) AS sessions,
			SUM(t.users) AS users
		FROM ua_devices AS t
		WHERE t.date BETWEEN ? AND ?
		GROUP BY t.device_category
		ORDER BY SUM(t.sessions) DESC, t.device_category ASC`,

	models.FamilyGeo: `
		SELECT t.country AS country,
			t.city AS city,
			SUM(t.sessions) AS sessions,
			SUM(t.users) AS users,
			SUM(t.new_users) AS new_users
		FROM ua_geo AS t
		WHERE t.date BETWEEN ? AND ?
		GROUP BY t.country, t.city
		ORDER BY SUM(t.sessions) DESC, t.country ASC, t.city ASC`,

	models.FamilySummary: `
		SELECT COALESCE(SUM(t.pageviews), 0) AS pageviews,
			COALESCE(SUM(t.sessions), 0) AS sessions,
			COALESCE(SUM(t.users), 0) AS users,
			COALESCE(` + weightedBounce + `, 0) AS bounce_rate,
			COALESCE(SUM(t.avg_session_duration * t.sessions) / NULLIF(SUM(CASE WHEN t.avg_session_duration IS NOT NULL THEN t.sessions END), 0), 0) AS avg_session_duration
		FROM ua_daily AS t
		WHERE t.date BETWEEN ? AND ?`,
}

// Store reads the warehouse through the application's SQLite manager.
type Store struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
}

// NewStore creates a warehouse store.
func NewStore(dbManager cartridge.DBManager, logger *slog.Logger) *Store {
	return &Store{dbManager: dbManager, logger: logger}
}

// Fetch aggregates one family over the inclusive ISO date range.
func (s *Store) Fetch(ctx context.Context, family models.Family, startDate, endDate string) ([]models.Row, error) {
	q, ok := sqliteQueries[family]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}

	db := s.dbManager.GetConnection()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var results []map[string]interface{}
	if err := db.WithContext(ctx).Raw(q, startDate, endDate).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", family, err)
	}

	rows := make([]models.Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, models.Row(r))
	}

	s.logger.Debug("Fetched historical rows",
		slog.String("family", string(family)),
		slog.String("start", startDate),
		slog.String("end", endDate),
		slog.Int("rows", len(rows)))
	return rows, nil
}

// HasData reports whether the daily table covers any day of the range.
func (s *Store) HasData(ctx context.Context, startDate, endDate string) (bool, error) {
	db := s.dbManager.GetConnection()
	if db == nil {
		return false, gorm.ErrInvalidDB
	}

	var count int64
	err := db.WithContext(ctx).
		Model(&DailyRecord{}).
		Where("date BETWEEN ? AND ?", startDate, endDate).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count daily rows: %w", err)
	}
	return count > 0, nil
}
