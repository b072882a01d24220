package historical

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"analyticshub/internal/models"
)

// ClickHouseConfig holds the connection settings of a ClickHouse warehouse.
type ClickHouseConfig struct {
	Addr     []string
	Database string
	Username string
	Password string
}

const chWeightedBounce = `sum(t.bounce_rate * t.sessions) / nullIf(sumIf(t.sessions, isNotNull(t.bounce_rate)), 0)`

// ClickHouse resolves an alias anywhere in a query, so every column below is
// qualified to keep aggregates from referring to the alias of another one.
var clickhouseQueries = map[models.Family]string{
	models.FamilyDaily: `
		SELECT toString(t.date) AS date,
			toInt64(sum(t.pageviews)) AS pageviews,
			toInt64(sum(t.sessions)) AS sessions,
			toInt64(sum(t.users)) AS users,
			` + chWeightedBounce + ` AS bounce_rate
		FROM ua_daily AS t
		WHERE t.date BETWEEN toDate(?) AND toDate(?)
		GROUP BY t.date
		ORDER BY t.date ASC`,

	models.FamilyPages: `
		SELECT t.page_path AS page_path,
			any(t.page_title) AS page_title,
			toInt64(sum(t.pageviews)) AS pageviews,
			toInt64(sum(t.sessions)) AS sessions,
			` + chWeightedBounce + ` AS bounce_rate
		FROM ua_pages AS t
		WHERE t.date BETWEEN toDate(?) AND toDate(?)
		GROUP BY t.page_path
		ORDER BY sum(t.pageviews) DESC, t.page_path ASC`,

	models.FamilyTraffic: `
		SELECT t.source AS source,
			t.medium AS medium,
			toInt64(sum(t.sessions)) AS sessions,
			toInt64(sum(t.users)) AS users,
			toInt64(sum(t.new_users)) AS new_users
		FROM ua_sources AS t
		WHERE t.date BETWEEN toDate(?) AND toDate(?)
		GROUP BY t.source, t.medium
		ORDER BY sum(t.sessions) DESC, t.source ASC, t.medium ASC`,

	models.FamilyDevices: `
		SELECT t.device_category AS device_category,
			toInt64(sum(t.sessions)) AS sessions,
			toInt64(sum(t.users)) AS users
		FROM ua_devices AS t
		WHERE t.date BETWEEN toDate(?) AND toDate(?)
		GROUP BY t.device_category
		ORDER BY sum(t.sessions) DESC, t.device_category ASC`,

	models.FamilyGeo: `
		SELECT t.country AS country,
			t.city AS city,
			toInt64(sum(t.sessions)) AS sessions,
			toInt64(sum(t.users)) AS users,
			toInt64(sum(t.new_users)) AS new_users
		FROM ua_geo AS t
		WHERE t.date BETWEEN toDate(?) AND toDate(?)
		GROUP BY t.country, t.city
		ORDER BY sum(t.sessions) DESC, t.country ASC, t.city ASC`,

	models.FamilySummary: `
		SELECT toInt64(sum(t.pageviews)) AS pageviews,
			toInt64(sum(t.sessions)) AS sessions,
			toInt64(sum(t.users)) AS users,
			ifNull(` + chWeightedBounce + `, 0) AS bounce_rate,
			ifNull(sum(t.avg_session_duration * t.sessions) / nullIf(sumIf(t.sessions, isNotNull(t.avg_session_duration)), 0), 0) AS avg_session_duration
		FROM ua_daily AS t
		WHERE t.date BETWEEN toDate(?) AND toDate(?)`,
}

// ClickHouseStore reads a warehouse kept in ClickHouse with the same table
// layout as the SQLite one.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *slog.Logger
}

// OpenClickHouse connects to ClickHouse over the native protocol and pings it.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig, logger *slog.Logger) (*ClickHouseStore, error) {
	options := &clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "analyticshub", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Info("Connected to ClickHouse warehouse", slog.Any("addr", cfg.Addr), slog.String("database", cfg.Database))
	return NewClickHouseStore(conn, logger), nil
}

// NewClickHouseStore wraps an open connection.
func NewClickHouseStore(conn driver.Conn, logger *slog.Logger) *ClickHouseStore {
	return &ClickHouseStore{conn: conn, logger: logger}
}

// Close releases the connection.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}

// Fetch aggregates one family over the inclusive ISO date range.
func (s *ClickHouseStore) Fetch(ctx context.Context, family models.Family, startDate, endDate string) ([]models.Row, error) {
	q, ok := clickhouseQueries[family]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}

	rows, err := s.conn.Query(ctx, q, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", family, err)
	}
	defer rows.Close()

	var out []models.Row
	for rows.Next() {
		row, err := scanClickHouseRow(family, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", family, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", family, err)
	}
	if out == nil {
		out = []models.Row{}
	}
	return out, nil
}

// HasData reports whether the daily table covers any day of the range.
func (s *ClickHouseStore) HasData(ctx context.Context, startDate, endDate string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM ua_daily WHERE date BETWEEN toDate(?) AND toDate(?)`,
		startDate, endDate,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count daily rows: %w", err)
	}
	return count > 0, nil
}

func scanClickHouseRow(family models.Family, rows driver.Rows) (models.Row, error) {
	var (
		date, path, title, source, medium string
		device, country, city             string
		pageviews, sessions               int64
		users, newUsers                   int64
		bounce                            *float64
		avgDuration, summaryBounce        float64
	)

	switch family {
	case models.FamilyDaily:
		if err := rows.Scan(&date, &pageviews, &sessions, &users, &bounce); err != nil {
			return nil, err
		}
		return withRate(models.Row{"date": date, "pageviews": pageviews, "sessions": sessions, "users": users}, bounce), nil

	case models.FamilyPages:
		if err := rows.Scan(&path, &title, &pageviews, &sessions, &bounce); err != nil {
			return nil, err
		}
		return withRate(models.Row{"page_path": path, "page_title": title, "pageviews": pageviews, "sessions": sessions}, bounce), nil

	case models.FamilyTraffic:
		if err := rows.Scan(&source, &medium, &sessions, &users, &newUsers); err != nil {
			return nil, err
		}
		return models.Row{"source": source, "medium": medium, "sessions": sessions, "users": users, "new_users": newUsers}, nil

	case models.FamilyDevices:
		if err := rows.Scan(&device, &sessions, &users); err != nil {
			return nil, err
		}
		return models.Row{"device_category": device, "sessions": sessions, "users": users}, nil

	case models.FamilyGeo:
		if err := rows.Scan(&country, &city, &sessions, &users, &newUsers); err != nil {
			return nil, err
		}
		return models.Row{"country": country, "city": city, "sessions": sessions, "users": users, "new_users": newUsers}, nil

	case models.FamilySummary:
		if err := rows.Scan(&pageviews, &sessions, &users, &summaryBounce, &avgDuration); err != nil {
			return nil, err
		}
		return models.Row{
			"pageviews":            pageviews,
			"sessions":             sessions,
			"users":                users,
			"bounce_rate":          summaryBounce,
			"avg_session_duration": avgDuration,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}
}

func withRate(row models.Row, rate *float64) models.Row {
	if rate != nil {
		row["bounce_rate"] = *rate
	}
	return row
}
