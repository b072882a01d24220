package historical

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cast"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"analyticshub/internal/models"
	"analyticshub/internal/timeframe"
)

const importBatchSize = 500

// Import writes rows captured from the discontinued provider, keyed by
// warehouse column names, into the table of the given family. Daily rows
// replace an existing row for the same date. It returns the number of rows
// written.
func (s *Store) Import(family models.Family, rows []models.Row) (int, error) {
	records, err := toRecords(family, rows)
	if err != nil {
		return 0, err
	}
	if records == nil {
		return 0, nil
	}

	db := s.dbManager.GetConnection()
	if db == nil {
		return 0, gorm.ErrInvalidDB
	}

	err = models.PerformWrite(s.logger, db, func(tx *gorm.DB) error {
		if family == models.FamilyDaily {
			tx = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "date"}},
				UpdateAll: true,
			})
		}
		return tx.CreateInBatches(records, importBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", family, err)
	}

	s.logger.Info("Imported historical rows", slog.String("family", string(family)), slog.Int("rows", len(rows)))
	return len(rows), nil
}

// toRecords converts raw rows into the model slice of a family. The result
// is a typed slice boxed as any so CreateInBatches sees the concrete type.
func toRecords(family models.Family, rows []models.Row) (any, error) {
	switch family {
	case models.FamilyDaily:
		out := make([]DailyRecord, 0, len(rows))
		for i, r := range rows {
			f := fields{row: r, index: i}
			rec := DailyRecord{
				Date:               f.date(),
				Pageviews:          f.count("pageviews"),
				Sessions:           f.count("sessions"),
				Users:              f.count("users"),
				NewUsers:           f.count("new_users"),
				BounceRate:         f.floatPtr("bounce_rate"),
				AvgSessionDuration: f.floatPtr("avg_session_duration"),
			}
			if f.err != nil {
				return nil, f.err
			}
			out = append(out, rec)
		}
		return nilIfEmpty(out), nil

	case models.FamilyPages:
		out := make([]PageRecord, 0, len(rows))
		for i, r := range rows {
			f := fields{row: r, index: i}
			rec := PageRecord{
				Date:       f.date(),
				PagePath:   f.required("page_path"),
				PageTitle:  f.str("page_title"),
				Pageviews:  f.count("pageviews"),
				Sessions:   f.count("sessions"),
				BounceRate: f.floatPtr("bounce_rate"),
			}
			if f.err != nil {
				return nil, f.err
			}
			out = append(out, rec)
		}
		return nilIfEmpty(out), nil

	case models.FamilyTraffic:
		out := make([]SourceRecord, 0, len(rows))
		for i, r := range rows {
			f := fields{row: r, index: i}
			rec := SourceRecord{
				Date:     f.date(),
				Source:   f.str("source"),
				Medium:   f.str("medium"),
				Sessions: f.count("sessions"),
				Users:    f.count("users"),
				NewUsers: f.count("new_users"),
			}
			if f.err != nil {
				return nil, f.err
			}
			out = append(out, rec)
		}
		return nilIfEmpty(out), nil

	case models.FamilyDevices:
		out := make([]DeviceRecord, 0, len(rows))
		for i, r := range rows {
			f := fields{row: r, index: i}
			rec := DeviceRecord{
				Date:           f.date(),
				DeviceCategory: f.str("device_category"),
				Sessions:       f.count("sessions"),
				Users:          f.count("users"),
			}
			if f.err != nil {
				return nil, f.err
			}
			out = append(out, rec)
		}
		return nilIfEmpty(out), nil

	case models.FamilyGeo:
		out := make([]GeoRecord, 0, len(rows))
		for i, r := range rows {
			f := fields{row: r, index: i}
			rec := GeoRecord{
				Date:     f.date(),
				Country:  f.required("country"),
				City:     f.str("city"),
				Sessions: f.count("sessions"),
				Users:    f.count("users"),
				NewUsers: f.count("new_users"),
			}
			if f.err != nil {
				return nil, f.err
			}
			out = append(out, rec)
		}
		return nilIfEmpty(out), nil

	default:
		return nil, fmt.Errorf("%w: %s cannot be imported", ErrUnknownFamily, family)
	}
}

func nilIfEmpty[T any](records []T) any {
	if len(records) == 0 {
		return nil
	}
	return records
}

// fields reads typed values from one raw row, keeping the first error.
type fields struct {
	row   models.Row
	index int
	err   error
}

func (f *fields) fail(key string, err error) {
	if f.err == nil {
		f.err = fmt.Errorf("row %d: %s: %w", f.index, key, err)
	}
}

func (f *fields) count(key string) int64 {
	v, ok := f.row.Lookup(key)
	if !ok {
		return 0
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		fl, ferr := cast.ToFloat64E(v)
		if ferr != nil {
			f.fail(key, err)
			return 0
		}
		n = int64(fl)
	}
	return n
}

func (f *fields) floatPtr(key string) *float64 {
	v, ok := f.row.Lookup(key)
	if !ok {
		return nil
	}
	n, err := cast.ToFloat64E(v)
	if err != nil {
		f.fail(key, err)
		return nil
	}
	return &n
}

func (f *fields) str(key string) string {
	v, ok := f.row.Lookup(key)
	if !ok {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		f.fail(key, err)
		return ""
	}
	return strings.TrimSpace(s)
}

func (f *fields) required(key string) string {
	s := f.str(key)
	if s == "" && f.err == nil {
		f.fail(key, errors.New("missing"))
	}
	return s
}

func (f *fields) date() string {
	s := f.required("date")
	if f.err != nil {
		return ""
	}
	t, err := timeframe.ParseDate(s)
	if err != nil {
		f.fail("date", err)
		return ""
	}
	return timeframe.FormatDate(t)
}
