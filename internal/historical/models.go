package historical

// Warehouse tables keep the discontinued provider's field names. Dates are
// stored as ISO text so range filters compare lexically.

// DailyRecord is one day of site-wide traffic.
type DailyRecord struct {
	ID                 uint     `gorm:"primaryKey"`
	Date               string   `gorm:"column:date;type:text;not null;uniqueIndex"`
	Pageviews          int64    `gorm:"column:pageviews;not null;default:0"`
	Sessions           int64    `gorm:"column:sessions;not null;default:0"`
	Users              int64    `gorm:"column:users;not null;default:0"`
	NewUsers           int64    `gorm:"column:new_users;not null;default:0"`
	BounceRate         *float64 `gorm:"column:bounce_rate"`
	AvgSessionDuration *float64 `gorm:"column:avg_session_duration"`
}

func (DailyRecord) TableName() string { return "ua_daily" }

// PageRecord is one day of traffic for a page.
type PageRecord struct {
	ID         uint     `gorm:"primaryKey"`
	Date       string   `gorm:"column:date;type:text;not null;index:idx_ua_pages_date_path"`
	PagePath   string   `gorm:"column:page_path;not null;index:idx_ua_pages_date_path"`
	PageTitle  string   `gorm:"column:page_title"`
	Pageviews  int64    `gorm:"column:pageviews;not null;default:0"`
	Sessions   int64    `gorm:"column:sessions;not null;default:0"`
	BounceRate *float64 `gorm:"column:bounce_rate"`
}

func (PageRecord) TableName() string { return "ua_pages" }

// SourceRecord is one day of traffic for a source and medium pair.
type SourceRecord struct {
	ID       uint   `gorm:"primaryKey"`
	Date     string `gorm:"column:date;type:text;not null;index"`
	Source   string `gorm:"column:source"`
	Medium   string `gorm:"column:medium"`
	Sessions int64  `gorm:"column:sessions;not null;default:0"`
	Users    int64  `gorm:"column:users;not null;default:0"`
	NewUsers int64  `gorm:"column:new_users;not null;default:0"`
}

func (SourceRecord) TableName() string { return "ua_sources" }

// DeviceRecord is one day of traffic for a device category.
type DeviceRecord struct {
	ID             uint   `gorm:"primaryKey"`
	Date           string `gorm:"column:date;type:text;not null;index"`
	DeviceCategory string `gorm:"column:device_category"`
	Sessions       int64  `gorm:"column:sessions;not null;default:0"`
	Users          int64  `gorm:"column:users;not null;default:0"`
}

func (DeviceRecord) TableName() string { return "ua_devices" }

// GeoRecord is one day of traffic for a country and city.
type GeoRecord struct {
	ID       uint   `gorm:"primaryKey"`
	Date     string `gorm:"column:date;type:text;not null;index"`
	Country  string `gorm:"column:country"`
	City     string `gorm:"column:city"`
	Sessions int64  `gorm:"column:sessions;not null;default:0"`
	Users    int64  `gorm:"column:users;not null;default:0"`
	NewUsers int64  `gorm:"column:new_users;not null;default:0"`
}

func (GeoRecord) TableName() string { return "ua_geo" }

// AllModels returns every warehouse table for migration.
func AllModels() []any {
	return []any{
		&DailyRecord{},
		&PageRecord{},
		&SourceRecord{},
		&DeviceRecord{},
		&GeoRecord{},
	}
}
