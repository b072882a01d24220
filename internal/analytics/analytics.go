// Package analytics is the hybrid aggregation layer. It serves unified
// metrics over a date range whose data may live in the historical warehouse,
// the live analytics API, or both.
//
// The package is organized into focused modules:
//   - analytics.go: canonical record and result types
//   - strategy.go: date-range source selection
//   - normalize.go: provider field-name mapping
//   - validate.go: per-family validation and repair
//   - merge.go: hybrid merge policy and top-N ordering
//   - router.go: the public per-family query surface
//   - comparison.go: period-over-period summary changes
package analytics

import "analyticshub/internal/timeframe"

// SourceTag tells callers where a result's data came from.
type SourceTag string

const (
	SourceHistoricalOnly SourceTag = "historical-only"
	SourceLiveOnly       SourceTag = "live-only"
	SourceHybrid         SourceTag = "hybrid"
	SourceNoData         SourceTag = "no-data"
	SourceError          SourceTag = "error"
)

// ===== Canonical records =====

// DailyMetric is one day of site-wide traffic.
type DailyMetric struct {
	Date       string   `json:"date"`
	PageViews  int64    `json:"pageViews"`
	Sessions   int64    `json:"sessions"`
	Users      int64    `json:"users"`
	BounceRate *float64 `json:"bounceRate,omitempty"`
}

// PageView is traffic for a single path.
type PageView struct {
	Path       string   `json:"path"`
	Title      string   `json:"title"`
	PageViews  int64    `json:"pageViews"`
	Sessions   int64    `json:"sessions"`
	BounceRate *float64 `json:"bounceRate,omitempty"`
}

// TrafficSource is traffic attributed to one canonical source and medium.
type TrafficSource struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Sessions int64  `json:"sessions"`
	Users    int64  `json:"users"`
	NewUsers int64  `json:"newUsers"`
}

// Device is traffic for one device category.
type Device struct {
	DeviceCategory string `json:"deviceCategory"`
	Sessions       int64  `json:"sessions"`
	Users          int64  `json:"users"`
}

// Geographic is traffic for a country, optionally narrowed to a city.
type Geographic struct {
	Country  string `json:"country"`
	City     string `json:"city"`
	Sessions int64  `json:"sessions"`
	Users    int64  `json:"users"`
	NewUsers int64  `json:"newUsers"`
}

// Summary holds site-wide totals for a range.
type Summary struct {
	TotalPageViews         int64   `json:"totalPageViews"`
	TotalSessions          int64   `json:"totalSessions"`
	TotalUsers             int64   `json:"totalUsers"`
	BounceRate             float64 `json:"bounceRate"`
	AverageSessionDuration float64 `json:"averageSessionDuration"`
}

// ===== Results =====

// QualityReport describes what validation repaired or dropped.
type QualityReport struct {
	ValidRecordCount int      `json:"validRecordCount"`
	TotalRecordCount int      `json:"totalRecordCount"`
	Issues           []string `json:"issues"`
}

// Result is the tagged response of every list-shaped query.
type Result[T any] struct {
	Data          []T           `json:"data"`
	SourceTag     SourceTag     `json:"sourceTag"`
	QualityReport QualityReport `json:"qualityReport"`
	Error         string        `json:"_error,omitempty"`
}

// SummaryResult is the response of a summary query. Data is zero-valued,
// never absent, when every source failed.
type SummaryResult struct {
	Data      Summary   `json:"data"`
	SourceTag SourceTag `json:"sourceTag"`
	Error     string    `json:"_error,omitempty"`
}

// Decision is the per-request choice of sources.
type Decision struct {
	UseHistorical   bool                 `json:"useHistorical"`
	UseLive         bool                 `json:"useLive"`
	HistoricalRange *timeframe.DateRange `json:"-"`
	LiveRange       *timeframe.DateRange `json:"-"`
	Label           SourceTag            `json:"label"`
}

func emptyQuality() QualityReport {
	return QualityReport{Issues: []string{}}
}

func errorResult[T any](msg string) Result[T] {
	return Result[T]{
		Data:          []T{},
		SourceTag:     SourceError,
		QualityReport: emptyQuality(),
		Error:         msg,
	}
}
