package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"analyticshub/internal/models"
	"analyticshub/internal/pkg/geo"
	"analyticshub/internal/pkg/referrers"
	"analyticshub/internal/timeframe"
)

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

var knownDevices = map[string]bool{
	DeviceDesktop: true,
	DeviceMobile:  true,
	DeviceTablet:  true,
}

// Validation repairs bad fields in place of rejecting records. A record is
// dropped only when its identifying field (date, path or country) is absent
// or malformed. Issues are reported in input order, one line per problem.
// All validators are pure; callers may discard the output.

// ValidateDaily validates normalized daily rows.
func ValidateDaily(rows []models.Row) ([]DailyMetric, []string) {
	valid := make([]DailyMetric, 0, len(rows))
	var issues []string
	for i, row := range rows {
		c := checker{row: row, index: i, issues: &issues}
		date, ok := c.date("date")
		if !ok {
			continue
		}
		valid = append(valid, DailyMetric{
			Date:       date,
			PageViews:  c.count("pageViews"),
			Sessions:   c.count("sessions"),
			Users:      c.count("users"),
			BounceRate: c.rate("bounceRate"),
		})
	}
	return valid, issuesOrEmpty(issues)
}

// ValidatePages validates normalized page rows.
func ValidatePages(rows []models.Row) ([]PageView, []string) {
	valid := make([]PageView, 0, len(rows))
	var issues []string
	for i, row := range rows {
		c := checker{row: row, index: i, issues: &issues}
		path, ok := c.identifier("path")
		if !ok {
			continue
		}
		valid = append(valid, PageView{
			Path:       path,
			Title:      c.text("title"),
			PageViews:  c.count("pageViews"),
			Sessions:   c.count("sessions"),
			BounceRate: c.rate("bounceRate"),
		})
	}
	return valid, issuesOrEmpty(issues)
}

// ValidateTraffic validates normalized traffic rows. Source and medium are
// never left empty.
func ValidateTraffic(rows []models.Row) ([]TrafficSource, []string) {
	valid := make([]TrafficSource, 0, len(rows))
	var issues []string
	for i, row := range rows {
		c := checker{row: row, index: i, issues: &issues}
		valid = append(valid, TrafficSource{
			Source:   c.defaulted("source", referrers.DirectSource),
			Medium:   c.defaulted("medium", referrers.MediumReferral),
			Sessions: c.count("sessions"),
			Users:    c.count("users"),
			NewUsers: c.count("newUsers"),
		})
	}
	return valid, issuesOrEmpty(issues)
}

// ValidateDevices validates normalized device rows. Unknown categories
// are reported and counted as desktop.
func ValidateDevices(rows []models.Row) ([]Device, []string) {
	valid := make([]Device, 0, len(rows))
	var issues []string
	for i, row := range rows {
		c := checker{row: row, index: i, issues: &issues}
		valid = append(valid, Device{
			DeviceCategory: c.device("deviceCategory"),
			Sessions:       c.count("sessions"),
			Users:          c.count("users"),
		})
	}
	return valid, issuesOrEmpty(issues)
}

// ValidateGeo validates normalized geographic rows. Country codes are
// expanded to common names.
func ValidateGeo(rows []models.Row) ([]Geographic, []string) {
	valid := make([]Geographic, 0, len(rows))
	var issues []string
	for i, row := range rows {
		c := checker{row: row, index: i, issues: &issues}
		country, ok := c.identifier("country")
		if !ok {
			continue
		}
		if country == geo.NotSet {
			c.report("country not set, record dropped")
			continue
		}
		valid = append(valid, Geographic{
			Country:  geo.CountryName(country),
			City:     geo.CityName(c.text("city")),
			Sessions: c.count("sessions"),
			Users:    c.count("users"),
			NewUsers: c.count("newUsers"),
		})
	}
	return valid, issuesOrEmpty(issues)
}

// ValidateSummary validates normalized summary rows. A summary has no
// identifying field, so every row yields a record.
func ValidateSummary(rows []models.Row) ([]Summary, []string) {
	valid := make([]Summary, 0, len(rows))
	var issues []string
	for i, row := range rows {
		c := checker{row: row, index: i, issues: &issues}
		var bounce float64
		if r := c.rate("bounceRate"); r != nil {
			bounce = *r
		}
		valid = append(valid, Summary{
			TotalPageViews:         c.count("totalPageViews"),
			TotalSessions:          c.count("totalSessions"),
			TotalUsers:             c.count("totalUsers"),
			BounceRate:             bounce,
			AverageSessionDuration: c.duration("averageSessionDuration"),
		})
	}
	return valid, issuesOrEmpty(issues)
}

func issuesOrEmpty(issues []string) []string {
	if issues == nil {
		return []string{}
	}
	return issues
}

// checker validates the fields of one row and records issues against it.
type checker struct {
	row    models.Row
	index  int
	issues *[]string
}

func (c checker) report(format string, args ...any) {
	*c.issues = append(*c.issues, fmt.Sprintf("row %d: ", c.index)+fmt.Sprintf(format, args...))
}

// count reads a non-negative integer. Missing, non-numeric and negative
// values become 0. Fractional values are rounded.
func (c checker) count(key string) int64 {
	v, ok := c.row.Lookup(key)
	if !ok {
		c.report("%s missing, defaulted to 0", key)
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		c.report("%s not numeric (%v), defaulted to 0", key, v)
		return 0
	}
	if f < 0 {
		c.report("%s negative (%v), defaulted to 0", key, v)
		return 0
	}
	if f >= math.MaxInt64 {
		c.report("%s out of range (%v), defaulted to 0", key, v)
		return 0
	}
	return int64(math.Round(f))
}

// rate reads an optional fraction and clamps it to [0,1].
func (c checker) rate(key string) *float64 {
	v, ok := c.row.Lookup(key)
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		c.report("%s not numeric (%v), dropped", key, v)
		return nil
	}
	clamped := f
	switch {
	case f < 0:
		clamped = 0
	case f > 1:
		clamped = 1
	}
	if clamped != f {
		c.report("%s out of range (%v), clamped to %v", key, v, clamped)
	}
	return &clamped
}

// duration reads an optional non-negative number of seconds.
func (c checker) duration(key string) float64 {
	v, ok := c.row.Lookup(key)
	if !ok {
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		c.report("%s not numeric (%v), defaulted to 0", key, v)
		return 0
	}
	if f < 0 {
		c.report("%s negative (%v), defaulted to 0", key, v)
		return 0
	}
	return f
}

// text reads an optional string; absent values are empty.
func (c checker) text(key string) string {
	v, ok := c.row.Lookup(key)
	if !ok {
		return ""
	}
	s, ok := toString(v)
	if !ok {
		c.report("%s not text (%v), cleared", key, v)
		return ""
	}
	return strings.TrimSpace(s)
}

// defaulted reads a string that must not be empty.
func (c checker) defaulted(key, fallback string) string {
	if s := c.text(key); s != "" {
		return s
	}
	c.report("%s empty, defaulted to %s", key, fallback)
	return fallback
}

func (c checker) device(key string) string {
	raw := c.text(key)
	category := strings.ToLower(raw)
	if knownDevices[category] {
		return category
	}
	c.report("%s unknown (%q), defaulted to %s", key, raw, DeviceDesktop)
	return DeviceDesktop
}

// identifier reads a required non-empty string. The caller drops the record
// when ok is false.
func (c checker) identifier(key string) (string, bool) {
	v, ok := c.row.Lookup(key)
	if !ok {
		c.report("%s missing, record dropped", key)
		return "", false
	}
	s, ok := toString(v)
	if !ok {
		c.report("%s malformed (%v), record dropped", key, v)
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		c.report("%s empty, record dropped", key)
		return "", false
	}
	return s, true
}

// date reads a required calendar date and returns it in ISO form.
func (c checker) date(key string) (string, bool) {
	v, ok := c.row.Lookup(key)
	if !ok {
		c.report("%s missing, record dropped", key)
		return "", false
	}
	if t, ok := v.(time.Time); ok {
		return timeframe.FormatDate(t), true
	}
	s, ok := toString(v)
	if !ok {
		if n, isNum := toFloat(v); isNum && n == math.Trunc(n) {
			s = strconv.FormatInt(int64(n), 10)
		} else {
			c.report("%s malformed (%v), record dropped", key, v)
			return "", false
		}
	}
	s = strings.TrimSpace(s)
	if t, err := timeframe.ParseDate(s); err == nil {
		return timeframe.FormatDate(t), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return timeframe.FormatDate(t), true
	}
	c.report("%s malformed (%q), record dropped", key, s)
	return "", false
}

// toFloat accepts Go numbers and numeric strings. Booleans, nil, NaN and
// infinities are rejected.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil, bool:
		return 0, false
	case json.Number:
		v = n.String()
	case []byte:
		v = string(n)
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		v = s
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case fmt.Stringer:
		return s.String(), true
	default:
		return "", false
	}
}
