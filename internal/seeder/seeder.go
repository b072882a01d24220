// Package seeder fills the historical warehouse with plausible demo data.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"analyticshub/internal/models"
	"analyticshub/internal/timeframe"
)

// Importer writes raw warehouse rows for one family.
type Importer interface {
	Import(family models.Family, rows []models.Row) (int, error)
}

// Seeder generates daily warehouse rows for a date range. Output is
// deterministic for a given seed.
type Seeder struct {
	Importer Importer
	Logger   *slog.Logger
	Seed     uint64
}

// NewSeeder creates a new seeder instance
func NewSeeder(importer Importer, logger *slog.Logger, seed uint64) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		Importer: importer,
		Logger:   logger,
		Seed:     seed,
	}
}

type page struct {
	path   string
	title  string
	weight float64
}

type source struct {
	source string
	medium string
	weight float64
}

type location struct {
	country string
	city    string
	weight  float64
}

var (
	pages = []page{
		{"/", "Home", 0.35},
		{"/pricing", "Pricing", 0.15},
		{"/blog", "Blog", 0.12},
		{"/blog/getting-started", "Getting Started", 0.1},
		{"/docs", "Documentation", 0.1},
		{"/about", "About Us", 0.08},
		{"/contact", "Contact", 0.06},
		{"/careers", "Careers", 0.04},
	}
	sources = []source{
		{"(direct)", "(none)", 0.3},
		{"google", "organic", 0.35},
		{"bing", "organic", 0.05},
		{"t.co", "referral", 0.08},
		{"facebook.com", "referral", 0.07},
		{"news.ycombinator.com", "referral", 0.06},
		{"newsletter", "email", 0.05},
		{"google", "cpc", 0.04},
	}
	devices = map[string]float64{
		"desktop": 0.58,
		"mobile":  0.37,
		"tablet":  0.05,
	}
	deviceOrder = []string{"desktop", "mobile", "tablet"}
	locations   = []location{
		{"United States", "New York", 0.2},
		{"United States", "San Francisco", 0.15},
		{"United Kingdom", "London", 0.12},
		{"Germany", "Berlin", 0.1},
		{"France", "Paris", 0.08},
		{"Canada", "Toronto", 0.08},
		{"India", "Bangalore", 0.1},
		{"Brazil", "(not set)", 0.07},
		{"Japan", "Tokyo", 0.1},
	}
)

// Run seeds every importable family for each day of the inclusive range.
func (s *Seeder) Run(ctx context.Context, rng timeframe.DateRange) error {
	start := time.Now()
	s.Logger.Info("Seeding historical warehouse...",
		slog.String("range", rng.String()),
		slog.Uint64("seed", s.Seed))

	r := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	batches := map[models.Family][]models.Row{}

	for d := rng.Start; !d.After(rng.End); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		date := timeframe.FormatDate(d)
		sessions := dailySessions(r, d)
		users := int64(float64(sessions) * (0.75 + r.Float64()*0.15))
		newUsers := int64(float64(users) * (0.5 + r.Float64()*0.2))
		pageviews := int64(float64(sessions) * (1.8 + r.Float64()*1.2))
		bounce := 0.35 + r.Float64()*0.25
		duration := 60 + r.Float64()*180

		batches[models.FamilyDaily] = append(batches[models.FamilyDaily], models.Row{
			"date":                 date,
			"pageviews":            pageviews,
			"sessions":             sessions,
			"users":                users,
			"new_users":            newUsers,
			"bounce_rate":          bounce,
			"avg_session_duration": duration,
		})

		for _, p := range pages {
			share := jitter(r, p.weight)
			batches[models.FamilyPages] = append(batches[models.FamilyPages], models.Row{
				"date":        date,
				"page_path":   p.path,
				"page_title":  p.title,
				"pageviews":   int64(float64(pageviews) * share),
				"sessions":    int64(float64(sessions) * share),
				"bounce_rate": clamp(bounce + (r.Float64()-0.5)*0.2),
			})
		}

		for _, src := range sources {
			share := jitter(r, src.weight)
			batches[models.FamilyTraffic] = append(batches[models.FamilyTraffic], models.Row{
				"date":      date,
				"source":    src.source,
				"medium":    src.medium,
				"sessions":  int64(float64(sessions) * share),
				"users":     int64(float64(users) * share),
				"new_users": int64(float64(newUsers) * share),
			})
		}

		for _, category := range deviceOrder {
			share := jitter(r, devices[category])
			batches[models.FamilyDevices] = append(batches[models.FamilyDevices], models.Row{
				"date":            date,
				"device_category": category,
				"sessions":        int64(float64(sessions) * share),
				"users":           int64(float64(users) * share),
			})
		}

		for _, loc := range locations {
			share := jitter(r, loc.weight)
			batches[models.FamilyGeo] = append(batches[models.FamilyGeo], models.Row{
				"date":      date,
				"country":   loc.country,
				"city":      loc.city,
				"sessions":  int64(float64(sessions) * share),
				"users":     int64(float64(users) * share),
				"new_users": int64(float64(newUsers) * share),
			})
		}
	}

	for _, family := range models.AllFamilies {
		rows, ok := batches[family]
		if !ok {
			continue
		}
		n, err := s.Importer.Import(family, rows)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", family, err)
		}
		s.Logger.Info("Seeded family", slog.String("family", string(family)), slog.Int("rows", n))
	}

	s.Logger.Info("Seeding completed successfully", slog.Int("days", rng.Days()), slog.Duration("elapsed", time.Since(start)))
	return nil
}

// dailySessions follows a weekly cycle with weekends at roughly 60% of
// weekday traffic.
func dailySessions(r *rand.Rand, d time.Time) int64 {
	base := 800.0
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		base *= 0.6
	}
	return int64(base * (0.85 + r.Float64()*0.3))
}

func jitter(r *rand.Rand, weight float64) float64 {
	return weight * (0.8 + r.Float64()*0.4)
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
