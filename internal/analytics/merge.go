package analytics

import (
	"fmt"
	"sort"
	"strings"
)

// MergePolicy controls how rows for the same entity coming from both
// sources of a hybrid range are combined.
type MergePolicy string

const (
	// MergeSum combines rows sharing a family key. Hybrid sub-ranges never
	// overlap, so summing does not count a day twice.
	MergeSum MergePolicy = "sum"
	// MergeNone keeps one row per source.
	MergeNone MergePolicy = "none"
)

// ParseMergePolicy converts a configured name into a MergePolicy. Empty
// selects MergeSum.
func ParseMergePolicy(name string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", MergeSum:
		return MergeSum, nil
	case MergeNone:
		return MergeNone, nil
	default:
		return "", fmt.Errorf("unknown merge policy: %q", name)
	}
}

// mergeBy folds rows with equal keys into the first row seen with that key.
// Output order is first-seen order.
func mergeBy[T any](rows []T, key func(T) string, combine func(dst *T, src T)) []T {
	out := make([]T, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		k := key(row)
		if i, ok := index[k]; ok {
			combine(&out[i], row)
			continue
		}
		index[k] = len(out)
		out = append(out, row)
	}
	return out
}

// weightedRate is the session-weighted mean of two optional rates. A nil
// rate carries no weight.
func weightedRate(a *float64, aSessions int64, b *float64, bSessions int64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		v := *a
		return &v
	}
	total := aSessions + bSessions
	var v float64
	if total == 0 {
		v = (*a + *b) / 2
	} else {
		v = (*a*float64(aSessions) + *b*float64(bSessions)) / float64(total)
	}
	return &v
}

func mergeDaily(rows []DailyMetric) []DailyMetric {
	return mergeBy(rows,
		func(r DailyMetric) string { return r.Date },
		func(dst *DailyMetric, src DailyMetric) {
			dst.BounceRate = weightedRate(dst.BounceRate, dst.Sessions, src.BounceRate, src.Sessions)
			dst.PageViews += src.PageViews
			dst.Sessions += src.Sessions
			dst.Users += src.Users
		})
}

func mergePages(rows []PageView) []PageView {
	return mergeBy(rows,
		func(r PageView) string { return r.Path },
		func(dst *PageView, src PageView) {
			dst.BounceRate = weightedRate(dst.BounceRate, dst.Sessions, src.BounceRate, src.Sessions)
			if dst.Title == "" {
				dst.Title = src.Title
			}
			dst.PageViews += src.PageViews
			dst.Sessions += src.Sessions
		})
}

func mergeTraffic(rows []TrafficSource) []TrafficSource {
	return mergeBy(rows,
		func(r TrafficSource) string { return r.Source + "|" + r.Medium },
		func(dst *TrafficSource, src TrafficSource) {
			dst.Sessions += src.Sessions
			dst.Users += src.Users
			dst.NewUsers += src.NewUsers
		})
}

func mergeDevices(rows []Device) []Device {
	return mergeBy(rows,
		func(r Device) string { return r.DeviceCategory },
		func(dst *Device, src Device) {
			dst.Sessions += src.Sessions
			dst.Users += src.Users
		})
}

func mergeGeo(rows []Geographic) []Geographic {
	return mergeBy(rows,
		func(r Geographic) string { return r.Country + "|" + r.City },
		func(dst *Geographic, src Geographic) {
			dst.Sessions += src.Sessions
			dst.Users += src.Users
			dst.NewUsers += src.NewUsers
		})
}

// combineSummaries folds every summary row into one. Rates and durations
// are weighted by sessions.
func combineSummaries(rows []Summary) Summary {
	var out Summary
	var bounceWeight, durationWeight float64
	for _, s := range rows {
		out.TotalPageViews += s.TotalPageViews
		out.TotalSessions += s.TotalSessions
		out.TotalUsers += s.TotalUsers
		bounceWeight += s.BounceRate * float64(s.TotalSessions)
		durationWeight += s.AverageSessionDuration * float64(s.TotalSessions)
	}
	switch {
	case out.TotalSessions > 0:
		out.BounceRate = bounceWeight / float64(out.TotalSessions)
		out.AverageSessionDuration = durationWeight / float64(out.TotalSessions)
	case len(rows) > 0:
		for _, s := range rows {
			out.BounceRate += s.BounceRate
			out.AverageSessionDuration += s.AverageSessionDuration
		}
		out.BounceRate /= float64(len(rows))
		out.AverageSessionDuration /= float64(len(rows))
	}
	return out
}

// topN sorts rows descending by the dominant field, keeping first-seen order
// for ties, and truncates to limit when limit is positive.
func topN[T any](rows []T, dominant func(T) int64, limit int) []T {
	sort.SliceStable(rows, func(i, j int) bool {
		return dominant(rows[i]) > dominant(rows[j])
	})
	return truncate(rows, limit)
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func sortDaily(rows []DailyMetric) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date < rows[j].Date
	})
}
