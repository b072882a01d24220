package analytics

import (
	"context"
	"fmt"
)

// ComparisonMetrics represents period-over-period percentage changes for key metrics
type ComparisonMetrics struct {
	PageViewsChange  *float64 `json:"pageViewsChange,omitempty"`
	SessionsChange   *float64 `json:"sessionsChange,omitempty"`
	UsersChange      *float64 `json:"usersChange,omitempty"`
	BounceRateChange *float64 `json:"bounceRateChange,omitempty"`
	AvgTimeChange    *float64 `json:"averageSessionDurationChange,omitempty"`
}

// SummaryComparison holds the summary of a range, the summary of the range
// of equal length right before it, and the change between them.
type SummaryComparison struct {
	Current  SummaryResult     `json:"current"`
	Previous SummaryResult     `json:"previous"`
	Changes  ComparisonMetrics `json:"changes"`
}

// CalculateComparisonMetrics computes period-over-period percentage changes.
// A change is nil when the previous value is zero.
func CalculateComparisonMetrics(current, previous Summary) ComparisonMetrics {
	calculatePercentageChange := func(current, previous float64) *float64 {
		if previous > 0 {
			change := ((current - previous) / previous) * 100
			return &change
		}
		return nil
	}

	return ComparisonMetrics{
		PageViewsChange:  calculatePercentageChange(float64(current.TotalPageViews), float64(previous.TotalPageViews)),
		SessionsChange:   calculatePercentageChange(float64(current.TotalSessions), float64(previous.TotalSessions)),
		UsersChange:      calculatePercentageChange(float64(current.TotalUsers), float64(previous.TotalUsers)),
		BounceRateChange: calculatePercentageChange(current.BounceRate, previous.BounceRate),
		AvgTimeChange:    calculatePercentageChange(current.AverageSessionDuration, previous.AverageSessionDuration),
	}
}

// SummaryComparison returns the summary for the range and for the preceding
// range of the same length. A failed previous period degrades to zeros, so
// its changes are nil.
func (r *Router) SummaryComparison(ctx context.Context, startDate, endDate string) SummaryComparison {
	current := r.Summary(ctx, startDate, endDate)

	rng, err := r.parser.ParseRange(startDate, endDate)
	if err != nil {
		return SummaryComparison{
			Current:  current,
			Previous: SummaryResult{SourceTag: SourceError, Error: fmt.Sprintf("invalid date range: %v", err)},
		}
	}

	prev := rng.Previous()
	previous := r.Summary(ctx, prev.StartDate(), prev.EndDate())

	return SummaryComparison{
		Current:  current,
		Previous: previous,
		Changes:  CalculateComparisonMetrics(current.Data, previous.Data),
	}
}
