package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyticshub/internal/models"
)

func TestCalculateComparisonMetrics(t *testing.T) {
	current := Summary{TotalPageViews: 150, TotalSessions: 100, TotalUsers: 80, BounceRate: 0.3, AverageSessionDuration: 90}
	previous := Summary{TotalPageViews: 100, TotalSessions: 100, TotalUsers: 0, BounceRate: 0.6, AverageSessionDuration: 60}

	changes := CalculateComparisonMetrics(current, previous)

	require.NotNil(t, changes.PageViewsChange)
	assert.InDelta(t, 50.0, *changes.PageViewsChange, 1e-9)
	require.NotNil(t, changes.SessionsChange)
	assert.InDelta(t, 0.0, *changes.SessionsChange, 1e-9)
	assert.Nil(t, changes.UsersChange)
	require.NotNil(t, changes.BounceRateChange)
	assert.InDelta(t, -50.0, *changes.BounceRateChange, 1e-9)
	require.NotNil(t, changes.AvgTimeChange)
	assert.InDelta(t, 50.0, *changes.AvgTimeChange, 1e-9)
}

func TestSummaryComparisonUsesPrecedingRange(t *testing.T) {
	live := &fakeLive{
		rows: map[models.Family][]models.Row{
			models.FamilySummary: {{"screenPageViews": "10", "sessions": "5", "totalUsers": "4"}},
		},
	}
	router := newTestRouter(t, nil, live, MergeSum)

	cmp := router.SummaryComparison(context.Background(), "2024-06-11", "2024-06-20")

	assert.Equal(t, SourceLiveOnly, cmp.Current.SourceTag)
	assert.Equal(t, SourceLiveOnly, cmp.Previous.SourceTag)
	calls := live.fetchCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, fetchCall{models.FamilySummary, "2024-06-11", "2024-06-20"}, calls[0])
	assert.Equal(t, fetchCall{models.FamilySummary, "2024-06-01", "2024-06-10"}, calls[1])
	require.NotNil(t, cmp.Changes.PageViewsChange)
	assert.InDelta(t, 0.0, *cmp.Changes.PageViewsChange, 1e-9)
}

func TestSummaryComparisonInvalidRange(t *testing.T) {
	router := newTestRouter(t, nil, nil, MergeSum)

	cmp := router.SummaryComparison(context.Background(), "2024-06-20", "2024-06-11")

	assert.Equal(t, SourceError, cmp.Current.SourceTag)
	assert.Equal(t, SourceError, cmp.Previous.SourceTag)
	assert.Nil(t, cmp.Changes.PageViewsChange)
}
