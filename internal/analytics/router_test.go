package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyticshub/internal/models"
)

func pagesFixture() (*fakeHistorical, *fakeLive) {
	hist := &fakeHistorical{
		hasData: true,
		rows: map[models.Family][]models.Row{
			models.FamilyPages: {
				{"page_path": "/home", "page_title": "Home", "pageviews": int64(120), "sessions": int64(90), "bounce_rate": 0.4},
				{"page_path": "/about", "page_title": "About", "pageviews": int64(30), "sessions": int64(25), "bounce_rate": 0.6},
			},
		},
	}
	live := &fakeLive{
		rows: map[models.Family][]models.Row{
			models.FamilyPages: {
				{"pagePath": "/home", "pageTitle": "Home", "screenPageViews": "80", "sessions": "60", "bounceRate": "0.5"},
			},
		},
	}
	return hist, live
}

func TestPageViewsHybridMerged(t *testing.T) {
	hist, live := pagesFixture()
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-05-20", "2024-06-15", 0)

	assert.Equal(t, SourceHybrid, res.SourceTag)
	assert.Empty(t, res.Error)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "/home", res.Data[0].Path)
	assert.Equal(t, int64(200), res.Data[0].PageViews)
	assert.Equal(t, int64(150), res.Data[0].Sessions)
	assert.Equal(t, "/about", res.Data[1].Path)
	assert.Equal(t, 3, res.QualityReport.TotalRecordCount)
	assert.Equal(t, 3, res.QualityReport.ValidRecordCount)
	assert.Empty(t, res.QualityReport.Issues)

	assert.Equal(t, []fetchCall{{models.FamilyPages, "2024-05-20", "2024-05-31"}}, hist.fetchCalls())
	assert.Equal(t, []fetchCall{{models.FamilyPages, "2024-06-01", "2024-06-15"}}, live.fetchCalls())
}

func TestPageViewsHybridUnmerged(t *testing.T) {
	hist, live := pagesFixture()
	router := newTestRouter(t, hist, live, MergeNone)

	res := router.PageViews(context.Background(), "2024-05-20", "2024-06-15", 0)

	assert.Equal(t, SourceHybrid, res.SourceTag)
	require.Len(t, res.Data, 3)
	paths := []string{res.Data[0].Path, res.Data[1].Path, res.Data[2].Path}
	assert.Equal(t, []string{"/home", "/home", "/about"}, paths)
	for _, p := range res.Data {
		assert.GreaterOrEqual(t, p.PageViews, int64(0))
		assert.GreaterOrEqual(t, p.Sessions, int64(0))
	}
}

func TestPageViewsLimit(t *testing.T) {
	hist, live := pagesFixture()
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-05-20", "2024-06-15", 1)

	require.Len(t, res.Data, 1)
	assert.Equal(t, "/home", res.Data[0].Path)
}

func TestLiveOnlyNeverTouchesWarehouse(t *testing.T) {
	hist, live := pagesFixture()
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-06-01", "2024-06-30", 0)

	assert.Equal(t, SourceLiveOnly, res.SourceTag)
	require.Len(t, res.Data, 1)
	assert.Empty(t, hist.fetchCalls())
	assert.Empty(t, hist.checks)
}

func TestHistoricalOnlyNeverCallsLive(t *testing.T) {
	hist, live := pagesFixture()
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-01-01", "2024-03-31", 0)

	assert.Equal(t, SourceHistoricalOnly, res.SourceTag)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, 0, live.calls())
}

func TestNoDataIsNotAnError(t *testing.T) {
	hist, live := pagesFixture()
	hist.hasData = false
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-01-01", "2024-03-31", 0)

	assert.Equal(t, SourceNoData, res.SourceTag)
	assert.Empty(t, res.Error)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Empty(t, hist.fetchCalls())
	assert.Equal(t, 0, live.calls())
}

func TestHybridWithEmptyWarehouseUsesLiveOnly(t *testing.T) {
	hist, live := pagesFixture()
	hist.hasData = false
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-05-20", "2024-06-15", 0)

	assert.Equal(t, SourceHybrid, res.SourceTag)
	require.Len(t, res.Data, 1)
	assert.Empty(t, hist.fetchCalls())
}

func TestHybridSurvivesLiveFailure(t *testing.T) {
	hist, live := pagesFixture()
	live.errs = []error{&temporaryError{msg: "permission denied", temporary: false}}
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-05-20", "2024-06-15", 0)

	assert.Equal(t, SourceHybrid, res.SourceTag)
	assert.Empty(t, res.Error)
	require.Len(t, res.Data, 2)
	assert.Equal(t, int64(120), res.Data[0].PageViews)
}

func TestHybridSurvivesHistoricalFailure(t *testing.T) {
	hist, live := pagesFixture()
	hist.fetchErr = errors.New("database is locked")
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-05-20", "2024-06-15", 0)

	assert.Equal(t, SourceHybrid, res.SourceTag)
	require.Len(t, res.Data, 1)
	assert.Equal(t, int64(80), res.Data[0].PageViews)
}

func TestAllSourcesFailedIsErrorResult(t *testing.T) {
	hist, live := pagesFixture()
	hist.fetchErr = errors.New("database is locked")
	live.errs = []error{&temporaryError{msg: "bad request", temporary: false}}
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-05-20", "2024-06-15", 0)

	assert.Equal(t, SourceError, res.SourceTag)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Contains(t, res.Error, "database is locked")
	assert.Contains(t, res.Error, "bad request")
}

func TestLiveOnlyFailureIsErrorResult(t *testing.T) {
	_, live := pagesFixture()
	live.errs = []error{&temporaryError{msg: "forbidden", temporary: false}}
	router := newTestRouter(t, nil, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-06-01", "2024-06-30", 0)

	assert.Equal(t, SourceError, res.SourceTag)
	assert.Contains(t, res.Error, "forbidden")
}

func TestTransientLiveErrorsAreRetried(t *testing.T) {
	_, live := pagesFixture()
	live.errs = []error{
		&temporaryError{msg: "unavailable", temporary: true},
		&temporaryError{msg: "unavailable", temporary: true},
	}
	router := newTestRouter(t, nil, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-06-01", "2024-06-30", 0)

	assert.Equal(t, SourceLiveOnly, res.SourceTag)
	assert.Len(t, res.Data, 1)
	assert.Equal(t, 3, live.calls())
}

func TestRetriesAreBounded(t *testing.T) {
	_, live := pagesFixture()
	for i := 0; i < 5; i++ {
		live.errs = append(live.errs, &temporaryError{msg: fmt.Sprintf("unavailable %d", i), temporary: true})
	}
	router := newTestRouter(t, nil, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-06-01", "2024-06-30", 0)

	assert.Equal(t, SourceError, res.SourceTag)
	assert.Contains(t, res.Error, "unavailable 2")
	assert.Equal(t, 3, live.calls())
}

func TestHybridFetchesSourcesConcurrently(t *testing.T) {
	hist, live := pagesFixture()
	live.started = make(chan struct{})
	hist.waitFor = live.started
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-05-20", "2024-06-15", 0)

	assert.Equal(t, SourceHybrid, res.SourceTag)
	assert.Empty(t, res.Error)
	assert.Empty(t, res.QualityReport.Issues)
	require.Len(t, res.Data, 2)
	assert.Equal(t, int64(200), res.Data[0].PageViews)
	assert.Equal(t, "/about", res.Data[1].Path)
}

func TestLiveRetryBackoffGrowsLinearly(t *testing.T) {
	const backoff = 50 * time.Millisecond
	live := &fakeLive{}
	for i := 0; i < 4; i++ {
		live.errs = append(live.errs, &temporaryError{msg: "unavailable", temporary: true})
	}
	router := NewRouter(testLogger(), nil, live, Options{
		Cutover:     day("2024-06-01"),
		LiveTimeout: time.Second,
		LiveRetries: 4,
		LiveBackoff: backoff,
	})

	res := router.PageViews(context.Background(), "2024-06-01", "2024-06-30", 0)

	assert.Equal(t, SourceError, res.SourceTag)
	gaps := live.gaps()
	require.Len(t, gaps, 3)
	for i, gap := range gaps {
		attempt := i + 1
		assert.GreaterOrEqual(t, gap, time.Duration(attempt)*backoff, "wait before attempt %d", attempt+1)
	}
	// Doubling would make the last wait 4x the backoff.
	assert.Less(t, gaps[2], 4*backoff)
}

func TestNonTransientLiveErrorsAreNotRetried(t *testing.T) {
	_, live := pagesFixture()
	live.errs = []error{&temporaryError{msg: "quota exhausted", temporary: false}}
	router := newTestRouter(t, nil, live, MergeSum)

	router.PageViews(context.Background(), "2024-06-01", "2024-06-30", 0)

	assert.Equal(t, 1, live.calls())
}

func TestLiveAttemptTimeout(t *testing.T) {
	live := &fakeLive{block: true}
	router := NewRouter(testLogger(), nil, live, Options{
		Cutover:     day("2024-06-01"),
		LiveTimeout: 20 * time.Millisecond,
		LiveRetries: 2,
		LiveBackoff: time.Millisecond,
	})

	res := router.PageViews(context.Background(), "2024-06-01", "2024-06-30", 0)

	assert.Equal(t, SourceError, res.SourceTag)
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())
	assert.Equal(t, 2, live.calls())
}

func TestInvertedRangeFailsWithoutFetching(t *testing.T) {
	hist, live := pagesFixture()
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.PageViews(context.Background(), "2024-06-15", "2024-05-20", 0)

	assert.Equal(t, SourceError, res.SourceTag)
	assert.Contains(t, res.Error, "invalid date range")
	assert.Empty(t, res.Data)
	assert.Empty(t, hist.fetchCalls())
	assert.Empty(t, hist.checks)
	assert.Equal(t, 0, live.calls())
}

func TestDailyMetricsSortedAndMerged(t *testing.T) {
	hist := &fakeHistorical{
		hasData: true,
		rows: map[models.Family][]models.Row{
			models.FamilyDaily: {
				{"date": "2024-05-31", "pageviews": 10, "sessions": 5, "users": 4, "bounce_rate": 0.5},
				{"date": "2024-05-30", "pageviews": 8, "sessions": 4, "users": 3},
			},
		},
	}
	live := &fakeLive{
		rows: map[models.Family][]models.Row{
			models.FamilyDaily: {
				{"date": "20240602", "screenPageViews": "7", "sessions": "3", "totalUsers": "2", "bounceRate": "0.3"},
				{"date": "20240601", "screenPageViews": "9", "sessions": "6", "totalUsers": "5", "bounceRate": "0.1"},
			},
		},
	}
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.DailyMetrics(context.Background(), "2024-05-30", "2024-06-02", 0)

	require.Len(t, res.Data, 4)
	dates := make([]string, len(res.Data))
	for i, d := range res.Data {
		dates[i] = d.Date
	}
	assert.Equal(t, []string{"2024-05-30", "2024-05-31", "2024-06-01", "2024-06-02"}, dates)
	assert.Nil(t, res.Data[0].BounceRate)
	assert.Equal(t, int64(9), res.Data[2].PageViews)
}

func TestDailyMetricsLimitKeepsEarliestDays(t *testing.T) {
	hist := &fakeHistorical{
		hasData: true,
		rows: map[models.Family][]models.Row{
			models.FamilyDaily: {
				{"date": "2024-05-29", "pageviews": 6},
				{"date": "2024-05-31", "pageviews": 10},
				{"date": "2024-05-30", "pageviews": 8},
			},
		},
	}
	router := newTestRouter(t, hist, &fakeLive{}, MergeSum)

	res := router.DailyMetrics(context.Background(), "2024-05-29", "2024-05-31", 1)

	require.Len(t, res.Data, 1)
	assert.Equal(t, "2024-05-29", res.Data[0].Date)
	assert.Equal(t, 3, res.QualityReport.ValidRecordCount)

	res = router.DailyMetrics(context.Background(), "2024-05-29", "2024-05-31", 2)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "2024-05-30", res.Data[1].Date)
}

func TestTrafficSourcesCanonicalized(t *testing.T) {
	live := &fakeLive{
		rows: map[models.Family][]models.Row{
			models.FamilyTraffic: {
				{"sessionSource": "t.co", "sessionMedium": "(not set)", "sessions": "4", "totalUsers": "4", "newUsers": "1"},
				{"sessionSource": "x.com", "sessionMedium": "", "sessions": "6", "totalUsers": "5", "newUsers": "2"},
				{"sessionSource": "(direct)", "sessionMedium": "(none)", "sessions": "20", "totalUsers": "18", "newUsers": "9"},
				{"sessionSource": "www.google.com", "sessionMedium": "organic", "sessions": "7", "totalUsers": "7", "newUsers": "3"},
			},
		},
	}
	router := newTestRouter(t, nil, live, MergeSum)

	res := router.TrafficSources(context.Background(), "2024-06-01", "2024-06-30", 0)

	require.Len(t, res.Data, 3)
	assert.Equal(t, TrafficSource{Source: "(direct)", Medium: "none", Sessions: 20, Users: 18, NewUsers: 9}, res.Data[0])
	assert.Equal(t, TrafficSource{Source: "twitter.com", Medium: "social", Sessions: 10, Users: 9, NewUsers: 3}, res.Data[1])
	assert.Equal(t, "google.com", res.Data[2].Source)
	assert.Empty(t, res.QualityReport.Issues)

	top := router.TopReferrers(context.Background(), "2024-06-01", "2024-06-30", 1)
	require.Len(t, top.Data, 1)
	assert.Equal(t, "twitter.com", top.Data[0].Source)
	assert.Equal(t, SourceLiveOnly, top.SourceTag)
}

func TestTopPagesDefaultsToTen(t *testing.T) {
	var rows []models.Row
	for i := 0; i < 15; i++ {
		rows = append(rows, models.Row{"pagePath": fmt.Sprintf("/p%d", i), "screenPageViews": fmt.Sprint(i), "sessions": "1"})
	}
	live := &fakeLive{rows: map[models.Family][]models.Row{models.FamilyPages: rows}}
	router := newTestRouter(t, nil, live, MergeSum)

	res := router.TopPages(context.Background(), "2024-06-01", "2024-06-30", 0)

	require.Len(t, res.Data, DefaultTopN)
	assert.Equal(t, "/p14", res.Data[0].Path)
	assert.Equal(t, "/p5", res.Data[9].Path)
}

func TestDevicesAndGeo(t *testing.T) {
	hist := &fakeHistorical{
		hasData: true,
		rows: map[models.Family][]models.Row{
			models.FamilyDevices: {{"device_category": "mobile", "sessions": 10, "users": 8}},
			models.FamilyGeo:     {{"country": "United States", "city": "Boston", "sessions": 3, "users": 3, "new_users": 1}},
		},
	}
	live := &fakeLive{
		rows: map[models.Family][]models.Row{
			models.FamilyDevices: {{"deviceCategory": "mobile", "sessions": "5", "totalUsers": "5"}, {"deviceCategory": "desktop", "sessions": "20", "totalUsers": "18"}},
			models.FamilyGeo:     {{"country": "US", "city": "Boston", "sessions": "4", "totalUsers": "4", "newUsers": "2"}},
		},
	}
	router := newTestRouter(t, hist, live, MergeSum)

	devices := router.DeviceBreakdown(context.Background(), "2024-05-20", "2024-06-15", 0)
	assert.Equal(t, []Device{
		{DeviceCategory: "desktop", Sessions: 20, Users: 18},
		{DeviceCategory: "mobile", Sessions: 15, Users: 13},
	}, devices.Data)

	geo := router.Geographic(context.Background(), "2024-05-20", "2024-06-15", 0)
	assert.Equal(t, []Geographic{
		{Country: "United States", City: "Boston", Sessions: 7, Users: 7, NewUsers: 3},
	}, geo.Data)
}

func TestSummaryHybrid(t *testing.T) {
	hist := &fakeHistorical{
		hasData: true,
		rows: map[models.Family][]models.Row{
			models.FamilySummary: {{"pageviews": 100, "sessions": 100, "users": 90, "bounce_rate": 0.2, "avg_session_duration": 60.0}},
		},
	}
	live := &fakeLive{
		rows: map[models.Family][]models.Row{
			models.FamilySummary: {{"screenPageViews": "300", "sessions": "300", "totalUsers": "250", "bounceRate": "0.6", "averageSessionDuration": "120"}},
		},
	}
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.Summary(context.Background(), "2024-05-20", "2024-06-15")

	assert.Equal(t, SourceHybrid, res.SourceTag)
	assert.Equal(t, int64(400), res.Data.TotalPageViews)
	assert.Equal(t, int64(340), res.Data.TotalUsers)
	assert.InDelta(t, 0.5, res.Data.BounceRate, 1e-9)
	assert.InDelta(t, 105, res.Data.AverageSessionDuration, 1e-9)
}

func TestSummaryFailureIsZeroed(t *testing.T) {
	hist := &fakeHistorical{hasData: true, fetchErr: errors.New("gone")}
	live := &fakeLive{errs: []error{&temporaryError{msg: "denied"}}}
	router := newTestRouter(t, hist, live, MergeSum)

	res := router.Summary(context.Background(), "2024-05-20", "2024-06-15")

	assert.Equal(t, SourceError, res.SourceTag)
	assert.Equal(t, Summary{}, res.Data)
	assert.NotEmpty(t, res.Error)
}

func TestRouterWithoutSources(t *testing.T) {
	router := newTestRouter(t, nil, nil, MergeSum)

	assert.Equal(t, SourceNoData, router.PageViews(context.Background(), "2024-01-01", "2024-01-31", 0).SourceTag)
	assert.Equal(t, SourceError, router.PageViews(context.Background(), "2024-06-01", "2024-06-30", 0).SourceTag)
}

func TestRelativeTokens(t *testing.T) {
	_, live := pagesFixture()
	router := newTestRouter(t, nil, live, MergeSum)

	res := router.PageViews(context.Background(), "7daysAgo", "yesterday", 0)

	assert.Equal(t, SourceLiveOnly, res.SourceTag)
	assert.Equal(t, []fetchCall{{models.FamilyPages, "2024-06-24", "2024-06-30"}}, live.fetchCalls())
}

func TestConcurrentQueriesAreIndependent(t *testing.T) {
	hist, live := pagesFixture()
	router := newTestRouter(t, hist, live, MergeSum)

	done := make(chan Result[PageView], 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- router.PageViews(context.Background(), "2024-05-20", "2024-06-15", 0)
		}()
	}
	for i := 0; i < 8; i++ {
		res := <-done
		assert.Equal(t, SourceHybrid, res.SourceTag)
		assert.Len(t, res.Data, 2)
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", &temporaryError{temporary: true})))
	assert.False(t, IsTransient(&temporaryError{temporary: false}))
	assert.False(t, IsTransient(errors.New("plain")))
}
