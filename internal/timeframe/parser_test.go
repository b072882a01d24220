package timeframe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyticshub/internal/timeframe"
)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("Failed to load time zone location: " + name)
	}
	return loc
}

func TestResolveToken(t *testing.T) {
	// 2024-07-15 14:30 UTC (Monday)
	fixedTime := time.Date(2024, 7, 15, 14, 30, 0, 0, time.UTC)
	parser := timeframe.NewParser(time.UTC, &timeframe.FixedTimeProvider{CurrentTime: fixedTime})

	testCases := []struct {
		token       string
		expected    time.Time
		expectError bool
	}{
		{token: "today", expected: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)},
		{token: "yesterday", expected: time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)},
		{token: "0daysAgo", expected: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)},
		{token: "30daysAgo", expected: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
		{token: "2024-06-01", expected: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{token: "20240601", expected: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{token: " 2024-06-01 ", expected: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{token: "", expectError: true},
		{token: "-3daysAgo", expectError: true},
		{token: "xdaysAgo", expectError: true},
		{token: "tomorrow", expectError: true},
		{token: "2024-13-01", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			got, err := parser.ResolveToken(tc.token)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.expected.Equal(got), "expected %v, got %v", tc.expected, got)
		})
	}
}

func TestResolveTokenUsesReportingTimezone(t *testing.T) {
	// 02:00 UTC on the 15th is still the 14th in Los Angeles
	fixedTime := time.Date(2024, 7, 15, 2, 0, 0, 0, time.UTC)
	parser := timeframe.NewParser(mustLoadLocation("America/Los_Angeles"), &timeframe.FixedTimeProvider{CurrentTime: fixedTime})

	got, err := parser.ResolveToken("today")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-14", timeframe.FormatDate(got))
}

func TestParseRange(t *testing.T) {
	fixedTime := time.Date(2024, 7, 15, 14, 30, 0, 0, time.UTC)
	parser := timeframe.NewParser(nil, &timeframe.FixedTimeProvider{CurrentTime: fixedTime})

	r, err := parser.ParseRange("7daysAgo", "today")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-08", r.StartDate())
	assert.Equal(t, "2024-07-15", r.EndDate())
	assert.Equal(t, 8, r.Days())

	_, err = parser.ParseRange("2024-07-10", "2024-07-01")
	assert.ErrorIs(t, err, timeframe.ErrInvertedRange)

	_, err = parser.ParseRange("garbage", "today")
	assert.Error(t, err)
}

func TestDateRangePrevious(t *testing.T) {
	r, err := timeframe.NewDateRange(
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	prev := r.Previous()
	assert.Equal(t, "2024-05-22", prev.StartDate())
	assert.Equal(t, "2024-05-31", prev.EndDate())
	assert.Equal(t, r.Days(), prev.Days())
	assert.Equal(t, "2024-06-01..2024-06-10", r.String())
}
