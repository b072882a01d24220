package timeframe

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the ISO calendar date format used in every canonical record.
	DateLayout = "2006-01-02"
	// CompactDateLayout is the YYYYMMDD format the live provider reports dates in.
	CompactDateLayout = "20060102"
)

// DateRange is an inclusive range of calendar days. Start and End are always
// midnight UTC of their calendar date.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range from two days, rejecting inverted input.
func NewDateRange(start, end time.Time) (DateRange, error) {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: %s is before %s", ErrInvertedRange, FormatDate(end), FormatDate(start))
	}
	return DateRange{Start: start, End: end}, nil
}

// StartDate returns the first day as an ISO date string.
func (r DateRange) StartDate() string {
	return FormatDate(r.Start)
}

// EndDate returns the last day as an ISO date string.
func (r DateRange) EndDate() string {
	return FormatDate(r.End)
}

// Days returns the number of calendar days covered, both ends included.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Previous returns the range of equal length that ends the day before r starts.
func (r DateRange) Previous() DateRange {
	end := r.Start.AddDate(0, 0, -1)
	return DateRange{Start: end.AddDate(0, 0, -(r.Days() - 1)), End: end}
}

func (r DateRange) String() string {
	return r.StartDate() + ".." + r.EndDate()
}

// Day truncates t to midnight UTC of the calendar date t falls on in its own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a day as an ISO date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate accepts ISO (2006-01-02) and compact (20060102) calendar dates.
func ParseDate(s string) (time.Time, error) {
	layout := DateLayout
	if len(s) == len(CompactDateLayout) {
		layout = CompactDateLayout
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
