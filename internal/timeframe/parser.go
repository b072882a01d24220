package timeframe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvertedRange is returned when a range ends before it starts.
var ErrInvertedRange = errors.New("end date is before start date")

const daysAgoSuffix = "daysAgo"

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider is the default implementation that uses the system clock.
type DefaultTimeProvider struct{}

// Now returns the current time in loc.
func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always reports the same instant. Used by tests and
// by callers that need a pinned "today".
type FixedTimeProvider struct {
	CurrentTime time.Time
}

// Now returns the fixed instant in loc.
func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.CurrentTime.In(loc)
}

// Parser resolves date tokens against a clock in the reporting timezone.
type Parser struct {
	timeProvider TimeProvider
	loc          *time.Location
}

// NewParser creates a parser for the given reporting timezone. A nil
// location means UTC; an omitted provider means the system clock.
func NewParser(loc *time.Location, timeProvider ...TimeProvider) *Parser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{timeProvider: provider, loc: loc}
}

// Today returns the current calendar day in the reporting timezone.
func (p *Parser) Today() time.Time {
	return Day(p.timeProvider.Now(p.loc))
}

// ResolveToken turns "today", "yesterday", "NdaysAgo" or an absolute date into a day.
// Absolute dates pass through unchanged.
func (p *Parser) ResolveToken(token string) (time.Time, error) {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return time.Time{}, errors.New("empty date")
	case token == "today":
		return p.Today(), nil
	case token == "yesterday":
		return p.Today().AddDate(0, 0, -1), nil
	case strings.HasSuffix(token, daysAgoSuffix):
		n, err := strconv.Atoi(strings.TrimSuffix(token, daysAgoSuffix))
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("invalid relative date %q", token)
		}
		return p.Today().AddDate(0, 0, -n), nil
	default:
		return ParseDate(token)
	}
}

// ParseRange resolves both ends of a request and rejects inverted ranges.
func (p *Parser) ParseRange(startDate, endDate string) (DateRange, error) {
	start, err := p.ResolveToken(startDate)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := p.ResolveToken(endDate)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date: %w", err)
	}
	return NewDateRange(start, end)
}
