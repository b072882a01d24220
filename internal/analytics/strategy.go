package analytics

import (
	"context"
	"log/slog"
	"time"

	"analyticshub/internal/metrics"
	"analyticshub/internal/timeframe"
)

// Resolver decides which sources serve a date range relative to the cutover
// date. Decisions are computed per call and never cached.
type Resolver struct {
	logger     *slog.Logger
	historical HistoricalSource
	parser     *timeframe.Parser
}

// NewResolver creates a resolver. A nil historical source behaves like an
// empty warehouse.
func NewResolver(logger *slog.Logger, historical HistoricalSource, parser *timeframe.Parser) *Resolver {
	if parser == nil {
		parser = timeframe.NewParser(time.UTC)
	}
	return &Resolver{logger: logger, historical: historical, parser: parser}
}

// Resolve parses the request tokens and decides the sources for the range.
func (r *Resolver) Resolve(ctx context.Context, startDate, endDate string, cutover time.Time) (Decision, error) {
	rng, err := r.parser.ParseRange(startDate, endDate)
	if err != nil {
		return Decision{}, err
	}
	return r.Decide(ctx, rng, cutover), nil
}

// Decide splits an already validated range at the cutover day.
//
//   - range ends before cutover: historical-only, or no-data when the
//     warehouse holds nothing for it
//   - range starts on or after cutover: live-only
//   - otherwise hybrid, historical up to the day before cutover (only when
//     the warehouse has data there) and live from cutover to the end
func (r *Resolver) Decide(ctx context.Context, rng timeframe.DateRange, cutover time.Time) Decision {
	cutover = timeframe.Day(cutover)
	var d Decision

	switch {
	case rng.End.Before(cutover):
		if r.hasData(ctx, rng) {
			d = Decision{UseHistorical: true, HistoricalRange: &rng, Label: SourceHistoricalOnly}
		} else {
			d = Decision{Label: SourceNoData}
		}

	case !rng.Start.Before(cutover):
		d = Decision{UseLive: true, LiveRange: &rng, Label: SourceLiveOnly}

	default:
		historical := timeframe.DateRange{Start: rng.Start, End: cutover.AddDate(0, 0, -1)}
		live := timeframe.DateRange{Start: cutover, End: rng.End}
		d = Decision{UseLive: true, LiveRange: &live, Label: SourceHybrid}
		if r.hasData(ctx, historical) {
			d.UseHistorical = true
			d.HistoricalRange = &historical
		}
	}

	metrics.RecordDecision(string(d.Label))
	return d
}

func (r *Resolver) hasData(ctx context.Context, rng timeframe.DateRange) bool {
	if r.historical == nil {
		return false
	}
	ok, err := r.historical.HasData(ctx, rng.StartDate(), rng.EndDate())
	if err != nil {
		r.logger.Warn("Historical availability check failed, treating range as empty",
			slog.String("range", rng.String()),
			slog.Any("error", err))
		return false
	}
	return ok
}
