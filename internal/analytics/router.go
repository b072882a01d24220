package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"analyticshub/internal/metrics"
	"analyticshub/internal/models"
	"analyticshub/internal/pkg/async"
	"analyticshub/internal/pkg/referrers"
	"analyticshub/internal/timeframe"
)

// HistoricalSource is the warehouse of rows captured from the discontinued
// provider. Rows use warehouse column names.
type HistoricalSource interface {
	Fetch(ctx context.Context, family models.Family, startDate, endDate string) ([]models.Row, error)
	HasData(ctx context.Context, startDate, endDate string) (bool, error)
}

// LiveSource is the remote analytics API. Rows use its report field names.
type LiveSource interface {
	Fetch(ctx context.Context, family models.Family, startDate, endDate string) ([]models.Row, error)
}

const (
	DefaultLiveTimeout = 30 * time.Second
	DefaultLiveRetries = 3
	DefaultLiveBackoff = time.Second
	DefaultTopN        = 10

	taskHistorical = "historical"
	taskLive       = "live"
)

// Options configures a Router.
type Options struct {
	Cutover      time.Time
	MergePolicy  MergePolicy
	LiveTimeout  time.Duration
	LiveRetries  int
	LiveBackoff  time.Duration
	Workers      int
	Location     *time.Location
	TimeProvider timeframe.TimeProvider
}

// Router serves every metric family over an arbitrary date range. Calls are
// independent and share no mutable state.
type Router struct {
	logger     *slog.Logger
	historical HistoricalSource
	live       LiveSource
	resolver   *Resolver
	parser     *timeframe.Parser
	pool       *async.Pool
	opts       Options
}

// NewRouter creates a router. Either source may be nil, in which case it
// behaves as an empty warehouse or an unreachable live provider.
func NewRouter(logger *slog.Logger, historical HistoricalSource, live LiveSource, opts Options) *Router {
	if opts.MergePolicy == "" {
		opts.MergePolicy = MergeSum
	}
	if opts.LiveTimeout <= 0 {
		opts.LiveTimeout = DefaultLiveTimeout
	}
	if opts.LiveRetries <= 0 {
		opts.LiveRetries = DefaultLiveRetries
	}
	if opts.LiveBackoff < 0 {
		opts.LiveBackoff = 0
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	parser := timeframe.NewParser(opts.Location, opts.TimeProvider)

	return &Router{
		logger:     logger,
		historical: historical,
		live:       live,
		resolver:   NewResolver(logger, historical, parser),
		parser:     parser,
		pool:       async.NewPool(opts.Workers),
		opts:       opts,
	}
}

// Cutover returns the configured cutover day.
func (r *Router) Cutover() time.Time {
	return timeframe.Day(r.opts.Cutover)
}

// ParseRange resolves request tokens the way every query does.
func (r *Router) ParseRange(startDate, endDate string) (timeframe.DateRange, error) {
	return r.parser.ParseRange(startDate, endDate)
}

// Resolve exposes the routing decision for a request without fetching.
func (r *Router) Resolve(ctx context.Context, startDate, endDate string) (Decision, error) {
	return r.resolver.Resolve(ctx, startDate, endDate, r.opts.Cutover)
}

// DailyMetrics returns one record per day, ascending by date. A positive
// limit keeps the earliest limit days.
func (r *Router) DailyMetrics(ctx context.Context, startDate, endDate string, limit int) Result[DailyMetric] {
	return query(ctx, r, models.FamilyDaily, startDate, endDate, nil, ValidateDaily,
		func(rows []DailyMetric) []DailyMetric {
			if r.opts.MergePolicy == MergeSum {
				rows = mergeDaily(rows)
			}
			sortDaily(rows)
			return truncate(rows, limit)
		})
}

// PageViews returns pages by descending page views.
func (r *Router) PageViews(ctx context.Context, startDate, endDate string, limit int) Result[PageView] {
	return query(ctx, r, models.FamilyPages, startDate, endDate, nil, ValidatePages,
		func(rows []PageView) []PageView {
			if r.opts.MergePolicy == MergeSum {
				rows = mergePages(rows)
			}
			return topN(rows, func(p PageView) int64 { return p.PageViews }, limit)
		})
}

// TrafficSources returns canonical sources by descending sessions.
func (r *Router) TrafficSources(ctx context.Context, startDate, endDate string, limit int) Result[TrafficSource] {
	return query(ctx, r, models.FamilyTraffic, startDate, endDate, canonicalizeSources, ValidateTraffic,
		func(rows []TrafficSource) []TrafficSource {
			if r.opts.MergePolicy == MergeSum {
				rows = mergeTraffic(rows)
			}
			return topN(rows, func(t TrafficSource) int64 { return t.Sessions }, limit)
		})
}

// DeviceBreakdown returns device categories by descending sessions.
func (r *Router) DeviceBreakdown(ctx context.Context, startDate, endDate string, limit int) Result[Device] {
	return query(ctx, r, models.FamilyDevices, startDate, endDate, nil, ValidateDevices,
		func(rows []Device) []Device {
			if r.opts.MergePolicy == MergeSum {
				rows = mergeDevices(rows)
			}
			return topN(rows, func(d Device) int64 { return d.Sessions }, limit)
		})
}

// Geographic returns locations by descending sessions.
func (r *Router) Geographic(ctx context.Context, startDate, endDate string, limit int) Result[Geographic] {
	return query(ctx, r, models.FamilyGeo, startDate, endDate, nil, ValidateGeo,
		func(rows []Geographic) []Geographic {
			if r.opts.MergePolicy == MergeSum {
				rows = mergeGeo(rows)
			}
			return topN(rows, func(g Geographic) int64 { return g.Sessions }, limit)
		})
}

// TopPages returns the n most viewed pages. n <= 0 selects DefaultTopN.
func (r *Router) TopPages(ctx context.Context, startDate, endDate string, n int) Result[PageView] {
	if n <= 0 {
		n = DefaultTopN
	}
	return r.PageViews(ctx, startDate, endDate, n)
}

// TopReferrers returns the n external sources with the most sessions.
// Direct traffic is not a referrer and is left out. n <= 0 selects
// DefaultTopN.
func (r *Router) TopReferrers(ctx context.Context, startDate, endDate string, n int) Result[TrafficSource] {
	if n <= 0 {
		n = DefaultTopN
	}
	res := r.TrafficSources(ctx, startDate, endDate, 0)
	filtered := make([]TrafficSource, 0, len(res.Data))
	for _, t := range res.Data {
		if t.Source != referrers.DirectSource {
			filtered = append(filtered, t)
		}
	}
	res.Data = truncate(filtered, n)
	return res
}

// Summary returns site-wide totals. When every source fails the data is a
// zero-valued Summary and the tag is error.
func (r *Router) Summary(ctx context.Context, startDate, endDate string) SummaryResult {
	res := query(ctx, r, models.FamilySummary, startDate, endDate, nil, ValidateSummary,
		func(rows []Summary) []Summary { return rows })
	return SummaryResult{
		Data:      combineSummaries(res.Data),
		SourceTag: res.SourceTag,
		Error:     res.Error,
	}
}

// query is the pipeline shared by every family: validate range, resolve,
// fetch, normalize, optionally rewrite, validate, post-process.
func query[T any](
	ctx context.Context,
	r *Router,
	family models.Family,
	startDate, endDate string,
	rewrite func([]models.Row) []models.Row,
	validate func([]models.Row) ([]T, []string),
	post func([]T) []T,
) Result[T] {
	rng, err := r.parser.ParseRange(startDate, endDate)
	if err != nil {
		return errorResult[T](fmt.Sprintf("invalid date range: %v", err))
	}

	decision := r.resolver.Decide(ctx, rng, r.opts.Cutover)
	rows, failure := r.fetch(ctx, family, decision)
	if failure != "" {
		return errorResult[T](failure)
	}
	if rewrite != nil {
		rows = rewrite(rows)
	}

	valid, issues := validate(rows)
	metrics.RecordValidation(string(family), len(issues), len(rows)-len(valid))
	quality := QualityReport{
		ValidRecordCount: len(valid),
		TotalRecordCount: len(rows),
		Issues:           issues,
	}

	return Result[T]{
		Data:          post(valid),
		SourceTag:     decision.Label,
		QualityReport: quality,
	}
}

// fetch runs the flagged sources concurrently and returns their normalized
// rows, historical first. failure is set only when every flagged source
// failed.
func (r *Router) fetch(ctx context.Context, family models.Family, d Decision) ([]models.Row, string) {
	var tasks []async.Task
	if d.UseHistorical {
		rng := *d.HistoricalRange
		tasks = append(tasks, async.Task{
			Name: taskHistorical,
			Execute: func(ctx context.Context) (interface{}, error) {
				return r.fetchHistorical(ctx, family, rng)
			},
		})
	}
	if d.UseLive {
		rng := *d.LiveRange
		tasks = append(tasks, async.Task{
			Name: taskLive,
			Execute: func(ctx context.Context) (interface{}, error) {
				return r.fetchLive(ctx, family, rng)
			},
		})
	}
	if len(tasks) == 0 {
		return []models.Row{}, ""
	}

	results := r.pool.Execute(ctx, tasks)

	var rows []models.Row
	var failures []string
	for _, task := range tasks {
		res, ok := results[task.Name]
		if !ok {
			res = async.Result{Name: task.Name, Err: fmt.Errorf("%s fetch abandoned: %w", task.Name, context.Cause(ctx))}
		}
		metrics.RecordFetch(task.Name, string(family), res.Err)
		if res.Err != nil {
			r.logger.Warn("Source fetch failed",
				slog.String("source", task.Name),
				slog.String("family", string(family)),
				slog.Any("error", res.Err))
			failures = append(failures, fmt.Sprintf("%s: %v", task.Name, res.Err))
			continue
		}
		batch, _ := res.Data.([]models.Row)
		provider := models.ProviderHistorical
		if task.Name == taskLive {
			provider = models.ProviderLive
		}
		rows = append(rows, Normalize(batch, provider, family)...)
	}

	if len(failures) == len(tasks) {
		return nil, "all sources failed: " + strings.Join(failures, "; ")
	}
	if rows == nil {
		rows = []models.Row{}
	}
	return rows, ""
}

func (r *Router) fetchHistorical(ctx context.Context, family models.Family, rng timeframe.DateRange) ([]models.Row, error) {
	if r.historical == nil {
		return nil, errors.New("historical warehouse not configured")
	}
	rows, err := r.historical.Fetch(ctx, family, rng.StartDate(), rng.EndDate())
	if err != nil {
		return nil, fmt.Errorf("historical %s %s: %w", family, rng, err)
	}
	return rows, nil
}

// fetchLive calls the live provider with a per-attempt timeout. Transient
// failures are retried with linearly increasing backoff; anything else
// fails at once.
func (r *Router) fetchLive(ctx context.Context, family models.Family, rng timeframe.DateRange) ([]models.Row, error) {
	if r.live == nil {
		return nil, errors.New("live provider not configured")
	}

	var lastErr error
	for attempt := 1; attempt <= r.opts.LiveRetries; attempt++ {
		if attempt > 1 {
			metrics.RecordRetry(string(family))
			if err := sleep(ctx, time.Duration(attempt-1)*r.opts.LiveBackoff); err != nil {
				break
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.opts.LiveTimeout)
		rows, err := r.live.Fetch(attemptCtx, family, rng.StartDate(), rng.EndDate())
		cancel()
		if err == nil {
			return rows, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			break
		}
		r.logger.Warn("Transient live provider failure",
			slog.String("family", string(family)),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.opts.LiveRetries),
			slog.Any("error", err))
	}
	return nil, fmt.Errorf("live %s %s: %w", family, rng, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsTransient reports whether a live provider error is worth retrying:
// network failures, timeouts, and errors whose Temporary method says so.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

// canonicalizeSources rewrites source and medium of normalized traffic rows.
// The input rows are not modified.
func canonicalizeSources(rows []models.Row) []models.Row {
	out := make([]models.Row, len(rows))
	for i, row := range rows {
		raw, _ := row.Lookup("source")
		medium, _ := row.Lookup("medium")
		rawStr, _ := toString(raw)
		mediumStr, _ := toString(medium)

		ref := referrers.CanonicalizeWithMedium(rawStr, mediumStr)
		clone := row.Clone()
		clone["source"] = ref.Source
		clone["medium"] = ref.Medium
		out[i] = clone
	}
	return out
}
