package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"analyticshub/internal/models"
	"analyticshub/internal/timeframe"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(s string) time.Time {
	t, err := timeframe.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

type fetchCall struct {
	Family models.Family
	Start  string
	End    string
}

// fakeHistorical serves fixed rows per family and records every call.
// With waitFor set, Fetch returns only once waitFor is closed.
type fakeHistorical struct {
	mu       sync.Mutex
	rows     map[models.Family][]models.Row
	hasData  bool
	hasErr   error
	fetchErr error
	waitFor  <-chan struct{}
	fetches  []fetchCall
	checks   []fetchCall
}

func (f *fakeHistorical) Fetch(ctx context.Context, family models.Family, start, end string) ([]models.Row, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, fetchCall{family, start, end})
	waitFor := f.waitFor
	f.mu.Unlock()

	if waitFor != nil {
		select {
		case <-waitFor:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return nil, errors.New("live fetch never started")
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.rows[family], nil
}

func (f *fakeHistorical) HasData(_ context.Context, start, end string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, fetchCall{Start: start, End: end})
	return f.hasData, f.hasErr
}

func (f *fakeHistorical) fetchCalls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.fetches...)
}

// fakeLive returns errs in order, one per call, then rows. started is
// closed on the first call.
type fakeLive struct {
	mu      sync.Mutex
	rows    map[models.Family][]models.Row
	errs    []error
	block   bool
	fetches []fetchCall
	times   []time.Time

	startOnce sync.Once
	started   chan struct{}
}

func (f *fakeLive) Fetch(ctx context.Context, family models.Family, start, end string) ([]models.Row, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, fetchCall{family, start, end})
	f.times = append(f.times, time.Now())
	n := len(f.fetches)
	block := f.block
	f.mu.Unlock()

	if f.started != nil {
		f.startOnce.Do(func() { close(f.started) })
	}

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if n <= len(f.errs) {
		return nil, f.errs[n-1]
	}
	return f.rows[family], nil
}

func (f *fakeLive) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

// gaps returns the time between consecutive calls.
func (f *fakeLive) gaps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Duration
	for i := 1; i < len(f.times); i++ {
		out = append(out, f.times[i].Sub(f.times[i-1]))
	}
	return out
}

func (f *fakeLive) fetchCalls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.fetches...)
}

// temporaryError reports itself as retryable or not.
type temporaryError struct {
	msg       string
	temporary bool
}

func (e *temporaryError) Error() string   { return e.msg }
func (e *temporaryError) Temporary() bool { return e.temporary }

func newTestRouter(t *testing.T, historical HistoricalSource, live LiveSource, policy MergePolicy) *Router {
	t.Helper()
	return NewRouter(testLogger(), historical, live, Options{
		Cutover:     day("2024-06-01"),
		MergePolicy: policy,
		LiveTimeout: time.Second,
		LiveRetries: 3,
		LiveBackoff: time.Millisecond,
		TimeProvider: &timeframe.FixedTimeProvider{
			CurrentTime: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
		},
	})
}
