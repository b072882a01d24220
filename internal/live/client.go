// Package live implements the client for the live analytics API's
// runReport endpoint. Requests share a rate limiter and, when enabled, a
// circuit breaker. Every failure is returned as an *APIError with a Kind.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"analyticshub/internal/metrics"
	"analyticshub/internal/models"
)

const (
	DefaultBaseURL  = "https://analyticsdata.googleapis.com/v1beta"
	maxResponseSize = 32 << 20
	reportRowLimit  = 100000
	breakerName     = "live-provider"
)

// Config holds the client settings.
type Config struct {
	BaseURL        string
	PropertyID     string
	AccessToken    string
	RatePerSecond  float64
	CircuitBreaker bool
	HTTPClient     *http.Client
}

// Client fetches raw report rows from the live provider. Timeouts come from
// the caller's context.
type Client struct {
	baseURL     string
	propertyID  string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	cb          *gobreaker.CircuitBreaker[[]models.Row]
	logger      *slog.Logger
}

// NewClient creates a live provider client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		baseURL:     baseURL,
		propertyID:  cfg.PropertyID,
		accessToken: cfg.AccessToken,
		httpClient:  httpClient,
		logger:      logger,
	}

	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	if cfg.CircuitBreaker {
		c.cb = newBreaker(logger)
	}
	return c
}

// newBreaker opens after at least 10 requests in a minute with 60% or more
// transient failures, and lets a trial request through after 2 minutes. Permission, quota and
// invalid-argument failures say nothing about availability and count as
// successes.
func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker[[]models.Row] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[[]models.Row](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsKind(err, KindTransient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state transition",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Fetch runs the report of one family for the inclusive ISO date range.
func (c *Client) Fetch(ctx context.Context, family models.Family, startDate, endDate string) ([]models.Row, error) {
	def, ok := reports[family]
	if !ok {
		return nil, &APIError{Kind: KindInvalid, Message: fmt.Sprintf("no report defined for family %q", family)}
	}
	if c.propertyID == "" {
		return nil, &APIError{Kind: KindInvalid, Message: "property id is not configured"}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classifyTransport(err)
		}
	}

	start := time.Now()
	rows, err := c.execute(func() ([]models.Row, error) {
		return c.runReport(ctx, def, startDate, endDate)
	})
	metrics.RecordLiveRequest(string(family), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched live rows",
		slog.String("family", string(family)),
		slog.String("start", startDate),
		slog.String("end", endDate),
		slog.Int("rows", len(rows)))
	return rows, nil
}

func (c *Client) execute(fn func() ([]models.Row, error)) ([]models.Row, error) {
	if c.cb == nil {
		return fn()
	}
	rows, err := c.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &APIError{Kind: KindCircuitOpen, Err: err}
	}
	return rows, err
}

func (c *Client) runReport(ctx context.Context, def report, startDate, endDate string) ([]models.Row, error) {
	body, err := json.Marshal(newRequest(def, startDate, endDate, reportRowLimit))
	if err != nil {
		return nil, &APIError{Kind: KindInvalid, Err: fmt.Errorf("encoding request: %w", err)}
	}

	url := fmt.Sprintf("%s/properties/%s:runReport", c.baseURL, c.propertyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Kind: KindInvalid, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyTransport(fmt.Errorf("reading body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(payload, &eb)
		return nil, classifyResponse(resp.StatusCode, eb, c.propertyID)
	}

	var out runReportResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &APIError{Kind: KindInvalid, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return out.flatten(), nil
}
