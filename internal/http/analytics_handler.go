package http

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"analyticshub/internal/analytics"
	"analyticshub/internal/timeframe"
)

// MaxLimit caps the limit query parameter.
const MaxLimit = 1000

// RangeQuery is the query string every analytics endpoint accepts.
type RangeQuery struct {
	StartDate string `query:"startDate" validate:"required"`
	EndDate   string `query:"endDate" validate:"required"`
	Limit     int    `query:"limit" validate:"gte=0,lte=1000"`
}

// AnalyticsHandler serves the router's families as JSON.
type AnalyticsHandler struct {
	router   *analytics.Router
	logger   *slog.Logger
	validate *validator.Validate
}

// NewAnalyticsHandler creates the handler set for /api/analytics.
func NewAnalyticsHandler(router *analytics.Router, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		router:   router,
		logger:   logger,
		validate: validator.New(),
	}
}

// parseRange reads and validates the query string. Malformed or inverted
// ranges are client errors here, unlike the router which reports them in
// the result.
func (h *AnalyticsHandler) parseRange(c *fiber.Ctx) (RangeQuery, error) {
	var q RangeQuery
	if err := c.QueryParser(&q); err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := h.validate.Struct(q); err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}
	if _, err := h.router.ParseRange(q.StartDate, q.EndDate); err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return q, nil
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return lowerFirst(fe.Field()) + " is required"
	case "gte", "lte":
		return lowerFirst(fe.Field()) + " must be between 0 and 1000"
	default:
		return lowerFirst(fe.Field()) + " is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

// respond logs degraded results and writes the body. Source failures are
// part of the result, so the status stays 200.
func (h *AnalyticsHandler) respond(c *fiber.Ctx, tag analytics.SourceTag, errMsg string, body interface{}) error {
	if tag == analytics.SourceError {
		h.logger.Warn("Analytics query failed",
			slog.String("path", c.Path()),
			slog.String("error", errMsg))
	}
	return c.JSON(body)
}

// DailyAction handles GET /api/analytics/daily
func (h *AnalyticsHandler) DailyAction(c *fiber.Ctx) error {
	q, err := h.parseRange(c)
	if err != nil {
		return err
	}
	res := h.router.DailyMetrics(c.UserContext(), q.StartDate, q.EndDate, q.Limit)
	return h.respond(c, res.SourceTag, res.Error, res)
}

// PagesAction handles GET /api/analytics/pages
func (h *AnalyticsHandler) PagesAction(c *fiber.Ctx) error {
	q, err := h.parseRange(c)
	if err != nil {
		return err
	}
	res := h.router.PageViews(c.UserContext(), q.StartDate, q.EndDate, q.Limit)
	return h.respond(c, res.SourceTag, res.Error, res)
}

// SourcesAction handles GET /api/analytics/sources
func (h *AnalyticsHandler) SourcesAction(c *fiber.Ctx) error {
	q, err := h.parseRange(c)
	if err != nil {
		return err
	}
	res := h.router.TrafficSources(c.UserContext(), q.StartDate, q.EndDate, q.Limit)
	return h.respond(c, res.SourceTag, res.Error, res)
}

// DevicesAction handles GET /api/analytics/devices
func (h *AnalyticsHandler) DevicesAction(c *fiber.Ctx) error {
	q, err := h.parseRange(c)
	if err != nil {
		return err
	}
	res := h.router.DeviceBreakdown(c.UserContext(), q.StartDate, q.EndDate, q.Limit)
	return h.respond(c, res.SourceTag, res.Error, res)
}

// GeoAction handles GET /api/analytics/geo
func (h *AnalyticsHandler) GeoAction(c *fiber.Ctx) error {
	q, err := h.parseRange(c)
	if err != nil {
		return err
	}
	res := h.router.Geographic(c.UserContext(), q.StartDate, q.EndDate, q.Limit)
	return h.respond(c, res.SourceTag, res.Error, res)
}

// TopPagesAction handles GET /api/analytics/top-pages
func (h *AnalyticsHandler) TopPagesAction(c *fiber.Ctx) error {
	q, err := h.parseRange(c)
	if err != nil {
		return err
	}
	res := h.router.TopPages(c.UserContext(), q.StartDate, q.EndDate, q.Limit)
	return h.respond(c, res.SourceTag, res.Error, res)
}

// TopReferrersAction handles GET /api/analytics/top-referrers
func (h *AnalyticsHandler) TopReferrersAction(c *fiber.Ctx) error {
	q, err := h.parseRange(c)
	if err != nil {
		return err
	}
	res := h.router.TopReferrers(c.UserContext(), q.StartDate, q.EndDate, q.Limit)
	return h.respond(c, res.SourceTag, res.Error, res)
}

// SummaryAction handles GET /api/analytics/summary
func (h *AnalyticsHandler) SummaryAction(c *fiber.Ctx) error {
	q, err := h.parseRange(c)
	if err != nil {
		return err
	}
	res := h.router.Summary(c.UserContext(), q.StartDate, q.EndDate)
	return h.respond(c, res.SourceTag, res.Error, res)
}

// ComparisonAction handles GET /api/analytics/comparison
func (h *AnalyticsHandler) ComparisonAction(c *fiber.Ctx) error {
	q, err := h.parseRange(c)
	if err != nil {
		return err
	}
	res := h.router.SummaryComparison(c.UserContext(), q.StartDate, q.EndDate)
	return h.respond(c, res.Current.SourceTag, res.Current.Error, res)
}

// StrategyAction handles GET /api/analytics/strategy and reports which
// sources a range would be served from, without fetching.
func (h *AnalyticsHandler) StrategyAction(c *fiber.Ctx) error {
	q, err := h.parseRange(c)
	if err != nil {
		return err
	}
	d, err := h.router.Resolve(c.UserContext(), q.StartDate, q.EndDate)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	resp := fiber.Map{
		"useHistorical": d.UseHistorical,
		"useLive":       d.UseLive,
		"label":         d.Label,
		"cutoverDate":   timeframe.FormatDate(h.router.Cutover()),
	}
	if d.HistoricalRange != nil {
		resp["historicalRange"] = fiber.Map{"startDate": d.HistoricalRange.StartDate(), "endDate": d.HistoricalRange.EndDate()}
	}
	if d.LiveRange != nil {
		resp["liveRange"] = fiber.Map{"startDate": d.LiveRange.StartDate(), "endDate": d.LiveRange.EndDate()}
	}
	return c.JSON(resp)
}
