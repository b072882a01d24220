package internal

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"analyticshub/internal/analytics"
	"analyticshub/internal/config"
	"analyticshub/internal/http"
)

// publicCORSConfig lets dashboards on other origins read the API.
var publicCORSConfig = cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization",
}

// RouteDeps are the components the routes are served from.
type RouteDeps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Router    *analytics.Router
	DBManager cartridge.DBManager // nil unless the warehouse is SQLite
}

// NewServerConfig is cartridge's default server setup trimmed to a JSON API:
// no templates or static assets, and no Sec-Fetch-Site check since
// dashboards call in cross-origin.
func NewServerConfig(logger *slog.Logger) *cartridge.ServerConfig {
	cfg := cartridge.DefaultServerConfig()
	cfg.EnableTemplates = false
	cfg.EnableStaticAssets = false
	cfg.EnableSecFetchSite = false
	// Hybrid queries may wait out every live retry.
	cfg.WriteTimeout = 2 * time.Minute
	cfg.ErrorHandler = errorHandler(logger)
	return cfg
}

// MountRoutes returns the cartridge RouteMountFunc for deps.
func MountRoutes(deps RouteDeps) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		MountAppRoutes(srv.App(), deps)
	}
}

// NewFiberApp creates a bare fiber app with the same timeouts and error
// responses as NewServerConfig, with every route mounted. cartridge.NewServer
// requires a DBManager, so this serves warehouses that have none.
func NewFiberApp(deps RouteDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               deps.Config.AppName,
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		// Hybrid queries may wait out every live retry.
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: errorHandler(deps.Logger),
	})
	app.Use(recover.New())
	MountAppRoutes(app, deps)
	return app
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("Request failed", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}

// MountAppRoutes mounts the analytics API, health check and metrics.
func MountAppRoutes(app *fiber.App, deps RouteDeps) {
	cfg := deps.Config

	// Rate limiting would interfere with tests and local dashboards.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 120 requests per minute per IP. Every request may hit the live quota.
	apiRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	cutover := deps.Router.Cutover()
	health := http.NewHealthHandler(deps.DBManager, cutover, deps.Logger)
	app.Get("/_health", health.IndexAction)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	h := http.NewAnalyticsHandler(deps.Router, deps.Logger)
	api := app.Group("/api/analytics", cors.New(publicCORSConfig), apiRateLimiter)
	api.Get("/daily", h.DailyAction)
	api.Get("/pages", h.PagesAction)
	api.Get("/sources", h.SourcesAction)
	api.Get("/devices", h.DevicesAction)
	api.Get("/geo", h.GeoAction)
	api.Get("/summary", h.SummaryAction)
	api.Get("/comparison", h.ComparisonAction)
	api.Get("/top-pages", h.TopPagesAction)
	api.Get("/top-referrers", h.TopReferrersAction)
	api.Get("/strategy", h.StrategyAction)
}
