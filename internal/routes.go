package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "leadlens/api/v1"
	"leadlens/internal/config"
	"leadlens/internal/http"
	"leadlens/internal/metrics"
)

// publicCORSConfig is shared by every beacon endpoint: the marketing site
// posts from its own origin, previews from others.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	srv.App().Use(metrics.Middleware())

	// ============================================
	// PUBLIC ENDPOINT PROTECTION
	// - Rate limiting (70 req/min per IP, production only)
	// - CORS (permissive for the marketing site)
	// - Sec-Fetch-Site validation from the global middleware
	// ============================================

	// In development/test, rate limiting would interfere with testing
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// A page sends a session, a handful of page views and at most a form and
	// a lead, so 70/min per IP leaves room for fast browsing.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// CORS runs first ensuring 403 responses have CORS headers
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// Admin routes are not authenticated; deploy them behind the
	// operator's proxy.
	adminAPIConfig := &cartridge.RouteConfig{}

	// === ROOT ROUTES ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	metricsHandler := metrics.Handler()
	srv.Get("/metrics", func(ctx *cartridge.Context) error {
		return metricsHandler(ctx.Ctx)
	})

	// === PUBLIC BEACON API ===
	preflight := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}
	for path, handler := range map[string]func(*cartridge.Context) error{
		"/x/api/v1/sessions":  v1.CreateSessionHandler,
		"/x/api/v1/pageviews": v1.CreatePageViewHandler,
		"/x/api/v1/forms":     v1.CreateFormSubmissionHandler,
		"/x/api/v1/leads":     v1.CreateLeadHandler,
		"/x/api/v1/beacon":    v1.CreateBeaconHandler,
	} {
		srv.Post(path, handler, publicAPIConfig)
		srv.Options(path, preflight, publicAPIConfig)
	}

	// === ADMIN API ===
	srv.Get("/admin/api/analytics", http.AnalyticsSummaryAction, adminAPIConfig)
	srv.Post("/admin/api/leads/:id/archive", http.LeadArchiveAction, adminAPIConfig)
	srv.Post("/admin/api/leads/:id/restore", http.LeadRestoreAction, adminAPIConfig)
}
