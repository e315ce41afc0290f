package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"leadlens/internal/analytics"
	"leadlens/internal/config"
	"leadlens/internal/store"
)

// maxWindowDays caps the ?days parameter of the dashboard API.
const maxWindowDays = 365

// storeFor returns the analytics store for a request.
func storeFor(ctx *cartridge.Context) *store.Store {
	return store.For(config.GetConfig(), ctx.DB(), ctx.Logger)
}

// NewAggregator builds an aggregator over s with the configured limits.
func NewAggregator(s analytics.Store, logger *slog.Logger, cfg *config.Config) *analytics.Aggregator {
	return analytics.NewAggregator(s, logger,
		analytics.WithDefaultWindow(cfg.AnalyticsWindowDays),
		analytics.WithPageSize(cfg.AnalyticsPageSize),
		analytics.WithMaxPages(cfg.AnalyticsMaxPages),
		analytics.WithRecentListSize(cfg.RecentListSize),
	)
}

// AnalyticsSummaryAction serves the dashboard summary for the last ?days
// days. An unavailable store answers 503 with a null summary so the
// dashboard can offer a retry.
func AnalyticsSummaryAction(ctx *cartridge.Context) error {
	cfg := config.GetConfig()

	days := 0
	if raw := ctx.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxWindowDays {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": "days must be an integer between 0 and 365 (0 = default window)",
			})
		}
		days = n
	}

	agg := NewAggregator(storeFor(ctx), ctx.Logger, cfg)
	summary, err := agg.Aggregate(ctx.UserContext(), days)
	if err != nil {
		if errors.Is(err, analytics.ErrUnavailable) {
			ctx.Logger.Warn("Analytics summary unavailable", slog.Any("error", err))
			return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
				"summary": nil,
				"error":   "Analytics are temporarily unavailable",
				"retry":   true,
			})
		}
		ctx.Logger.Error("Failed to build analytics summary", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"summary": nil,
			"error":   "Failed to build analytics summary",
			"retry":   true,
		})
	}

	return ctx.JSON(fiber.Map{"summary": summary})
}
