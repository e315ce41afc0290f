package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"leadlens/internal/analytics"
	"leadlens/internal/store"
)

// LeadArchiveAction hides a lead from the default dashboard list.
func LeadArchiveAction(ctx *cartridge.Context) error {
	return setLeadArchived(ctx, true)
}

// LeadRestoreAction brings an archived lead back.
func LeadRestoreAction(ctx *cartridge.Context) error {
	return setLeadArchived(ctx, false)
}

func setLeadArchived(ctx *cartridge.Context, archived bool) error {
	id := ctx.Params("id")
	if id == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "lead id is required"})
	}

	err := storeFor(ctx).SetLeadArchived(ctx.UserContext(), id, archived)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrLeadNotFound):
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Lead not found"})
	case errors.Is(err, analytics.ErrStoreNotConfigured):
		return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": "Analytics store is not configured"})
	default:
		ctx.Logger.Error("Failed to update lead",
			slog.String("lead_id", id),
			slog.Bool("archived", archived),
			slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update lead"})
	}

	ctx.Logger.Info("Lead updated", slog.String("lead_id", id), slog.Bool("archived", archived))
	return ctx.JSON(fiber.Map{"id": id, "archived": archived})
}
