// Package v1 is the public beacon ingestion API used by the marketing site.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"leadlens/internal/models"
	"leadlens/internal/tracking"
)

const (
	msgBeaconQueued   = "Beacon queued successfully"
	errInvalidRequest = "Invalid request"
)

// CreateSessionHandler queues a session beacon.
func CreateSessionHandler(ctx *cartridge.Context) error {
	return collectJSON(ctx, models.BeaconSession)
}

// CreatePageViewHandler queues a page view beacon.
func CreatePageViewHandler(ctx *cartridge.Context) error {
	return collectJSON(ctx, models.BeaconPageView)
}

// CreateFormSubmissionHandler queues a form submission beacon.
func CreateFormSubmissionHandler(ctx *cartridge.Context) error {
	return collectJSON(ctx, models.BeaconForm)
}

// CreateLeadHandler queues an exit-intent lead beacon.
func CreateLeadHandler(ctx *cartridge.Context) error {
	return collectJSON(ctx, models.BeaconLead)
}

func collectJSON(ctx *cartridge.Context, kind models.BeaconKind) error {
	ctx.Logger.Debug("Received beacon request",
		slog.String("kind", string(kind)),
		slog.String("path", ctx.Path()))

	err := tracking.CollectBeacon(ctx.DBManager, ctx.Logger, &tracking.CollectBeaconInput{
		Kind:      kind,
		Payload:   copyBody(ctx.Body()),
		IPAddress: getClientIP(ctx.Ctx),
		UserAgent: userAgent(ctx.Ctx),
	})
	if err != nil {
		return handleError(ctx.Ctx, err)
	}

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": msgBeaconQueued,
		"status":  http.StatusAccepted,
	})
}

// CreateBeaconHandler handles navigator.sendBeacon requests. The body is a
// text/plain JSON document whose "kind" field selects the record type.
// The answer is always 202 because browsers discard it.
func CreateBeaconHandler(ctx *cartridge.Context) error {
	body := copyBody(ctx.Body())

	kind, err := tracking.KindOf(body)
	if err != nil {
		ctx.Logger.Debug("Failed to parse beacon request", slog.Any("error", err))
		return ctx.SendStatus(http.StatusAccepted)
	}

	err = tracking.CollectBeacon(ctx.DBManager, ctx.Logger, &tracking.CollectBeaconInput{
		Kind:      kind,
		Payload:   body,
		IPAddress: getClientIP(ctx.Ctx),
		UserAgent: userAgent(ctx.Ctx),
	})
	if err != nil {
		ctx.Logger.Debug("Dropped beacon",
			slog.String("kind", string(kind)),
			slog.Any("error", err))
	}
	return ctx.SendStatus(http.StatusAccepted)
}

// userAgent prefers the header set by proxies that render on the server.
func userAgent(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-User-Agent"); forwarded != "" {
		return forwarded
	}
	return c.Get("User-Agent")
}

// copyBody detaches the body from fasthttp's reusable request buffer.
func copyBody(body []byte) []byte {
	out := make([]byte, len(body))
	copy(out, body)
	return out
}

func handleError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"error": fiberErr.Message,
		})
	}

	if errors.Is(err, tracking.ErrInvalidBeacon) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": strings.TrimPrefix(err.Error(), tracking.ErrInvalidBeacon.Error()+": "),
			"code":  "INVALID_BEACON",
		})
	}

	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy") {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Ingestion is busy, retry later",
			"code":  "BUSY",
		})
	}

	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to queue beacon",
		"code":  "COLLECTION_ERROR",
	})
}
