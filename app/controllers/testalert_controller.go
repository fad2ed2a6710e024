package controllers

import (
	"errors"

	"github.com/AlertaPix/alertapix/internal/pkg/alertqueue"
	"github.com/AlertaPix/alertapix/internal/pkg/database"
	"github.com/AlertaPix/alertapix/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

type testAlertRequest struct {
	AlertID uint `json:"alert_id" validate:"required"`
}

// HandleTestAlert enqueues a synthetic queue item so a streamer can verify
// their widget. Requires API-key auth; the alert must belong to the caller
// and the rolling-hour injection budget must not be exhausted.
func HandleTestAlert(c *fiber.Ctx) error {
	streamerID := middleware.StreamerIDFromContext(c)
	if streamerID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(jsonError("unauthorized", "Missing streamer context"))
	}

	var req testAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(jsonError("invalid_body", "Malformed JSON body"))
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(jsonError("validation_failed", err.Error()))
	}

	svc := alertqueue.NewServiceFromDB(database.GetDB())
	item, err := svc.EnqueueTest(c.Context(), streamerID, req.AlertID)
	if err != nil {
		switch {
		case errors.Is(err, alertqueue.ErrAlertNotFound):
			return c.Status(fiber.StatusNotFound).JSON(jsonError("alert_not_found", "Alert does not exist"))
		case errors.Is(err, alertqueue.ErrNotOwner):
			return c.Status(fiber.StatusForbidden).JSON(jsonError("forbidden", "Alert belongs to another streamer"))
		case errors.Is(err, alertqueue.ErrRateLimited):
			return c.Status(fiber.StatusTooManyRequests).JSON(jsonError("rate_limited", "Test alert limit reached, try again later"))
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(jsonError("test_alert_failed", "Could not enqueue test alert"))
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "item_id": item.ID})
}
