package controllers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AlertaPix/alertapix/app/models"
	"github.com/AlertaPix/alertapix/internal/pkg/alertqueue"
	"github.com/AlertaPix/alertapix/internal/pkg/database"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
)

const sseHeartbeatInterval = 15 * time.Second

// widgetKey pulls the public key from query or route param; both widget
// variants must behave identically against this surface.
func widgetKey(c *fiber.Ctx) string {
	if key := strings.TrimSpace(c.Query("key")); key != "" {
		return key
	}
	return strings.TrimSpace(c.Params("key"))
}

func widgetErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, alertqueue.ErrInvalidPublicKey):
		return c.Status(fiber.StatusUnauthorized).JSON(jsonError("invalid_public_key", "Unknown widget key"))
	case errors.Is(err, alertqueue.ErrNotOwner):
		return c.Status(fiber.StatusForbidden).JSON(jsonError("forbidden", "Item belongs to another streamer"))
	case errors.Is(err, alertqueue.ErrInvalidStatus):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(jsonError("invalid_status", "Status must be playing or finished"))
	case errors.Is(err, alertqueue.ErrAlertNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(jsonError("not_found", "Resource does not exist"))
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(jsonError("internal_server_error", "Unexpected error"))
	}
}

// HandleWidgetSettings returns the pacing configuration for one widget.
// Financial data is never reachable through the public key.
func HandleWidgetSettings(c *fiber.Ctx) error {
	svc := alertqueue.NewServiceFromDB(database.GetDB())
	settings, err := svc.ResolveSettings(c.Context(), widgetKey(c))
	if err != nil {
		return widgetErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"alert_duration_sec": settings.AlertDurationSec,
		"start_delay_sec":    settings.StartDelaySec,
		"between_delay_sec":  settings.BetweenDelaySec,
		"position":           settings.Position,
	})
}

// HandleWidgetQueue returns the still-queued items in arrival order. This is
// the widget's load-on-connect recovery path.
func HandleWidgetQueue(c *fiber.Ctx) error {
	svc := alertqueue.NewServiceFromDB(database.GetDB())
	items, err := svc.ListQueued(c.Context(), widgetKey(c))
	if err != nil {
		return widgetErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"items": items})
}

// HandleWidgetAlert returns the displayable alert content for a queue item.
func HandleWidgetAlert(c *fiber.Ctx) error {
	alertID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(jsonError("invalid_alert_id", "Alert id must be numeric"))
	}

	svc := alertqueue.NewServiceFromDB(database.GetDB())
	alert, err := svc.GetAlert(c.Context(), widgetKey(c), uint(alertID))
	if err != nil {
		return widgetErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":          alert.ID,
		"title":       alert.Title,
		"price_cents": alert.PriceCents,
		"media_kind":  alert.MediaKind,
		"media_url":   alert.MediaURL,
	})
}

type widgetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=playing finished"`
}

// HandleWidgetStatusUpdate performs a public-key-authorized status
// transition on a queue item.
func HandleWidgetStatusUpdate(c *fiber.Ctx) error {
	itemID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(jsonError("invalid_item_id", "Item id must be numeric"))
	}

	var req widgetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(jsonError("invalid_body", "Malformed JSON body"))
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(jsonError("invalid_status", "Status must be playing or finished"))
	}

	svc := alertqueue.NewServiceFromDB(database.GetDB())
	if err := svc.UpdateStatusByPublicKey(c.Context(), widgetKey(c), uint(itemID), models.QueueItemStatus(req.Status)); err != nil {
		return widgetErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleWidgetEvents bridges the Redis insertion feed to the widget as
// server-sent events. Delivery is at-most-once per connection; the widget
// reloads the queue whenever it reconnects.
func HandleWidgetEvents(c *fiber.Ctx) error {
	svc := alertqueue.NewServiceFromDB(database.GetDB())
	settings, err := svc.ResolveSettings(c.Context(), widgetKey(c))
	if err != nil {
		return widgetErrorResponse(c, err)
	}
	streamerID := settings.StreamerID

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		feed := alertqueue.NewRedisFeed()
		events, err := feed.Subscribe(ctx, streamerID)
		if err != nil {
			log.Errorf("[Widget] SSE subscribe failed for streamer %d: %v", streamerID, err)
			return
		}

		heartbeat := time.NewTicker(sseHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: queue_insert\ndata: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					// Client went away.
					return
				}
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}
