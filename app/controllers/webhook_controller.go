package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/AlertaPix/alertapix/internal/pkg/alertqueue"
	"github.com/AlertaPix/alertapix/internal/pkg/checkout"
	"github.com/AlertaPix/alertapix/internal/pkg/database"
	"github.com/AlertaPix/alertapix/internal/pkg/mercadopago"
	"github.com/gofiber/fiber/v2"
)

// HandleMercadoPagoWebhook receives provider payment notifications. It must
// answer 200 for everything that was processed or deliberately ignored and
// non-200 only when the provider should redeliver.
func HandleMercadoPagoWebhook(c *fiber.Ctx) error {
	paymentID := c.Query("data.id")
	if paymentID == "" {
		paymentID = c.Query("id")
	}
	notification := mercadopago.ParseWebhookNotification(
		c.Query("type"),
		c.Query("topic"),
		paymentID,
		c.BodyRaw(),
	)

	db := database.GetDB()
	svc := checkout.NewServiceFromDB(db, mercadopago.NewClientFromEnv(), alertqueue.NewServiceFromDB(db))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	outcome, err := svc.ProcessNotification(ctx, notification)
	if err != nil {
		if errors.Is(err, checkout.ErrGatewayFetch) {
			// Propagate so the provider's retry mechanism redelivers.
			return c.Status(fiber.StatusBadGateway).JSON(jsonError("gateway_fetch_failed", err.Error()))
		}
		if errors.Is(err, checkout.ErrTransactionNotFound) {
			// Correlation bug, not a transient condition; keep it loud.
			return c.Status(fiber.StatusInternalServerError).JSON(jsonError("transaction_not_found", err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(jsonError("webhook_processing_failed", err.Error()))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "outcome": outcome})
}
