package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/AlertaPix/alertapix/app/models"
	"github.com/AlertaPix/alertapix/internal/pkg/checkout"
	"github.com/AlertaPix/alertapix/internal/pkg/database"
	"github.com/AlertaPix/alertapix/internal/pkg/mercadopago"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const pixExpiration = 30 * time.Minute

type checkoutRequest struct {
	AlertID    uint   `json:"alert_id" validate:"required"`
	SenderName string `json:"sender_name" validate:"max=60"`
	Message    string `json:"message" validate:"max=280"`
	PayerEmail string `json:"payer_email" validate:"required,email"`
}

// HandleCreateCheckout opens a purchase intent: a pending ledger row plus a
// PIX charge at the gateway. The client-generated transaction id travels as
// the external reference so the webhook can correlate back.
func HandleCreateCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(jsonError("invalid_body", "Malformed JSON body"))
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(jsonError("validation_failed", err.Error()))
	}

	db := database.GetDB()

	var alert models.Alert
	if err := db.Where("id = ? AND is_active = ?", req.AlertID, true).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(jsonError("alert_not_found", "Alert does not exist"))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(jsonError("alert_lookup_failed", "Could not load alert"))
	}

	settings, err := models.GetOrCreateStreamerSettings(db, alert.StreamerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(jsonError("settings_lookup_failed", "Could not load streamer settings"))
	}

	tx := models.Transaction{
		ID:         uuid.New().String(),
		StreamerID: alert.StreamerID,
		AlertID:    alert.ID,
		GrossCents: alert.PriceCents,
		Currency:   alert.Currency,
		Status:     models.TransactionPending,
		SenderName: req.SenderName,
		Message:    req.Message,
	}

	amountReais := decimal.NewFromInt(alert.PriceCents).Div(decimal.NewFromInt(100))
	input := mercadopago.CreatePaymentInput{
		AmountReais:       amountReais,
		Description:       "Alerta: " + alert.Title,
		ExternalReference: tx.ID,
		PayerEmail:        req.PayerEmail,
		ExpiresAt:         time.Now().Add(pixExpiration),
	}

	// Marketplace mode: the charge lands on the connected seller account and
	// the platform commission is requested as an application fee up front.
	// The webhook-time recomputation stays the ledger's source of truth.
	if settings.HasConnectedAccount() {
		rate := checkout.PlatformRateFor(settings.CommissionBps)
		fees := checkout.ComputeFees(amountReais, rate)
		tx.RequestedAppFeeCents = fees.PlatformFeeCents
		input.CollectorToken = settings.MPAccessTokenEnc
		input.ApplicationFeeReais = decimal.NewFromInt(fees.PlatformFeeCents).Div(decimal.NewFromInt(100))
	}

	if err := db.Create(&tx).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(jsonError("transaction_create_failed", "Could not create transaction"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	payment, err := mercadopago.NewClientFromEnv().CreatePayment(ctx, input)
	if err != nil {
		log.Errorf("[Checkout] payment creation failed for %s: %v", tx.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(jsonError("payment_create_failed", "Payment provider rejected the charge"))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"transaction_id": tx.ID,
		"status":         tx.Status,
		"amount_cents":   tx.GrossCents,
		"expires_at":     payment.DateOfExpiration,
		"pix": fiber.Map{
			"qr_code":        payment.PointOfInteraction.TransactionData.QRCode,
			"qr_code_base64": payment.PointOfInteraction.TransactionData.QRCodeBase64,
			"ticket_url":     payment.PointOfInteraction.TransactionData.TicketURL,
		},
	})
}

// HandleGetCheckout is the purchase page's polling fallback: it reports the
// ledger status so the buyer sees confirmation even when realtime push is
// unavailable. Duplicate signals against the webhook are harmless.
func HandleGetCheckout(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(jsonError("invalid_transaction_id", "Transaction id must be a UUID"))
	}

	var tx models.Transaction
	if err := database.GetDB().Where("id = ?", id).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(jsonError("transaction_not_found", "Transaction does not exist"))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(jsonError("transaction_lookup_failed", "Could not load transaction"))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"transaction_id": tx.ID,
		"status":         tx.Status,
		"amount_cents":   tx.GrossCents,
		"paid_at":        tx.PaidAt,
	})
}
