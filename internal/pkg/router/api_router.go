package router

import (
	"time"

	"github.com/AlertaPix/alertapix/app/controllers"
	"github.com/AlertaPix/alertapix/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "AlertaPix API",
		})
	})

	// Provider webhooks bypass the IP limiter: provider retries must never
	// be throttled into data loss.
	api.Post("/webhooks/mercadopago", controllers.HandleMercadoPagoWebhook)

	public := api.Group("/", limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
	}))

	public.Post("/checkout", controllers.HandleCreateCheckout)
	public.Get("/checkout/:id", controllers.HandleGetCheckout)

	// Widget surface: authorized by the per-streamer public key only.
	public.Get("/widget/settings", controllers.HandleWidgetSettings)
	public.Get("/widget/queue", controllers.HandleWidgetQueue)
	public.Get("/widget/alerts/:id", controllers.HandleWidgetAlert)
	public.Post("/widget/queue/:id/status", controllers.HandleWidgetStatusUpdate)
	public.Get("/widget/events", controllers.HandleWidgetEvents)

	// Dashboard actions: streamer API key required.
	authed := api.Group("/", middleware.StreamerAuthMiddleware())
	authed.Post("/alerts/test", controllers.HandleTestAlert)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
