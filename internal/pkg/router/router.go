package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fixmarket/corelink/app/controllers"
	"github.com/fixmarket/corelink/app/repository"
	"github.com/fixmarket/corelink/internal/pkg/database"
	"github.com/fixmarket/corelink/internal/pkg/hub"
	"github.com/fixmarket/corelink/internal/pkg/middleware"
)

// InstallRouter wires all HTTP routes of the relay service.
func InstallRouter(app *fiber.App) {
	repos := repository.NewFactory(database.GetDB()).GetRepositories()
	hubClient := hub.NewClient(hub.ConfigFromEnv(), repos.OutboundEvent, repos.PublishedEvent)

	webhook := controllers.NewWebhookController(repos.InboundEvent)
	events := controllers.NewEventController(repos.OutboundEvent, repos.InboundEvent, hubClient)

	app.Get("/health", controllers.HandleHealth)
	app.Post("/webhook", webhook.HandleWebhook)

	admin := app.Group("/events", middleware.InternalAuthMiddleware())
	admin.Get("/", events.HandleList)
	admin.Post("/reprocess", events.HandleReprocess)
	admin.Get("/stats", events.HandleStats)
}
