package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fixmarket/corelink/app/models"
	"github.com/fixmarket/corelink/app/repository"
	"github.com/fixmarket/corelink/internal/pkg/hub"
)

// WebhookController accepts pushed hub events. It persists them
// idempotently and returns immediately; all business logic is deferred
// to the dispatcher so hub delivery timeouts never depend on downstream
// processing time.
type WebhookController struct {
	events repository.InboundEventRepository
}

// NewWebhookController creates the webhook controller.
func NewWebhookController(events repository.InboundEventRepository) *WebhookController {
	return &WebhookController{events: events}
}

// HandleWebhook is POST /webhook.
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	raw := c.Body()
	log.Info("[Webhook] New delivery received")

	envelope, err := hub.ParseEnvelope(raw)
	if err != nil {
		var validationErr validator.ValidationErrors
		if errors.As(err, &validationErr) {
			log.Warn("[Webhook] Delivery missing messageId, rejecting")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing messageId"})
		}
		log.Warn("[Webhook] Invalid JSON received")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	subscriptionID := c.Get("X-Subscription-Id")
	if subscriptionID == "" {
		subscriptionID = envelope.SubscriptionID
	}
	// X-Signature is accepted but not verified; the hub does not sign
	// deliveries consistently across tenants yet.

	event := &models.InboundEvent{
		MessageID:      envelope.MessageID,
		SubscriptionID: subscriptionID,
		Source:         envelope.Source,
		Channel:        envelope.Destination.Channel,
		EventName:      envelope.Destination.EventName,
		Payload:        string(raw),
		Status:         models.InboundStatusPending,
	}

	if err := wc.events.Upsert(event); err != nil {
		log.Errorf("[Webhook] Persisting %s failed: %v", envelope.MessageID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Persistence failed"})
	}

	log.Infof("[Webhook] Event persisted: messageId=%s subscriptionId=%s channel=%s event=%s",
		envelope.MessageID, subscriptionID, envelope.Destination.Channel, envelope.Destination.EventName)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"received":  true,
		"messageId": envelope.MessageID,
	})
}
