package controllers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fixmarket/corelink/app/models"
	"github.com/fixmarket/corelink/app/repository"
	"github.com/fixmarket/corelink/internal/pkg/dispatcher"
	"github.com/fixmarket/corelink/internal/pkg/hub"
)

// EventController is the internal operator surface for the event relay:
// dead-letter inspection, manual reprocessing and queue statistics.
type EventController struct {
	outbox repository.OutboundEventRepository
	events repository.InboundEventRepository
	hub    *hub.Client
}

// NewEventController creates the event admin controller.
func NewEventController(outbox repository.OutboundEventRepository, events repository.InboundEventRepository, hubClient *hub.Client) *EventController {
	return &EventController{outbox: outbox, events: events, hub: hubClient}
}

type deadLetterResponse struct {
	ID        uint            `json:"id"`
	MessageID string          `json:"message_id"`
	Topic     string          `json:"topic"`
	EventName string          `json:"event_name"`
	Payload   json.RawMessage `json:"payload"`
	FailedAt  string          `json:"failed_at"`
}

// HandleList is GET /events: dead-letter rows, newest failure first.
func (ec *EventController) HandleList(c *fiber.Ctx) error {
	rows, err := ec.outbox.ListNewestFirst()
	if err != nil {
		log.Errorf("[Events] Listing dead-letters failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	out := make([]deadLetterResponse, 0, len(rows))
	for _, row := range rows {
		payload := json.RawMessage(row.Payload)
		if !json.Valid(payload) {
			// Keep undecodable payloads visible as strings for triage.
			payload, _ = json.Marshal(row.Payload)
		}
		out = append(out, deadLetterResponse{
			ID:        row.ID,
			MessageID: row.MessageID,
			Topic:     row.Topic,
			EventName: row.EventName,
			Payload:   payload,
			FailedAt:  row.FailedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

// HandleReprocess is POST /events/reprocess: re-attempt delivery of all
// dead-letter rows.
func (ec *EventController) HandleReprocess(c *fiber.Ctx) error {
	requeued, discarded, err := ec.hub.Reprocess(c.Context())
	if err != nil {
		log.Errorf("[Events] Reprocess failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"requeued":  requeued,
		"discarded": discarded,
	})
}

// HandleStats is GET /events/stats: worker heartbeats, dispatch counters
// and queue depth by status.
func (ec *EventController) HandleStats(c *fiber.Ctx) error {
	stats := dispatcher.SnapshotStats()

	queue := fiber.Map{}
	for _, status := range []string{
		models.InboundStatusPending,
		models.InboundStatusProcessing,
		models.InboundStatusDone,
		models.InboundStatusError,
	} {
		count, err := ec.events.CountByStatus(status)
		if err != nil {
			log.Errorf("[Events] Counting %s rows failed: %v", status, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
		queue[status] = count
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"workers":   stats.Workers,
		"processed": stats.Processed,
		"errors":    stats.Errors,
		"queue":     queue,
	})
}
