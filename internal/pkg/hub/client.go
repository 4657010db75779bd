package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/fixmarket/corelink/app/models"
	"github.com/fixmarket/corelink/app/repository"
	"github.com/fixmarket/corelink/internal/pkg/env"
)

const defaultTimeout = 5 * time.Second

// Config carries the hub endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Source  string
}

// ConfigFromEnv builds the hub configuration from recognized env options.
func ConfigFromEnv() Config {
	return Config{
		BaseURL: env.GetEnv("CORE_HUB_URL", "https://api.corehub.example.com"),
		APIKey:  env.GetEnv("CORE_API_KEY", ""),
		Source:  env.GetEnv("CORE_SOURCE", "marketplace"),
	}
}

// Client publishes events to the hub over HTTP and acknowledges processed
// webhook deliveries. Failed publishes are dead-lettered locally instead
// of surfacing errors to the caller: publishing is fire-and-forget
// relative to the request that triggered it.
type Client struct {
	config    Config
	http      *http.Client
	outbox    repository.OutboundEventRepository
	published repository.PublishedEventRepository
}

// NewClient creates a hub client backed by the given repositories.
func NewClient(config Config, outbox repository.OutboundEventRepository, published repository.PublishedEventRepository) *Client {
	return &Client{
		config:    config,
		http:      &http.Client{Timeout: defaultTimeout},
		outbox:    outbox,
		published: published,
	}
}

// Publish delivers one event to the hub. It returns false when delivery
// failed and the event was recorded in the dead-letter store for later
// reprocessing; it never returns an error.
func (c *Client) Publish(ctx context.Context, topic, eventName string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("[Hub] Cannot serialize payload for %s/%s: %v", topic, eventName, err)
		return false
	}

	messageID := uuid.NewString()

	// Append to the local publish log first so the envelope carries a
	// stable creation time even across a later reprocess.
	record := &models.PublishedEvent{
		MessageID: messageID,
		Topic:     topic,
		EventName: eventName,
		Payload:   string(body),
	}
	if err := c.published.Create(record); err != nil {
		log.Warnf("[Hub] Could not record published event %s: %v", messageID, err)
		record.CreatedAt = time.Now()
	}

	envelope := &Envelope{
		MessageID: messageID,
		Timestamp: record.CreatedAt.UTC().Format(time.RFC3339),
		Source:    c.config.Source,
		Destination: Destination{
			Topic:     topic,
			EventName: eventName,
		},
		Payload: body,
	}

	if err := c.send(ctx, envelope); err != nil {
		log.Errorf("[Hub] Publish failed for %s (%s/%s): %v", messageID, topic, eventName, err)
		c.deadLetter(messageID, topic, eventName, string(body))
		return false
	}

	log.Infof("[Hub] Published %s to %s/%s", messageID, topic, eventName)
	return true
}

func (c *Client) send(ctx context.Context, envelope *Envelope) error {
	raw, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/publish", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.config.APIKey)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("hub responded %d", res.StatusCode)
	}
	return nil
}

func (c *Client) deadLetter(messageID, topic, eventName, payload string) {
	err := c.outbox.Create(&models.OutboundEvent{
		MessageID: messageID,
		Topic:     topic,
		EventName: eventName,
		Payload:   payload,
	})
	if err != nil {
		log.Errorf("[Hub] Could not dead-letter event %s: %v", messageID, err)
	}
}

// Ack confirms a processed webhook delivery to the hub. Failures are
// logged and swallowed: the local done status is authoritative and an
// unacked message at worst gets redelivered, which is idempotent.
func (c *Client) Ack(ctx context.Context, messageID, subscriptionID string) {
	if subscriptionID == "" {
		log.Warnf("[Hub] No subscription id for %s, skipping ack", messageID)
		return
	}

	body, _ := json.Marshal(map[string]string{"messageId": messageID})
	url := fmt.Sprintf("%s/messages/ack/%s", c.config.BaseURL, subscriptionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Warnf("[Hub] Ack request for %s failed: %v", messageID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.config.APIKey)

	res, err := c.http.Do(req)
	if err != nil {
		log.Warnf("[Hub] Ack for %s failed: %v", messageID, err)
		return
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Warnf("[Hub] Ack for %s rejected with %d", messageID, res.StatusCode)
		return
	}
	log.Infof("[Hub] Acked %s", messageID)
}

// Reprocess walks the dead-letter store in arrival order and attempts to
// deliver each event again. A row is deleted only after the hub accepted
// it; a payload that no longer decodes is discarded immediately since it
// can never succeed.
func (c *Client) Reprocess(ctx context.Context) (requeued, discarded int, err error) {
	events, err := c.outbox.ListOldestFirst()
	if err != nil {
		return 0, 0, err
	}

	for i := range events {
		event := &events[i]

		if !json.Valid([]byte(event.Payload)) {
			log.Warnf("[Hub] Discarding dead-letter %s: payload does not decode", event.MessageID)
			if derr := c.outbox.Delete(event.ID); derr != nil {
				log.Errorf("[Hub] Could not discard dead-letter %s: %v", event.MessageID, derr)
			} else {
				discarded++
			}
			continue
		}

		envelope := &Envelope{
			MessageID: event.MessageID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Source:    c.config.Source,
			Destination: Destination{
				Topic:     event.Topic,
				EventName: event.EventName,
			},
			Payload: json.RawMessage(event.Payload),
		}

		if serr := c.send(ctx, envelope); serr != nil {
			log.Warnf("[Hub] Reprocess of %s still failing: %v", event.MessageID, serr)
			continue
		}

		if derr := c.outbox.Delete(event.ID); derr != nil {
			log.Errorf("[Hub] Reprocessed %s but could not delete dead-letter row: %v", event.MessageID, derr)
			continue
		}
		requeued++
	}

	log.Infof("[Hub] Reprocess finished: %d requeued, %d discarded", requeued, discarded)
	return requeued, discarded, nil
}
