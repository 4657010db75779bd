package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

const (
	// EventsExchange is the durable topic exchange for fire-and-forget
	// event publication.
	EventsExchange = "events"

	publishAttempts = 3
	backoffStep     = 500 * time.Millisecond
)

// Publisher delivers events to the broker's topic exchange with
// persistent delivery. Unlike the hub HTTP path it does not dead-letter
// on failure; it reports the outcome and leaves the decision to the
// caller.
type Publisher struct {
	config Config
}

// NewPublisher creates a broker publisher.
func NewPublisher(config Config) *Publisher {
	return &Publisher{config: config}
}

// Publish sends one event to the topic exchange, routing key
// "<topic>.<eventName>". Transport failures are retried with linear
// backoff on a fresh connection each attempt, since a broken channel
// cannot be reused. Returns false once all attempts are exhausted; the
// caller must not fail a user-facing request on that outcome.
func (p *Publisher) Publish(ctx context.Context, topic, eventName string, payload any) bool {
	body, err := json.Marshal(map[string]any{
		"messageId": uuid.NewString(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"destination": map[string]string{
			"topic":     topic,
			"eventName": eventName,
		},
		"payload": payload,
	})
	if err != nil {
		log.Errorf("[Broker] Cannot serialize event %s/%s: %v", topic, eventName, err)
		return false
	}

	routingKey := topic + "." + eventName

	for attempt := 1; attempt <= publishAttempts; attempt++ {
		if err := p.publishOnce(routingKey, body); err != nil {
			log.Warnf("[Broker] Publish attempt %d/%d for %s failed: %v", attempt, publishAttempts, routingKey, err)
			if attempt < publishAttempts {
				select {
				case <-time.After(backoffStep * time.Duration(attempt)):
				case <-ctx.Done():
					return false
				}
			}
			continue
		}
		return true
	}

	log.Errorf("[Broker] Giving up on %s after %d attempts", routingKey, publishAttempts)
	return false
}

func (p *Publisher) publishOnce(routingKey string, body []byte) error {
	conn, ch, err := dial(p.config)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := ch.ExchangeDeclare(EventsExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return err
	}

	return ch.Publish(EventsExchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
