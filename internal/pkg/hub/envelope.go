package hub

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// Destination addresses an event inside the hub. Outbound publishes use
// Topic, hub webhook deliveries use Channel; EventName is common to both.
type Destination struct {
	Topic     string `json:"topic,omitempty"`
	Channel   string `json:"channel,omitempty"`
	EventName string `json:"eventName"`
}

// Envelope is the fixed wire format exchanged with the hub, on the
// publish endpoint as well as on webhook deliveries.
type Envelope struct {
	MessageID      string          `json:"messageId" validate:"required"`
	Timestamp      string          `json:"timestamp,omitempty"`
	Source         string          `json:"source,omitempty"`
	SubscriptionID string          `json:"subscriptionId,omitempty"`
	Destination    Destination     `json:"destination"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

var validate = validator.New()

// ParseEnvelope decodes and structurally validates a hub message body.
// The message id is mandatory: it is the idempotency key and must never
// be empty.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if err := validate.Struct(&env); err != nil {
		return nil, err
	}
	return &env, nil
}
