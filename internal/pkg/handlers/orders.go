package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fixmarket/corelink/internal/pkg/apiclient"
)

// OrdersHandler mirrors quote and request lifecycle events into the
// marketplace /requests collection. Requests are keyed by the hub-side
// request id, so no lookup roundtrip is needed here.
type OrdersHandler struct {
	api *apiclient.Client
}

func NewOrdersHandler(api *apiclient.Client) *OrdersHandler {
	return &OrdersHandler{api: api}
}

type orderPayload struct {
	QuoteID    int     `json:"quoteId"`
	RequestID  int     `json:"requestId"`
	UserID     int     `json:"userId"`
	ProviderID int     `json:"providerId"`
	Amount     float64 `json:"amount"`
	Conditions string  `json:"conditions"`
	Reason     string  `json:"reason"`
}

func (h *OrdersHandler) Handle(ctx context.Context, eventName string, body []byte) (Result, error) {
	var envelope struct {
		Payload *orderPayload `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return skipped("payload does not decode: " + err.Error()), nil
	}
	if envelope.Payload == nil {
		log.Warnf("[Orders] Event without order payload, ignoring")
		return skipped("no order payload"), nil
	}
	data := *envelope.Payload

	if data.RequestID == 0 {
		log.Warnf("[Orders] Event %s without requestId, ignoring", eventName)
		return skipped("missing requestId"), nil
	}
	requestPath := fmt.Sprintf("/requests/%d", data.RequestID)

	switch eventName {
	case "quote_issued":
		body := map[string]any{
			"external_id": data.RequestID,
			"quote_id":    data.QuoteID,
			"user_id":     data.UserID,
			"provider_id": data.ProviderID,
			"amount":      data.Amount,
			"conditions":  data.Conditions,
		}
		return h.send(ctx, http.MethodPost, "/requests", body, eventName)

	case "quote_accepted":
		body := map[string]any{
			"status":      "approved_by_user",
			"quote_id":    data.QuoteID,
			"provider_id": data.ProviderID,
			"amount":      data.Amount,
		}
		return h.send(ctx, http.MethodPatch, requestPath, body, eventName)

	case "quote_rejected":
		return h.send(ctx, http.MethodDelete, requestPath, nil, eventName)

	case "request_canceled":
		return h.send(ctx, http.MethodDelete, requestPath, nil, eventName)

	default:
		log.Infof("[Orders] Unhandled event: %s", eventName)
		return skipped("unhandled event " + eventName), nil
	}
}

func (h *OrdersHandler) send(ctx context.Context, method, path string, body any, eventName string) (Result, error) {
	ok, err := h.api.Send(ctx, method, path, body)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return rejected(eventName + " refused by API"), nil
	}
	return applied(eventName + " applied"), nil
}
