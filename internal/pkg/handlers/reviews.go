package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fixmarket/corelink/internal/pkg/apiclient"
)

// ReviewsHandler mirrors rating events into the marketplace /ratings
// collection.
type ReviewsHandler struct {
	api *apiclient.Client
}

func NewReviewsHandler(api *apiclient.Client) *ReviewsHandler {
	return &ReviewsHandler{api: api}
}

type reviewPayload struct {
	RatingID   int     `json:"ratingId"`
	RequestID  int     `json:"requestId"`
	ProviderID int     `json:"providerId"`
	UserID     int     `json:"userId"`
	Score      float64 `json:"score"`
	Comment    string  `json:"comment"`
}

func (h *ReviewsHandler) Handle(ctx context.Context, eventName string, body []byte) (Result, error) {
	var envelope struct {
		Payload *reviewPayload `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return skipped("payload does not decode: " + err.Error()), nil
	}
	if envelope.Payload == nil {
		log.Warnf("[Reviews] Event without rating payload, ignoring")
		return skipped("no rating payload"), nil
	}
	data := *envelope.Payload

	rating := map[string]any{
		"external_id": data.RatingID,
		"provider_id": data.ProviderID,
		"user_id":     data.UserID,
		"stars":       data.Score,
		"comment":     data.Comment,
	}

	switch eventName {
	case "review_created":
		ok, err := h.api.Send(ctx, http.MethodPost, "/ratings", rating)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return rejected(fmt.Sprintf("create rating %d refused", data.RatingID)), nil
		}
		return applied(fmt.Sprintf("created rating %d", data.RatingID)), nil

	case "review_updated":
		internalID, err := h.lookup(ctx, data.RatingID)
		if err != nil {
			return Result{}, err
		}
		if internalID == 0 {
			log.Warnf("[Reviews] Rating with external id %d not found, cannot update", data.RatingID)
			return skipped("rating not found"), nil
		}

		ok, err := h.api.Send(ctx, http.MethodPatch, fmt.Sprintf("/ratings/%d", internalID), rating)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return rejected(fmt.Sprintf("update rating %d refused", data.RatingID)), nil
		}
		return applied(fmt.Sprintf("updated rating %d", data.RatingID)), nil

	default:
		log.Infof("[Reviews] Unhandled event: %s", eventName)
		return skipped("unhandled event " + eventName), nil
	}
}

func (h *ReviewsHandler) lookup(ctx context.Context, externalID int) (int, error) {
	query := url.Values{"external_id": {fmt.Sprint(externalID)}}

	var matches []struct {
		ID int `json:"id"`
	}
	if err := h.api.GetJSON(ctx, "/ratings", query, &matches); err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}
	return matches[0].ID, nil
}
