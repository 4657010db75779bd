package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fixmarket/corelink/internal/pkg/apiclient"
)

func TestReviewsHandlerCreatesRating(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()

	h := NewReviewsHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "review_created", eventBody(t, map[string]any{
		"ratingId":   3,
		"providerId": 8,
		"userId":     7,
		"score":      4.5,
		"comment":    "quick and tidy",
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)

	writes := server.writes()
	if assert.Len(t, writes, 1) {
		call := writes[0]
		assert.Equal(t, http.MethodPost, call.method)
		assert.Equal(t, "/ratings", call.path)
		assert.Equal(t, float64(3), call.body["external_id"])
		assert.Equal(t, float64(4.5), call.body["stars"])
		assert.Equal(t, "quick and tidy", call.body["comment"])
	}
}

func TestReviewsHandlerUpdatesRating(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()
	server.lookups["/ratings"] = `[{"id":55}]`

	h := NewReviewsHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "review_updated", eventBody(t, map[string]any{
		"ratingId": 3,
		"score":    2,
		"comment":  "came back broken",
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)

	writes := server.writes()
	if assert.Len(t, writes, 1) {
		assert.Equal(t, http.MethodPatch, writes[0].method)
		assert.Equal(t, "/ratings/55", writes[0].path)
	}
}

func TestReviewsHandlerSkipsUnknownRating(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()

	h := NewReviewsHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "review_updated", eventBody(t, map[string]any{
		"ratingId": 404,
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, result.Outcome)
	assert.Empty(t, server.writes())
}

func TestReviewsHandlerSkipsWithoutPayload(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()

	h := NewReviewsHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "review_created", []byte(`{"messageId":"m-1"}`))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, result.Outcome)
	assert.Empty(t, server.calls)
}
