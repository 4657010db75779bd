package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/fixmarket/corelink/app/models"
	"github.com/fixmarket/corelink/internal/pkg/cache"
	"github.com/fixmarket/corelink/internal/pkg/hub"
)

type fakeOutboxRepo struct {
	rows    []models.OutboundEvent
	deleted []uint
}

func (f *fakeOutboxRepo) Create(event *models.OutboundEvent) error {
	event.ID = uint(len(f.rows) + 1)
	f.rows = append(f.rows, *event)
	return nil
}

func (f *fakeOutboxRepo) ListOldestFirst() ([]models.OutboundEvent, error) {
	out := make([]models.OutboundEvent, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeOutboxRepo) ListNewestFirst() ([]models.OutboundEvent, error) {
	out := make([]models.OutboundEvent, 0, len(f.rows))
	for i := len(f.rows) - 1; i >= 0; i-- {
		out = append(out, f.rows[i])
	}
	return out, nil
}

func (f *fakeOutboxRepo) Delete(id uint) error {
	f.deleted = append(f.deleted, id)
	kept := f.rows[:0]
	for _, row := range f.rows {
		if row.ID != id {
			kept = append(kept, row)
		}
	}
	f.rows = kept
	return nil
}

type fakePublishedRepo struct {
	rows []models.PublishedEvent
}

func (f *fakePublishedRepo) Create(event *models.PublishedEvent) error {
	event.ID = uint(len(f.rows) + 1)
	event.CreatedAt = time.Now()
	f.rows = append(f.rows, *event)
	return nil
}

func newEventApp(outbox *fakeOutboxRepo, events *fakeInboundRepo, hubBaseURL string) *fiber.App {
	hubClient := hub.NewClient(hub.Config{BaseURL: hubBaseURL, Source: "marketplace"}, outbox, &fakePublishedRepo{})

	app := fiber.New()
	ec := NewEventController(outbox, events, hubClient)
	app.Get("/events", ec.HandleList)
	app.Post("/events/reprocess", ec.HandleReprocess)
	app.Get("/events/stats", ec.HandleStats)
	return app
}

func TestHandleListRendersDeadLetters(t *testing.T) {
	outbox := &fakeOutboxRepo{rows: []models.OutboundEvent{
		{ID: 1, MessageID: "m-1", Topic: "reviews", EventName: "review_created", Payload: `{"score":4}`, FailedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{ID: 2, MessageID: "m-2", Topic: "users", EventName: "user_created", Payload: "broken{", FailedAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)},
	}}
	app := newEventApp(outbox, newFakeInboundRepo(), "http://hub.invalid")

	res, err := app.Test(httptest.NewRequest("GET", "/events", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	raw, _ := io.ReadAll(res.Body)
	var out []map[string]any
	assert.NoError(t, json.Unmarshal(raw, &out))

	if assert.Len(t, out, 2) {
		// Newest failure first.
		assert.Equal(t, "m-2", out[0]["message_id"])
		assert.Equal(t, "m-1", out[1]["message_id"])
		// An undecodable payload is kept visible as a string.
		assert.Equal(t, "broken{", out[0]["payload"])
		assert.Equal(t, map[string]any{"score": float64(4)}, out[1]["payload"])
		assert.Equal(t, "2025-03-02T10:00:00Z", out[0]["failed_at"])
	}
}

func TestHandleReprocessReportsCounts(t *testing.T) {
	var delivered int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/publish", r.URL.Path)
		delivered++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	outbox := &fakeOutboxRepo{rows: []models.OutboundEvent{
		{ID: 1, MessageID: "m-1", Topic: "reviews", EventName: "review_created", Payload: `{"score":4}`},
		{ID: 2, MessageID: "m-2", Topic: "users", EventName: "user_created", Payload: "broken{"},
	}}
	app := newEventApp(outbox, newFakeInboundRepo(), server.URL)

	res, err := app.Test(httptest.NewRequest("POST", "/events/reprocess", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	raw, _ := io.ReadAll(res.Body)
	var out map[string]int
	assert.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 1, out["requeued"])
	assert.Equal(t, 1, out["discarded"])
	assert.Equal(t, 1, delivered)
	assert.Empty(t, outbox.rows)
}

func TestHandleStatsReportsQueueDepth(t *testing.T) {
	// Point the cache at a closed port so worker and counter reads come
	// back empty instead of touching a developer's local Redis.
	cache.SetClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 50 * time.Millisecond,
	}))
	t.Cleanup(func() { cache.SetClient(nil) })

	events := newFakeInboundRepo()
	events.counts[models.InboundStatusPending] = 3
	events.counts[models.InboundStatusDone] = 12
	app := newEventApp(&fakeOutboxRepo{}, events, "http://hub.invalid")

	res, err := app.Test(httptest.NewRequest("GET", "/events/stats", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	raw, _ := io.ReadAll(res.Body)
	var out struct {
		Workers   []string         `json:"workers"`
		Processed int64            `json:"processed"`
		Errors    int64            `json:"errors"`
		Queue     map[string]int64 `json:"queue"`
	}
	assert.NoError(t, json.Unmarshal(raw, &out))
	assert.Empty(t, out.Workers)
	assert.Equal(t, int64(3), out.Queue[models.InboundStatusPending])
	assert.Equal(t, int64(12), out.Queue[models.InboundStatusDone])
	assert.Equal(t, int64(0), out.Queue[models.InboundStatusError])
}
