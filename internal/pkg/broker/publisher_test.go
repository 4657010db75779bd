package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishReturnsFalseOnUnserializablePayload(t *testing.T) {
	p := NewPublisher(Config{Host: "127.0.0.1", Port: 1})

	ok := p.Publish(context.Background(), "users", "user_created", make(chan int))

	assert.False(t, ok)
}

func TestPublishStopsRetryingOnCancel(t *testing.T) {
	p := NewPublisher(Config{Host: "127.0.0.1", Port: 1, Vhost: "/", User: "guest", Password: "guest"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	ok := p.Publish(ctx, "users", "user_created", map[string]any{"userId": 7})

	assert.False(t, ok)
	// The canceled context short-circuits the backoff between attempts.
	assert.Less(t, time.Since(start), 2*time.Second)
}
