package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fixmarket/corelink/app/repository"
	"github.com/fixmarket/corelink/internal/pkg/handlers"
)

const (
	defaultPollInterval = 2 * time.Second
	errorBackoff        = 1 * time.Second
)

// Acker confirms processed deliveries back to the hub.
type Acker interface {
	Ack(ctx context.Context, messageID, subscriptionID string)
}

// Dispatcher is one competing consumer over the shared inbound_events
// queue. It runs a sequential claim/process loop; mutual exclusion with
// other workers comes entirely from the database row lock in ClaimNext,
// there is no in-memory coordination.
type Dispatcher struct {
	workerID     string
	events       repository.InboundEventRepository
	hub          Acker
	handlers     map[Topic]handlers.Handler
	pollInterval time.Duration
}

// Option configures a Dispatcher.
type Option func(d *Dispatcher)

// WithPollInterval overrides the idle sleep between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// New creates a dispatcher for one worker process.
func New(workerID string, events repository.InboundEventRepository, hub Acker, routes map[Topic]handlers.Handler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		workerID:     workerID,
		events:       events,
		hub:          hub,
		handlers:     routes,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls until the context is canceled. A claimed message is
// processed immediately and the loop continues without delay to drain
// pending work; an idle poll sleeps for the poll interval. Failures in
// one cycle never escape the loop.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Infof("[Dispatcher] Worker %s started (poll interval %s)", d.workerID, d.pollInterval)

	for {
		if ctx.Err() != nil {
			log.Infof("[Dispatcher] Worker %s stopping", d.workerID)
			return
		}

		recordHeartbeat(d.workerID)

		messageID, ok, err := d.events.ClaimNext()
		if err != nil {
			log.Errorf("[Dispatcher] Claim failed: %v", err)
			sleep(ctx, errorBackoff)
			continue
		}
		if !ok {
			sleep(ctx, d.pollInterval)
			continue
		}

		log.Infof("[Dispatcher] Claimed message %s", messageID)
		d.ProcessOne(ctx, messageID)
	}
}

// ProcessOne loads a claimed message, routes it to its topic handler and
// records the outcome. Structural defects (missing routing fields,
// undecodable payload) are logged and abandoned without a state
// transition; only a handler verdict moves the row to done or error.
func (d *Dispatcher) ProcessOne(ctx context.Context, messageID string) {
	event, err := d.events.GetByMessageID(messageID)
	if err != nil {
		log.Errorf("[Dispatcher] Could not load message %s: %v", messageID, err)
		return
	}

	if event.Channel == "" || event.EventName == "" {
		log.Warnf("[Dispatcher] Message %s has no channel or event name, abandoning", messageID)
		return
	}
	if !json.Valid([]byte(event.Payload)) {
		log.Warnf("[Dispatcher] Message %s payload does not decode, abandoning", messageID)
		return
	}

	topic := ParseTopic(event.Channel)
	handler, found := d.handlers[topic]
	if !found {
		log.Infof("[Dispatcher] Unrecognized channel %q for message %s, abandoning", event.Channel, messageID)
		return
	}

	log.Infof("[Dispatcher] Processing %s - %s (%s)", event.Channel, event.EventName, messageID)

	result, err := handler.Handle(ctx, event.EventName, []byte(event.Payload))
	if err != nil {
		log.Errorf("[Dispatcher] Processing %s failed: %v", messageID, err)
		if merr := d.events.MarkError(messageID, err.Error()); merr != nil {
			log.Errorf("[Dispatcher] Could not mark %s as error: %v", messageID, merr)
		}
		countError()
		return
	}

	if merr := d.events.MarkDone(messageID); merr != nil {
		log.Errorf("[Dispatcher] Could not mark %s as done: %v", messageID, merr)
		return
	}
	countProcessed()

	// Local done status is authoritative; the ack is best effort.
	d.hub.Ack(ctx, messageID, event.SubscriptionID)

	log.Infof("[Dispatcher] Message %s processed: %s (%s)", messageID, result.Outcome, result.Detail)
}

func sleep(ctx context.Context, duration time.Duration) {
	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}
}
